package main

import (
	"encoding/json"
	"fmt"

	"wbor-twilio/internal/recordings"

	"github.com/spf13/cobra"
)

var reconcileStrict bool

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileStrict, "strict", false, "exit non-zero when files and rows disagree")
	rootCmd.AddCommand(reconcileCmd)
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare stored recording files with the call log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDatabase(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer db.Close()

		files, err := recordings.NewFileStore(cfg.Recordings.Dir, cfg.Recordings.Format)
		if err != nil {
			return err
		}
		rep, err := recordings.Reconcile(cmd.Context(), recordings.NewSQLRepo(db), files, log)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		if reconcileStrict && !rep.Consistent() {
			return fmt.Errorf("%d orphaned files, %d missing files", len(rep.Orphaned), len(rep.Missing))
		}
		return nil
	},
}
