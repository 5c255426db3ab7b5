package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "wbor-twilio",
	Short:         "SMS and call-recording gateway for the station",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("wbor-twilio: " + err.Error() + "\n")
		os.Exit(1)
	}
}
