package recordings

import (
	"context"
	"log/slog"

	"wbor-twilio/pkg/logger"
)

// Report lists call IDs where the file store and the call log disagree.
type Report struct {
	Files    int      `json:"files"`
	Rows     int      `json:"rows"`
	Orphaned []string `json:"orphaned"` // file on disk, no row
	Missing  []string `json:"missing"`  // row, file gone
}

func (r Report) Consistent() bool { return len(r.Orphaned) == 0 && len(r.Missing) == 0 }

// Reconcile compares the recordings directory with the call log. It only
// reports; nothing is deleted.
func Reconcile(ctx context.Context, repo Repository, files *FileStore, l *slog.Logger) (Report, error) {
	log := logger.OrDefault(l)

	ids, err := files.List()
	if err != nil {
		return Report{}, err
	}
	rows, err := repo.List(ctx, 0)
	if err != nil {
		return Report{}, err
	}

	logged := make(map[string]struct{}, len(rows))
	for _, rec := range rows {
		logged[rec.CallID] = struct{}{}
	}
	rep := Report{Files: len(ids), Rows: len(rows), Orphaned: []string{}, Missing: []string{}}

	onDisk := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		onDisk[id] = struct{}{}
		if _, ok := logged[id]; !ok {
			rep.Orphaned = append(rep.Orphaned, id)
			log.Warn("orphaned recording file", "call_id", id, "path", files.Path(id))
		}
	}
	for _, rec := range rows {
		if _, ok := onDisk[rec.CallID]; !ok {
			rep.Missing = append(rep.Missing, rec.CallID)
			log.Warn("recording file missing", "call_id", rec.CallID, "path", rec.StoragePath)
		}
	}
	return rep, nil
}
