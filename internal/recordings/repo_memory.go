package recordings

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory call log for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]CallRecording

	// InsertErr, when set, fails every Insert.
	InsertErr error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rows: map[string]CallRecording{}} }

func (r *MemoryRepo) Insert(_ context.Context, rec CallRecording) (bool, error) {
	if rec.StoragePath == "" {
		return false, errors.New("storage path is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return false, r.InsertErr
	}
	if _, ok := r.rows[rec.CallID]; ok {
		return false, nil
	}
	r.rows[rec.CallID] = rec
	return true, nil
}

func (r *MemoryRepo) Get(_ context.Context, callID string) (CallRecording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[callID]
	if !ok {
		return CallRecording{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) Exists(_ context.Context, callID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[callID]
	return ok, nil
}

func (r *MemoryRepo) List(_ context.Context, limit int) ([]CallRecording, error) {
	r.mu.Lock()
	out := make([]CallRecording, 0, len(r.rows))
	for _, rec := range r.rows {
		out = append(out, rec)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].CallID < out[j].CallID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

var _ Repository = (*MemoryRepo)(nil)
