package recordings

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps one audio file per call under Dir, named <call_id>.<ext>.
type FileStore struct {
	dir string
	ext string
}

func NewFileStore(dir, format string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("recordings: storage directory is required")
	}
	if format == "" {
		format = "mp3"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating recordings directory: %w", err)
	}
	return &FileStore{dir: dir, ext: format}, nil
}

func (s *FileStore) Dir() string { return s.dir }

// Path is deterministic in callID.
func (s *FileStore) Path(callID string) string {
	return filepath.Join(s.dir, callID+"."+s.ext)
}

// Save writes through fill into a temp file and renames it into place, so a
// failed download never leaves a partial file at Path(callID).
func (s *FileStore) Save(callID string, fill func(w io.Writer) (int64, error)) (string, int64, error) {
	tmp, err := os.CreateTemp(s.dir, "."+callID+"-*.part")
	if err != nil {
		return "", 0, err
	}
	tmpName := tmp.Name()

	n, err := fill(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return "", 0, err
	}

	dst := s.Path(callID)
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return "", 0, err
	}
	return dst, n, nil
}

func (s *FileStore) Exists(callID string) bool {
	return fileExists(s.Path(callID))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// List returns the call IDs of every stored file, sorted.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	suffix := "." + s.ext
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, suffix))
	}
	sort.Strings(ids)
	return ids, nil
}
