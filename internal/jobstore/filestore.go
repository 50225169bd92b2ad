// Package jobstore persists scheduled jobs as a single JSON document.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/jonathan/transcript-archiver/internal/schemas"
	"github.com/jonathan/transcript-archiver/internal/types"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore reads and rewrites the job file under an advisory file lock.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore returns a store for path. The lock lives at path + ".lock".
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the job file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns all persisted jobs keyed by ID. A missing file yields an empty map.
func (s *FileStore) Load(ctx context.Context) (map[string]*types.ScheduledJob, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*types.ScheduledJob{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read jobs file %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return map[string]*types.ScheduledJob{}, nil
	}
	if err := schemas.ValidateJobs(data); err != nil {
		return nil, fmt.Errorf("jobs file %s: %w", s.path, err)
	}

	jobs := map[string]*types.ScheduledJob{}
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("decode jobs file %s: %w", s.path, err)
	}
	for id, j := range jobs {
		if j.ID == "" {
			j.ID = id
		}
	}
	return jobs, nil
}

// Save replaces the file contents with jobs.
func (s *FileStore) Save(ctx context.Context, jobs map[string]*types.ScheduledJob) error {
	if jobs == nil {
		jobs = map[string]*types.ScheduledJob{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal jobs: %w", err)
	}
	data = append(data, '\n')
	if err := schemas.ValidateJobs(data); err != nil {
		return err
	}

	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return writeAtomic(s.path, data)
}

func (s *FileStore) acquire(ctx context.Context) (func(), error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create jobs directory: %w", err)
		}
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock jobs file: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("lock jobs file: not acquired")
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// writeAtomic writes data to a temp file beside path, syncs it and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jobs-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
