package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/solarlapse/heliopipe/internal/errs"
)

// Store owns the on-disk frame/video tree rooted at BaseDir:
//
//	<base>/frames/YYYY-MM-DD/frame_HHMM.jpg
//	<base>/videos/<name>_<YYYY-MM-DD>.mp4
//	<base>/manifest.json
//	<base>/state.json
//	<base>/production.lock
//	<base>/health.json
//	<tmp>/...
type Store struct {
	BaseDir string
}

// New returns a Store rooted at baseDir, creating the frames/videos/tmp
// subdirectories if absent.
func New(baseDir string) (*Store, error) {
	s := &Store{BaseDir: baseDir}
	for _, dir := range []string{s.FramesRoot(), s.VideosRoot(), s.TmpRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.New(errs.StorageError, "store.New", err)
		}
	}
	return s, nil
}

func (s *Store) FramesRoot() string { return filepath.Join(s.BaseDir, "frames") }
func (s *Store) VideosRoot() string { return filepath.Join(s.BaseDir, "videos") }
func (s *Store) TmpRoot() string    { return filepath.Join(s.BaseDir, "tmp") }
func (s *Store) ManifestPath() string { return filepath.Join(s.BaseDir, "manifest.json") }
func (s *Store) StatePath() string    { return filepath.Join(s.BaseDir, "state.json") }
func (s *Store) LockPath() string     { return filepath.Join(s.BaseDir, "production.lock") }
func (s *Store) HealthPath() string   { return filepath.Join(s.BaseDir, "health.json") }

// FramePath returns the canonical path for a frame at the given UTC instant.
func (s *Store) FramePath(t time.Time) string {
	u := t.UTC()
	dateDir := u.Format("2006-01-02")
	name := fmt.Sprintf("frame_%s.jpg", u.Format("1504"))
	return filepath.Join(s.FramesRoot(), dateDir, name)
}

// WriteFrame persists frameBytes at its canonical path, creating the date
// directory as needed. Writes are not atomic-rename (frame files are
// write-once per spec.md §5, never mutated, and the path is unique per
// TargetInstant); the bytes are written directly to the final path.
func (s *Store) WriteFrame(t time.Time, frameBytes []byte) (string, error) {
	path := s.FramePath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errs.New(errs.StorageError, "store.WriteFrame", err)
	}
	if err := os.WriteFile(path, frameBytes, 0o644); err != nil {
		return "", errs.New(errs.StorageError, "store.WriteFrame", err)
	}
	return path, nil
}

// ScratchPath returns a unique temp-file path composed from pid, a
// nanosecond timestamp, and a random UUID, avoiding collisions between
// concurrent fetch workers (spec.md §5).
func (s *Store) ScratchPath(suffix string) string {
	name := fmt.Sprintf("%d-%d-%s%s", os.Getpid(), time.Now().UnixNano(), uuid.NewString(), suffix)
	return filepath.Join(s.TmpRoot(), name)
}

// GCFrames deletes frame date-directories older than windowStart-1day,
// best-effort: errors are collected but do not abort the sweep or fail the
// caller (spec.md §4.5 Retention).
func (s *Store) GCFrames(windowStart time.Time) []error {
	cutoff := windowStart.AddDate(0, 0, -1)
	var errsOut []error
	entries, err := os.ReadDir(s.FramesRoot())
	if err != nil {
		return []error{err}
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := time.Parse("2006-01-02", e.Name())
		if err != nil {
			continue
		}
		if d.Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(s.FramesRoot(), e.Name())); err != nil {
				errsOut = append(errsOut, err)
			}
		}
	}
	return errsOut
}

// GCVideos deletes video files older than maxAge, best-effort.
func (s *Store) GCVideos(now time.Time, maxAge time.Duration) []error {
	var errsOut []error
	entries, err := os.ReadDir(s.VideosRoot())
	if err != nil {
		return []error{err}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errsOut = append(errsOut, err)
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			if err := os.Remove(filepath.Join(s.VideosRoot(), e.Name())); err != nil {
				errsOut = append(errsOut, err)
			}
		}
	}
	return errsOut
}
