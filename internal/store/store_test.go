package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManifestAtomicSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	m := NewManifest(path)
	m.Upsert("2026-07-30T00:00:00Z", Record{Status: StatusSuccess, Attempts: 1})
	require.NoError(t, m.Save())

	// .tmp must not linger after rename.
	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	loaded := LoadManifest(path)
	r, ok := loaded.Get("2026-07-30T00:00:00Z")
	require.True(t, ok)
	require.Equal(t, StatusSuccess, r.Status)
}

func TestManifestLoadMissingIsFresh(t *testing.T) {
	m := LoadManifest(filepath.Join(t.TempDir(), "absent.json"))
	require.Empty(t, m.Records)
}

func TestManifestLoadCorruptIsFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	m := LoadManifest(path)
	require.Empty(t, m.Records)
}

func TestStoreFramePathLayout(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ts := time.Date(2026, 7, 30, 14, 45, 0, 0, time.UTC)
	path := s.FramePath(ts)
	require.Equal(t, filepath.Join(s.FramesRoot(), "2026-07-30", "frame_1445.jpg"), path)
}

func TestStoreWriteAndReadFrame(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ts := time.Date(2026, 7, 30, 14, 45, 0, 0, time.UTC)
	path, err := s.WriteFrame(ts, []byte("jpegbytes"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("jpegbytes"), data)
}

func TestGCFramesRemovesOldDirectories(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	old := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.MkdirAll(filepath.Join(s.FramesRoot(), old.Format("2006-01-02")), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(s.FramesRoot(), recent.Format("2006-01-02")), 0o755))

	windowStart := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	errsOut := s.GCFrames(windowStart)
	require.Empty(t, errsOut)

	_, err = os.Stat(filepath.Join(s.FramesRoot(), old.Format("2006-01-02")))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(s.FramesRoot(), recent.Format("2006-01-02")))
	require.NoError(t, err)
}

func TestGCVideosRemovesOldFiles(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	oldPath := filepath.Join(s.VideosRoot(), "desktop_2026-01-01.mp4")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0o644))
	oldTime := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, oldTime, oldTime))

	errsOut := s.GCVideos(time.Now(), 3*24*time.Hour)
	require.Empty(t, errsOut)
	_, err = os.Stat(oldPath)
	require.True(t, os.IsNotExist(err))
}

func TestScratchPathUnique(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	a := s.ScratchPath(".tmp")
	b := s.ScratchPath(".tmp")
	require.NotEqual(t, a, b)
}
