package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solarlapse/heliopipe/internal/pipeline"
	"github.com/solarlapse/heliopipe/internal/runctl"
)

func sampleRunState() *pipeline.RunState {
	s := pipeline.NewRunState(10)
	s.IncSucceeded()
	s.IncSucceeded()
	s.IncFailed("Unavailable")
	s.SetPhase(pipeline.PhaseDone)
	return s
}

func TestSaveAndLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.json")
	h := FromRunState(sampleRunState().Snapshot(), time.Now().UTC(), runctl.ExitSuccess, nil)
	require.NoError(t, Save(path, h))

	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, h.FramesSucceeded, loaded.FramesSucceeded)
	require.Equal(t, h.FramesFailed, loaded.FramesFailed)
}

func TestLoadMissingReturnsNotExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestPrintIncludesCounts(t *testing.T) {
	h := FromRunState(sampleRunState().Snapshot(), time.Now().UTC(), runctl.ExitSuccess, []RenditionSummary{
		{Name: "desktop", OutputPath: "/videos/desktop_2026-07-30.mp4", FramesSelected: 2},
	})
	var buf bytes.Buffer
	Print(&buf, h)
	out := buf.String()
	require.Contains(t, out, "succeeded=2")
	require.Contains(t, out, "failed=1")
	require.Contains(t, out, "desktop")
}
