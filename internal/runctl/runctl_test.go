package runctl

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireLockFreshSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "production.lock")
	release, code, err := AcquireLock(path, 12*time.Hour)
	require.NoError(t, err)
	require.Equal(t, ExitSuccess, code)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
	release()
	_, statErr = os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestAcquireLockBusyWhenFreshAndHeldByLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "production.lock")
	info := LockInfo{PID: os.Getpid(), StartedAt: time.Now().UTC()}
	data, err := json.Marshal(info)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, code, err := AcquireLock(path, 12*time.Hour)
	require.Error(t, err)
	require.Equal(t, ExitBusy, code)
}

func TestAcquireLockRemovesStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "production.lock")
	info := LockInfo{PID: os.Getpid(), StartedAt: time.Now().UTC().Add(-13 * time.Hour)}
	data, err := json.Marshal(info)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	release, code, err := AcquireLock(path, 12*time.Hour)
	require.NoError(t, err)
	require.Equal(t, ExitSuccess, code)
	release()
}

func TestCheckDiskSpaceOnTempDirSucceeds(t *testing.T) {
	code, err := CheckDiskSpace(t.TempDir(), 0)
	require.NoError(t, err)
	require.Equal(t, ExitSuccess, code)
}

func TestCheckDiskSpaceFailsUnderUnreasonableFloor(t *testing.T) {
	code, err := CheckDiskSpace(t.TempDir(), 1<<40) // 1 zebibyte floor, always fails
	require.Error(t, err)
	require.Equal(t, ExitInsufficientDisk, code)
}

func TestExitCodeForRun(t *testing.T) {
	require.Equal(t, ExitSuccess, ExitCodeForRun(100, 100, 0))
	require.Equal(t, ExitNoFrames, ExitCodeForRun(100, 0, 100))
	require.Equal(t, ExitPartialErrors, ExitCodeForRun(100, 85, 15))
	require.Equal(t, ExitSuccess, ExitCodeForRun(100, 91, 9))
}

func TestWithCancellationStopsOnExplicitStop(t *testing.T) {
	ctx, stop := WithCancellation(context.Background())
	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before stop")
	default:
	}
	stop()
}
