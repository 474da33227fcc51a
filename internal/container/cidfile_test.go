package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForCIDFile_AlreadyWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.cid")
	require.NoError(t, os.WriteFile(path, []byte("abc123\n"), 0o644))

	id, err := waitForCIDFile(context.Background(), path, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

func TestWaitForCIDFile_WrittenWhileWaiting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.cid")

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(path, []byte("late456\n"), 0o644)
	}()

	id, err := waitForCIDFile(context.Background(), path, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late456", id)
}

func TestWaitForCIDFile_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.cid")

	_, err := waitForCIDFile(context.Background(), path, 200*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not written within")
}

func TestWaitForCIDFile_EmptyFileDoesNotCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.cid")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(path, []byte("filled789\n"), 0o644)
	}()

	id, err := waitForCIDFile(context.Background(), path, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "filled789", id)
}

func TestWaitForCIDFile_ContextCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.cid")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := waitForCIDFile(ctx, path, 30*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
