package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// waitForCIDFile blocks until the runtime has written the container
// identifier file. The detached create returns before the cidfile is
// guaranteed to exist, so the file's appearance is watched with fsnotify; a
// coarse stat ticker backs the watcher up because some runtimes write the
// file before the watch is in place.
func waitForCIDFile(ctx context.Context, path string, timeout time.Duration) (string, error) {
	if id, ok := readCIDFile(path); ok {
		return id, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("watch cidfile: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return "", fmt.Errorf("watch cidfile directory: %w", err)
	}

	// The file may have appeared between the first read and the watch.
	if id, ok := readCIDFile(path); ok {
		return id, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	fallback := time.NewTicker(500 * time.Millisecond)
	defer fallback.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", fmt.Errorf("cidfile %s not written within %v", path, timeout)
		case event := <-watcher.Events:
			if event.Name != path {
				continue
			}
			if id, ok := readCIDFile(path); ok {
				return id, nil
			}
		case err := <-watcher.Errors:
			return "", fmt.Errorf("watch cidfile: %w", err)
		case <-fallback.C:
			if id, ok := readCIDFile(path); ok {
				return id, nil
			}
		}
	}
}

// readCIDFile returns the container identifier once the runtime has fully
// written it. A present-but-empty file means the write is still in flight.
func readCIDFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}
