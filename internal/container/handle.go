package container

import (
	"fmt"
	"sync"
)

// Handle maps a logical container name to the runtime-assigned identifier.
// A handle is only valid while its backing container exists: after Remove,
// every lookup through it fails explicitly instead of returning stale data.
type Handle struct {
	// Name is the logical name the scenario chose (also the --name arg).
	Name string
	// ID is the runtime-assigned container identifier.
	ID string

	mu      sync.Mutex
	ip      string
	removed bool
}

// Short returns the familiar 12-character identifier prefix.
func (h *Handle) Short() string {
	if len(h.ID) > 12 {
		return h.ID[:12]
	}
	return h.ID
}

// Removed reports whether the backing container has been removed.
func (h *Handle) Removed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removed
}

func (h *Handle) markRemoved() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = true
	h.ip = ""
}

func (h *Handle) cachedIP() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ip, h.ip != ""
}

func (h *Handle) cacheIP(ip string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ip = ip
}

func (h *Handle) check() error {
	if h == nil || h.ID == "" {
		return fmt.Errorf("container handle is not initialized")
	}
	if h.Removed() {
		return fmt.Errorf("container %s (%s) has been removed", h.Name, h.Short())
	}
	return nil
}
