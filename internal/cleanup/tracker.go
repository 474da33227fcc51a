// Package cleanup tracks every externally created artifact (containers,
// volumes, images, temp files) and guarantees a release attempt for each of
// them on every exit path. The tracker replaces the original trap-on-exit
// approach with an explicit deferred release pass wrapping the whole run.
package cleanup

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/olavtom/postgresql-container/internal/harness"
)

// Kind classifies a managed resource. Release order is reverse registration
// order, which naturally releases containers before the volumes and files
// they were created on top of.
type Kind string

const (
	// KindContainer is a container identifier known to the runtime.
	KindContainer Kind = "container"
	// KindVolume is a host directory mounted into a container.
	KindVolume Kind = "volume"
	// KindFile is a temp file or directory created for a scenario.
	KindFile Kind = "file"
	// KindImage is an image built during a scenario.
	KindImage Kind = "image"
)

// ReleaseFunc releases one resource of a kind. A failed release is logged,
// never propagated; the backing runtime may already be gone.
type ReleaseFunc func(ctx context.Context, id string) error

type resource struct {
	kind    Kind
	id      string
	created time.Time
}

// Tracker is the only cross-scenario shared mutable state in the harness.
// Registration is append-only during normal operation; ReleaseAll consumes
// the registry destructively at the end of the run. The mutex exists for the
// signal path, which may race the final release pass.
type Tracker struct {
	mu        sync.Mutex
	logger    harness.Logger
	releasers map[Kind]ReleaseFunc
	resources []resource
}

// NewTracker creates a tracker. Files get a default releaser (recursive
// removal); other kinds must be wired by the component that owns them.
func NewTracker(logger harness.Logger) *Tracker {
	t := &Tracker{
		logger:    logger,
		releasers: make(map[Kind]ReleaseFunc),
	}
	t.releasers[KindFile] = func(_ context.Context, id string) error {
		return os.RemoveAll(id)
	}
	t.releasers[KindVolume] = func(_ context.Context, id string) error {
		return os.RemoveAll(id)
	}
	return t
}

// SetReleaser wires the release function for a resource kind. The container
// runtime wrapper registers its own releasers for containers and images.
func (t *Tracker) SetReleaser(kind Kind, fn ReleaseFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releasers[kind] = fn
}

// Register records a created resource. Pure bookkeeping, never fails.
func (t *Tracker) Register(kind Kind, id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resources = append(t.resources, resource{kind: kind, id: id, created: time.Now()})
	t.logger.Debug("tracked %s %s\n", kind, id)
}

// Forget drops a resource that was already released by its owner (a scenario
// removing its own container mid-flight), so the final pass does not warn
// about it.
func (t *Tracker) Forget(kind Kind, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.resources) - 1; i >= 0; i-- {
		if t.resources[i].kind == kind && t.resources[i].id == id {
			t.resources = append(t.resources[:i], t.resources[i+1:]...)
			return
		}
	}
}

// Count returns the number of currently tracked resources.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.resources)
}

// ReleaseAll attempts to release every tracked resource in reverse
// registration order. A single failed release is logged as a warning and
// does not stop the pass: unrelated resources still get released. Calling
// ReleaseAll again on the emptied registry is a no-op.
func (t *Tracker) ReleaseAll(ctx context.Context) {
	t.mu.Lock()
	resources := t.resources
	t.resources = nil
	t.mu.Unlock()

	if len(resources) == 0 {
		return
	}
	t.logger.Info("releasing %d tracked resources\n", len(resources))

	for i := len(resources) - 1; i >= 0; i-- {
		res := resources[i]
		release, ok := t.releaser(res.kind)
		if !ok {
			t.logger.Warn("no releaser for %s %s, leaking it\n", res.kind, res.id)
			continue
		}
		if err := release(ctx, res.id); err != nil {
			t.logger.Warn("release %s %s: %v\n", res.kind, res.id, err)
			continue
		}
		t.logger.Debug("released %s %s\n", res.kind, res.id)
	}
}

func (t *Tracker) releaser(kind Kind) (ReleaseFunc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn, ok := t.releasers[kind]
	return fn, ok
}
