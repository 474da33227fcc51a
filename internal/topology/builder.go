// Package topology composes the container shapes the scenarios run against:
// a single database instance, a primary with streaming replicas, and an
// instance of an image derived through a source-to-image build.
package topology

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olavtom/postgresql-container/internal/cleanup"
	"github.com/olavtom/postgresql-container/internal/command"
	"github.com/olavtom/postgresql-container/internal/config"
	"github.com/olavtom/postgresql-container/internal/container"
	"github.com/olavtom/postgresql-container/internal/database"
	"github.com/olavtom/postgresql-container/internal/harness"
	"github.com/olavtom/postgresql-container/internal/wait"
)

// ContainerRuntime is the runtime surface the builder needs. Satisfied by
// *container.Runtime; faked in tests.
type ContainerRuntime interface {
	Create(ctx context.Context, opts container.CreateOptions) (*container.Handle, error)
	CreateExpectFailure(ctx context.Context, opts container.CreateOptions, wait time.Duration) error
	IPAddress(ctx context.Context, h *container.Handle) (string, error)
	Kill(ctx context.Context, h *container.Handle) error
	Remove(ctx context.Context, h *container.Handle) error
	DumpLogs(ctx context.Context, h *container.Handle)
}

// DatabaseClient is the client surface the builder needs for readiness.
type DatabaseClient interface {
	CanLogin(ctx context.Context, addr string, creds database.Credentials) bool
}

// InstanceSpec describes one database instance to stand up.
type InstanceSpec struct {
	// Name is the logical container name base.
	Name string
	// Image overrides the image under test; empty uses the configured one.
	Image string
	// Env is the POSTGRESQL_* environment for the container.
	Env map[string]string
	// Volumes are host:container mount specifications.
	Volumes []string
	// ReadyAs is the login the readiness poll uses. Zero value means the
	// instance is awaited through the admin login.
	ReadyAs database.Credentials
	// AdminPassword is the POSTGRESQL_ADMIN_PASSWORD the instance was
	// given; required when ReadyAs is zero.
	AdminPassword string
}

// Instance is one running database container with its resolved address.
type Instance struct {
	Handle *container.Handle
	Addr   string
	Spec   InstanceSpec
}

// Cluster is a primary plus an ordered set of replicas. All replica handles
// are resolved to addresses before the cluster is returned, which is what
// the replication-visibility checks depend on.
type Cluster struct {
	Primary  *Instance
	Replicas []*Instance

	// Replication credentials shared by every member.
	MasterUser     string
	MasterPassword string
	AdminPassword  string
	// UserCreds is the regular application login provisioned on the primary.
	UserCreds database.Credentials
}

// Builder stands up topologies on top of the container runtime.
type Builder struct {
	cfg     config.Config
	runtime ContainerRuntime
	db      DatabaseClient
	runner  command.Runner
	tracker *cleanup.Tracker
	poller  *wait.Poller
	logger  harness.Logger
}

// NewBuilder creates a topology builder.
func NewBuilder(cfg config.Config, runtime ContainerRuntime, db DatabaseClient, runner command.Runner, tracker *cleanup.Tracker, poller *wait.Poller, logger harness.Logger) *Builder {
	return &Builder{
		cfg:     cfg,
		runtime: runtime,
		db:      db,
		runner:  runner,
		tracker: tracker,
		poller:  poller,
		logger:  logger,
	}
}

// Single creates one instance and waits for it to admit the readiness login.
// Creation failures propagate immediately; a readiness poll exhaustion dumps
// the container logs and fails the scenario.
func (b *Builder) Single(ctx context.Context, spec InstanceSpec) (*Instance, error) {
	image := spec.Image
	if image == "" {
		image = b.cfg.Image
	}

	handle, err := b.runtime.Create(ctx, container.CreateOptions{
		Name:    spec.Name,
		Image:   image,
		Env:     spec.Env,
		Volumes: spec.Volumes,
	})
	if err != nil {
		return nil, err
	}

	addr, err := b.runtime.IPAddress(ctx, handle)
	if err != nil {
		return nil, err
	}

	inst := &Instance{Handle: handle, Addr: addr, Spec: spec}
	if err := b.waitReady(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// MustFailCreate asserts that a container creation with the given
// environment fails within the configured bounded wait.
func (b *Builder) MustFailCreate(ctx context.Context, name string, env map[string]string) error {
	return b.runtime.CreateExpectFailure(ctx, container.CreateOptions{
		Name:  name,
		Image: b.cfg.Image,
		Env:   env,
	}, b.cfg.CreateFailTimeout)
}

// Cluster creates a primary and replicaCount replicas wired to it. Every
// replica receives the primary's resolved address at creation time.
func (b *Builder) Cluster(ctx context.Context, name string, replicaCount int, user database.Credentials, adminPassword string) (*Cluster, error) {
	c := &Cluster{
		MasterUser:     "repl",
		MasterPassword: "replpass-" + uuid.NewString()[:8],
		AdminPassword:  adminPassword,
		UserCreds:      user,
	}

	primary, err := b.createPrimary(ctx, name, c)
	if err != nil {
		return nil, fmt.Errorf("create primary: %w", err)
	}
	c.Primary = primary

	for i := 0; i < replicaCount; i++ {
		replica, err := b.createReplica(ctx, fmt.Sprintf("%s-replica%d", name, i), c)
		if err != nil {
			return nil, fmt.Errorf("create replica %d: %w", i, err)
		}
		c.Replicas = append(c.Replicas, replica)
	}
	return c, nil
}

// ReplacePrimary kills and removes the current primary, stands up a new one
// with the same credentials, and re-propagates the new primary's address to
// every live replica. The address is injected at creation time, so
// propagation means recreating the replica containers against the new
// primary.
func (b *Builder) ReplacePrimary(ctx context.Context, c *Cluster) error {
	old := c.Primary
	if err := b.runtime.Kill(ctx, old.Handle); err != nil {
		return fmt.Errorf("kill primary: %w", err)
	}
	if err := b.runtime.Remove(ctx, old.Handle); err != nil {
		return fmt.Errorf("remove primary: %w", err)
	}

	primary, err := b.createPrimary(ctx, old.Spec.Name, c)
	if err != nil {
		return fmt.Errorf("create replacement primary: %w", err)
	}
	c.Primary = primary

	for i, replica := range c.Replicas {
		if replica.Handle.Removed() {
			continue
		}
		if err := b.runtime.Remove(ctx, replica.Handle); err != nil {
			return fmt.Errorf("remove replica %d: %w", i, err)
		}
		fresh, err := b.createReplica(ctx, replica.Spec.Name, c)
		if err != nil {
			return fmt.Errorf("recreate replica %d: %w", i, err)
		}
		c.Replicas[i] = fresh
	}
	return nil
}

// BuildVariant builds a derived image from a source directory via the s2i
// tool and stands up a single instance of the result. The derived image is
// tracked for removal at the end of the run.
func (b *Builder) BuildVariant(ctx context.Context, srcDir string, spec InstanceSpec) (*Instance, error) {
	tag := fmt.Sprintf("%s-s2i-%s", spec.Name, uuid.NewString()[:8])

	res, err := b.runner.Run(ctx, b.cfg.S2IBinary,
		[]string{"build", srcDir, b.cfg.Image, tag}, command.Options{})
	if err != nil {
		return nil, fmt.Errorf("s2i build: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("s2i build of %s exited %d: %s",
			srcDir, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	b.tracker.Register(cleanup.KindImage, tag)
	b.logger.Info("🏗️  built derived image %s from %s\n", tag, srcDir)

	spec.Image = tag
	return b.Single(ctx, spec)
}

func (b *Builder) createPrimary(ctx context.Context, name string, c *Cluster) (*Instance, error) {
	env := map[string]string{
		"POSTGRESQL_MASTER_USER":     c.MasterUser,
		"POSTGRESQL_MASTER_PASSWORD": c.MasterPassword,
		"POSTGRESQL_USER":            c.UserCreds.User,
		"POSTGRESQL_PASSWORD":        c.UserCreds.Password,
		"POSTGRESQL_DATABASE":        c.UserCreds.Database,
		"POSTGRESQL_ADMIN_PASSWORD":  c.AdminPassword,
	}
	return b.Single(ctx, InstanceSpec{
		Name:          name,
		Env:           env,
		ReadyAs:       c.UserCreds,
		AdminPassword: c.AdminPassword,
	})
}

func (b *Builder) createReplica(ctx context.Context, name string, c *Cluster) (*Instance, error) {
	env := map[string]string{
		"POSTGRESQL_MASTER_IP":       c.Primary.Addr,
		"POSTGRESQL_MASTER_USER":     c.MasterUser,
		"POSTGRESQL_MASTER_PASSWORD": c.MasterPassword,
		"POSTGRESQL_ADMIN_PASSWORD":  c.AdminPassword,
	}
	return b.Single(ctx, InstanceSpec{
		Name:          name,
		Env:           env,
		ReadyAs:       database.Admin(c.AdminPassword),
		AdminPassword: c.AdminPassword,
	})
}

// waitReady polls the instance through the database client until the
// readiness login is admitted.
func (b *Builder) waitReady(ctx context.Context, inst *Instance) error {
	creds := inst.Spec.ReadyAs
	if creds == (database.Credentials{}) {
		creds = database.Admin(inst.Spec.AdminPassword)
	}

	ok := b.poller.Poll(ctx, wait.Condition{
		Name:     fmt.Sprintf("%s ready", inst.Handle.Name),
		Attempts: b.cfg.PollAttempts,
		Delay:    b.cfg.PollDelay,
		Predicate: func(ctx context.Context) bool {
			return b.db.CanLogin(ctx, inst.Addr, creds)
		},
	})
	if !ok {
		b.runtime.DumpLogs(ctx, inst.Handle)
		return fmt.Errorf("instance %s did not become ready within %d attempts",
			inst.Handle.Name, b.cfg.PollAttempts)
	}
	return nil
}
