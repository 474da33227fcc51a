// Package scenarios contains the registered test cases for the PostgreSQL
// container image: configuration and authentication surfaces, creation
// failure modes, streaming replication, the s2i build variant and the data
// upgrade path.
package scenarios

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/olavtom/postgresql-container/internal/cleanup"
	"github.com/olavtom/postgresql-container/internal/command"
	"github.com/olavtom/postgresql-container/internal/config"
	"github.com/olavtom/postgresql-container/internal/container"
	"github.com/olavtom/postgresql-container/internal/database"
	"github.com/olavtom/postgresql-container/internal/harness"
	"github.com/olavtom/postgresql-container/internal/topology"
	"github.com/olavtom/postgresql-container/internal/wait"
)

// dataDir is where the image keeps the database cluster, the mount target
// for persistent-data scenarios.
const dataDir = "/var/lib/pgsql/data"

// Env bundles the shared components every scenario runs against. Scenarios
// share nothing else; each stands up and tears down its own containers.
type Env struct {
	Config   config.Config
	Runtime  *container.Runtime
	DB       *database.Client
	Topology *topology.Builder
	Poller   *wait.Poller
	Runner   command.Runner
	Tracker  *cleanup.Tracker
	Logger   harness.Logger
}

// Register adds the full scenario suite to the registry, in the order the
// suite has always run: cheap configuration checks first, the expensive
// replication and build scenarios last.
func Register(reg *harness.Registry, env *Env) {
	reg.MustAdd(harness.Scenario{
		Name:        "configuration",
		Description: "tuning variables are applied to the server configuration",
		Run:         env.runConfiguration,
	})
	reg.MustAdd(harness.Scenario{
		Name:        "authentication",
		Description: "login admission for admin, user and rejected credentials",
		Run:         env.runAuthentication,
	})
	reg.MustAdd(harness.Scenario{
		Name:        "password-change",
		Description: "password changes apply across a container restart on the same data",
		Run:         env.runPasswordChange,
	})
	reg.MustAdd(harness.Scenario{
		Name:        "invalid-configuration",
		Description: "invalid environment combinations fail container creation fast",
		Run:         env.runInvalidConfiguration,
	})
	reg.MustAdd(harness.Scenario{
		Name:        "replication",
		Description: "primary/replica cluster convergence and primary replacement",
		Run:         env.runReplication,
	})
	reg.MustAdd(harness.Scenario{
		Name:        "s2i-build",
		Description: "image built from a source directory applies its configuration",
		Run:         env.runS2IBuild,
	})
	reg.MustAdd(harness.Scenario{
		Name:        "upgrade",
		Description: "data written on the previous version survives an in-place upgrade",
		Run:         env.runUpgrade,
	})
}

// freshCreds returns a unique application login for one scenario.
func freshCreds() database.Credentials {
	suffix := uuid.NewString()[:8]
	return database.Credentials{
		User:     "user" + suffix[:4],
		Password: "pass-" + suffix,
		Database: "testdb",
	}
}

// freshAdminPassword returns a unique admin password for one scenario.
func freshAdminPassword() string {
	return "admin-" + uuid.NewString()[:8]
}

// tempVolume creates a tracked host directory to mount as the data volume.
// The image runs as a random UID, so the directory must be world-writable.
func (e *Env) tempVolume(name string) (string, error) {
	dir, err := os.MkdirTemp("", "postgresql-container-"+name+"-*")
	if err != nil {
		return "", fmt.Errorf("create data volume: %w", err)
	}
	if err := os.Chmod(dir, 0o777); err != nil {
		return "", fmt.Errorf("open up data volume permissions: %w", err)
	}
	e.Tracker.Register(cleanup.KindVolume, dir)
	return dir, nil
}

// userEnv renders the single-instance environment for an application login
// plus admin password.
func userEnv(creds database.Credentials, adminPassword string) map[string]string {
	return map[string]string{
		"POSTGRESQL_USER":           creds.User,
		"POSTGRESQL_PASSWORD":       creds.Password,
		"POSTGRESQL_DATABASE":       creds.Database,
		"POSTGRESQL_ADMIN_PASSWORD": adminPassword,
	}
}
