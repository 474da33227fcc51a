package scenarios

import (
	"context"
	"fmt"
	"strings"

	"github.com/olavtom/postgresql-container/internal/database"
	"github.com/olavtom/postgresql-container/internal/topology"
)

// runConfiguration verifies that the image translates its tuning environment
// variables into server settings, and that the server version matches the
// version the image claims to ship.
func (e *Env) runConfiguration(ctx context.Context) error {
	creds := freshCreds()
	admin := freshAdminPassword()

	env := userEnv(creds, admin)
	env["POSTGRESQL_MAX_CONNECTIONS"] = "42"
	env["POSTGRESQL_SHARED_BUFFERS"] = "64MB"

	inst, err := e.Topology.Single(ctx, topology.InstanceSpec{
		Name:          "config",
		Env:           env,
		ReadyAs:       creds,
		AdminPassword: admin,
	})
	if err != nil {
		return err
	}

	for setting, want := range map[string]string{
		"max_connections": "42",
		"shared_buffers":  "64MB",
	} {
		got, err := e.DB.Setting(ctx, inst.Addr, creds, setting)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("setting %s: expected %q, got %q", setting, want, got)
		}
	}

	if e.Config.Version != "" {
		got, err := e.DB.QueryValue(ctx, inst.Addr, database.Admin(admin),
			"SELECT current_setting('server_version');")
		if err != nil {
			return err
		}
		if !strings.HasPrefix(got, e.Config.Version) {
			return fmt.Errorf("server version %q does not match expected major version %q",
				got, e.Config.Version)
		}
	}
	return nil
}
