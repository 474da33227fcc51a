package scenarios

import (
	"context"
	"fmt"

	"github.com/olavtom/postgresql-container/internal/database"
	"github.com/olavtom/postgresql-container/internal/topology"
)

// runAuthentication walks the login admission matrix of a single instance:
// the provisioned user and the admin get in, wrong or foreign credentials
// are turned away.
func (e *Env) runAuthentication(ctx context.Context) error {
	creds := freshCreds()
	admin := freshAdminPassword()

	inst, err := e.Topology.Single(ctx, topology.InstanceSpec{
		Name:          "auth",
		Env:           userEnv(creds, admin),
		ReadyAs:       creds,
		AdminPassword: admin,
	})
	if err != nil {
		return err
	}

	if !e.DB.CanLogin(ctx, inst.Addr, database.Admin(admin)) {
		return fmt.Errorf("admin login was denied")
	}

	wrongPassword := creds
	wrongPassword.Password = "definitely-wrong"
	if e.DB.CanLogin(ctx, inst.Addr, wrongPassword) {
		return fmt.Errorf("login with a wrong password was admitted")
	}

	wrongDatabase := creds
	wrongDatabase.Database = "postgres"
	if e.DB.CanLogin(ctx, inst.Addr, wrongDatabase) {
		return fmt.Errorf("user login into the postgres database was admitted")
	}

	if err := e.DB.Exec(ctx, inst.Addr, creds, "CREATE TABLE auth_probe (id integer);"); err != nil {
		return fmt.Errorf("provisioned user cannot write to its database: %w", err)
	}
	return nil
}

// runPasswordChange restarts a container on the same data directory with a
// changed POSTGRESQL_PASSWORD and verifies the new password wins.
func (e *Env) runPasswordChange(ctx context.Context) error {
	creds := freshCreds()
	admin := freshAdminPassword()

	volume, err := e.tempVolume("pwchange")
	if err != nil {
		return err
	}
	mount := volume + ":" + dataDir + ":Z"

	inst, err := e.Topology.Single(ctx, topology.InstanceSpec{
		Name:          "pwchange",
		Env:           userEnv(creds, admin),
		Volumes:       []string{mount},
		ReadyAs:       creds,
		AdminPassword: admin,
	})
	if err != nil {
		return err
	}

	if err := e.DB.Exec(ctx, inst.Addr, creds, "CREATE TABLE pw_probe (id integer);"); err != nil {
		return err
	}
	if err := e.Runtime.Stop(ctx, inst.Handle); err != nil {
		return err
	}
	if err := e.Runtime.Remove(ctx, inst.Handle); err != nil {
		return err
	}

	changed := creds
	changed.Password = creds.Password + "-changed"

	inst, err = e.Topology.Single(ctx, topology.InstanceSpec{
		Name:          "pwchange",
		Env:           userEnv(changed, admin),
		Volumes:       []string{mount},
		ReadyAs:       changed,
		AdminPassword: admin,
	})
	if err != nil {
		return err
	}

	if e.DB.CanLogin(ctx, inst.Addr, creds) {
		return fmt.Errorf("old password still admitted after change")
	}
	if _, err := e.DB.QueryValue(ctx, inst.Addr, changed, "SELECT count(*) FROM pw_probe;"); err != nil {
		return fmt.Errorf("data did not survive the password change restart: %w", err)
	}
	return nil
}
