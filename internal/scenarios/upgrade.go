package scenarios

import (
	"context"
	"fmt"

	"github.com/olavtom/postgresql-container/internal/harness"
	"github.com/olavtom/postgresql-container/internal/topology"
)

// runUpgrade seeds data on a data directory created by the previous image
// version, then starts the image under test on the same directory with
// POSTGRESQL_UPGRADE=copy and verifies the data survived. Skipped unless
// UPGRADE_FROM_IMAGE names the older image.
func (e *Env) runUpgrade(ctx context.Context) error {
	from := e.Config.UpgradeFromImage
	if from == "" {
		return fmt.Errorf("UPGRADE_FROM_IMAGE not set: %w", harness.ErrSkip)
	}

	if err := e.Runtime.Pull(ctx, from); err != nil {
		return err
	}

	creds := freshCreds()
	admin := freshAdminPassword()

	volume, err := e.tempVolume("upgrade")
	if err != nil {
		return err
	}
	mount := volume + ":" + dataDir + ":Z"

	old, err := e.Topology.Single(ctx, topology.InstanceSpec{
		Name:          "upgrade-old",
		Image:         from,
		Env:           userEnv(creds, admin),
		Volumes:       []string{mount},
		ReadyAs:       creds,
		AdminPassword: admin,
	})
	if err != nil {
		return fmt.Errorf("start previous version: %w", err)
	}

	if err := e.DB.Exec(ctx, old.Addr, creds,
		"CREATE TABLE upgrade_probe (id integer); INSERT INTO upgrade_probe VALUES (42);"); err != nil {
		return err
	}
	if err := e.Runtime.Stop(ctx, old.Handle); err != nil {
		return err
	}
	if err := e.Runtime.Remove(ctx, old.Handle); err != nil {
		return err
	}

	env := userEnv(creds, admin)
	env["POSTGRESQL_UPGRADE"] = "copy"

	upgraded, err := e.Topology.Single(ctx, topology.InstanceSpec{
		Name:          "upgrade-new",
		Env:           env,
		Volumes:       []string{mount},
		ReadyAs:       creds,
		AdminPassword: admin,
	})
	if err != nil {
		return fmt.Errorf("start upgraded version: %w", err)
	}

	got, err := e.DB.QueryValue(ctx, upgraded.Addr, creds, "SELECT id FROM upgrade_probe;")
	if err != nil {
		return fmt.Errorf("data not readable after upgrade: %w", err)
	}
	if got != "42" {
		return fmt.Errorf("upgrade_probe holds %q after upgrade, expected \"42\"", got)
	}
	return nil
}
