package scenarios

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/olavtom/postgresql-container/internal/harness"
	"github.com/olavtom/postgresql-container/internal/topology"
)

// runS2IBuild builds a derived image from the bundled application source
// (a postgresql-cfg directory with a tuning override) and verifies the
// override is live in the resulting instance. Skipped when the s2i tool or
// the source directory is not available.
func (e *Env) runS2IBuild(ctx context.Context) error {
	if _, err := exec.LookPath(e.Config.S2IBinary); err != nil {
		return fmt.Errorf("s2i binary %q not found: %w", e.Config.S2IBinary, harness.ErrSkip)
	}
	if _, err := os.Stat(e.Config.S2IAppPath); err != nil {
		return fmt.Errorf("s2i source directory %q not found: %w", e.Config.S2IAppPath, harness.ErrSkip)
	}

	creds := freshCreds()
	admin := freshAdminPassword()

	inst, err := e.Topology.BuildVariant(ctx, e.Config.S2IAppPath, topology.InstanceSpec{
		Name:          "s2i",
		Env:           userEnv(creds, admin),
		ReadyAs:       creds,
		AdminPassword: admin,
	})
	if err != nil {
		return err
	}

	// test/test-app/postgresql-cfg/10-shared-buffers.conf pins this value.
	got, err := e.DB.Setting(ctx, inst.Addr, creds, "shared_buffers")
	if err != nil {
		return err
	}
	if got != "16MB" {
		return fmt.Errorf("derived image did not apply postgresql-cfg: shared_buffers = %q, expected \"16MB\"", got)
	}
	return nil
}
