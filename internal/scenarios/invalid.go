package scenarios

import (
	"context"
	"fmt"
	"strings"
)

// runInvalidConfiguration asserts that the image refuses to start under
// environment combinations its contract forbids, and that the refusal is
// fast: a creation still hanging after the bounded wait is force-killed and
// counted as a failure.
func (e *Env) runInvalidConfiguration(ctx context.Context) error {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "user-without-password",
			env: map[string]string{
				"POSTGRESQL_USER":     "user",
				"POSTGRESQL_DATABASE": "db",
			},
		},
		{
			name: "database-without-user",
			env: map[string]string{
				"POSTGRESQL_DATABASE": "db",
			},
		},
		{
			// POSTGRESQL_USER=postgres claims the same identity that
			// POSTGRESQL_ADMIN_PASSWORD configures; the image must refuse
			// the pair instead of picking a winner.
			name: "conflicting-admin-identity",
			env: map[string]string{
				"POSTGRESQL_USER":           "postgres",
				"POSTGRESQL_PASSWORD":       "pass",
				"POSTGRESQL_DATABASE":       "db",
				"POSTGRESQL_ADMIN_PASSWORD": "adminpass",
			},
		},
		{
			name: "over-long-username",
			env: map[string]string{
				"POSTGRESQL_USER":     strings.Repeat("u", 64),
				"POSTGRESQL_PASSWORD": "pass",
				"POSTGRESQL_DATABASE": "db",
			},
		},
	}

	for _, tc := range cases {
		if err := e.Topology.MustFailCreate(ctx, "invalid-"+tc.name, tc.env); err != nil {
			return fmt.Errorf("case %s: %w", tc.name, err)
		}
		e.Logger.Info("   ✅ %s rejected\n", tc.name)
	}
	return nil
}
