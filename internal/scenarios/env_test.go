package scenarios

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olavtom/postgresql-container/internal/cleanup"
	"github.com/olavtom/postgresql-container/internal/database"
	"github.com/olavtom/postgresql-container/internal/harness"
)

func TestRegister_SuiteOrder(t *testing.T) {
	registry := harness.NewRegistry()
	Register(registry, &Env{})

	assert.Equal(t, []string{
		"configuration",
		"authentication",
		"password-change",
		"invalid-configuration",
		"replication",
		"s2i-build",
		"upgrade",
	}, registry.Names())
}

func TestFreshCreds_UniquePerScenario(t *testing.T) {
	a := freshCreds()
	b := freshCreds()

	assert.NotEqual(t, a.User, b.User)
	assert.NotEqual(t, a.Password, b.Password)
	assert.Equal(t, "testdb", a.Database)
	assert.NotEqual(t, freshAdminPassword(), freshAdminPassword())
}

func TestUserEnv_RendersTheImageContract(t *testing.T) {
	creds := database.Credentials{User: "u", Password: "p", Database: "d"}

	env := userEnv(creds, "adm")

	assert.Equal(t, map[string]string{
		"POSTGRESQL_USER":           "u",
		"POSTGRESQL_PASSWORD":       "p",
		"POSTGRESQL_DATABASE":       "d",
		"POSTGRESQL_ADMIN_PASSWORD": "adm",
	}, env)
}

func TestTempVolume_TrackedAndWorldWritable(t *testing.T) {
	tracker := cleanup.NewTracker(harness.NewSilentLogger())
	env := &Env{Tracker: tracker}

	dir, err := env.tempVolume("probe")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o777), info.Mode().Perm())
	assert.Equal(t, 1, tracker.Count())
}
