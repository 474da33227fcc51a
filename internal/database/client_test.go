package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olavtom/postgresql-container/internal/command"
	"github.com/olavtom/postgresql-container/internal/harness"
)

type fakeRunner struct {
	lastName string
	lastArgs []string
	lastOpts command.Options
	result   command.Result
	err      error
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, opts command.Options) (command.Result, error) {
	f.lastName = name
	f.lastArgs = args
	f.lastOpts = opts
	return f.result, f.err
}

func newTestClient(result command.Result) (*Client, *fakeRunner) {
	runner := &fakeRunner{result: result}
	return NewClient("psql", runner, harness.NewSilentLogger()), runner
}

func TestURI(t *testing.T) {
	creds := Credentials{User: "user1", Password: "secret", Database: "testdb"}
	assert.Equal(t, "postgresql://user1@172.17.0.2:5432/testdb", URI("172.17.0.2", creds))
}

func TestAdmin(t *testing.T) {
	creds := Admin("adminpass")
	assert.Equal(t, Credentials{User: "postgres", Password: "adminpass", Database: "postgres"}, creds)
}

func TestQuery_InvocationShape(t *testing.T) {
	client, runner := newTestClient(command.Result{Stdout: "1\n"})
	creds := Credentials{User: "u", Password: "pw", Database: "db"}

	_, err := client.Query(context.Background(), "10.0.0.1", creds, "SELECT 1;")
	require.NoError(t, err)

	assert.Equal(t, "psql", runner.lastName)
	assert.Equal(t, []string{"postgresql://u@10.0.0.1:5432/db", "-At", "-c", "SELECT 1;"}, runner.lastArgs)
	// The password never appears on the command line.
	assert.Contains(t, runner.lastOpts.Env, "PGPASSWORD=pw")
	assert.Contains(t, runner.lastOpts.Env, "PGCONNECT_TIMEOUT=5")
}

func TestQueryValue_TrimsResult(t *testing.T) {
	client, _ := newTestClient(command.Result{Stdout: "  42\n"})

	got, err := client.QueryValue(context.Background(), "addr", Credentials{User: "u"}, "SELECT id FROM t;")
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestQueryValue_NonZeroExitIsAnError(t *testing.T) {
	client, _ := newTestClient(command.Result{ExitCode: 2, Stderr: "connection refused"})

	_, err := client.QueryValue(context.Background(), "addr", Credentials{User: "u"}, "SELECT 1;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCanLogin(t *testing.T) {
	admitted, _ := newTestClient(command.Result{ExitCode: 0, Stdout: "1\n"})
	assert.True(t, admitted.CanLogin(context.Background(), "addr", Credentials{User: "u"}))

	denied, _ := newTestClient(command.Result{ExitCode: 2, Stderr: "password authentication failed"})
	assert.False(t, denied.CanLogin(context.Background(), "addr", Credentials{User: "u"}))
}

func TestReplicaAddresses(t *testing.T) {
	t.Run("strips the netmask suffix", func(t *testing.T) {
		client, runner := newTestClient(command.Result{Stdout: "172.17.0.3/32\n172.17.0.4\n"})

		addrs, err := client.ReplicaAddresses(context.Background(), "172.17.0.2", Admin("pw"))
		require.NoError(t, err)
		assert.Equal(t, []string{"172.17.0.3", "172.17.0.4"}, addrs)
		assert.Contains(t, runner.lastArgs, "SELECT client_addr FROM pg_stat_replication;")
	})

	t.Run("no replicas yet", func(t *testing.T) {
		client, _ := newTestClient(command.Result{Stdout: "\n"})

		addrs, err := client.ReplicaAddresses(context.Background(), "172.17.0.2", Admin("pw"))
		require.NoError(t, err)
		assert.Empty(t, addrs)
	})
}

func TestSetting(t *testing.T) {
	client, runner := newTestClient(command.Result{Stdout: "64MB\n"})

	got, err := client.Setting(context.Background(), "addr", Credentials{User: "u"}, "shared_buffers")
	require.NoError(t, err)
	assert.Equal(t, "64MB", got)
	assert.Contains(t, runner.lastArgs, "SHOW shared_buffers;")
}
