// Package database wraps the PostgreSQL client CLI. Queries are issued
// against a connection URI (user, address, port, database) with the password
// supplied through the environment; the harness consumes only exit codes and
// stdout text.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/olavtom/postgresql-container/internal/command"
	"github.com/olavtom/postgresql-container/internal/harness"
)

// DefaultPort is the PostgreSQL server port the image exposes.
const DefaultPort = 5432

// Credentials identify one database login.
type Credentials struct {
	User     string
	Password string
	Database string
}

// Admin returns the superuser login for the instance, given the admin
// password the container was created with. The postgres database always
// exists, so it is the admin's connect target.
func Admin(password string) Credentials {
	return Credentials{User: "postgres", Password: password, Database: "postgres"}
}

// Client invokes the psql binary against containers under test.
type Client struct {
	psql   string
	runner command.Runner
	logger harness.Logger
}

// NewClient creates a database client around the given psql binary.
func NewClient(psql string, runner command.Runner, logger harness.Logger) *Client {
	return &Client{psql: psql, runner: runner, logger: logger}
}

// URI renders the connection URI for an address and login.
func URI(addr string, creds Credentials) string {
	return fmt.Sprintf("postgresql://%s@%s:%d/%s", creds.User, addr, DefaultPort, creds.Database)
}

// Query runs one SQL statement and returns the raw result. A non-zero exit
// code is not an error here: login-denial assertions depend on it.
func (c *Client) Query(ctx context.Context, addr string, creds Credentials, sql string) (command.Result, error) {
	args := []string{URI(addr, creds), "-At", "-c", sql}
	opts := command.Options{Env: []string{"PGPASSWORD=" + creds.Password, "PGCONNECT_TIMEOUT=5"}}
	return c.runner.Run(ctx, c.psql, args, opts)
}

// QueryValue runs one SQL statement that must succeed and returns its single
// trimmed result value.
func (c *Client) QueryValue(ctx context.Context, addr string, creds Credentials, sql string) (string, error) {
	res, err := c.Query(ctx, addr, creds, sql)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("query %q on %s as %s: exit %d: %s",
			sql, addr, creds.User, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Exec runs one SQL statement that must succeed, discarding output.
func (c *Client) Exec(ctx context.Context, addr string, creds Credentials, sql string) error {
	_, err := c.QueryValue(ctx, addr, creds, sql)
	return err
}

// CanLogin reports whether the login is admitted. Used both ways: valid
// credentials must get in, invalid ones must be turned away.
func (c *Client) CanLogin(ctx context.Context, addr string, creds Credentials) bool {
	res, err := c.Query(ctx, addr, creds, "SELECT 1;")
	if err != nil {
		c.logger.Debug("login probe %s@%s: %v\n", creds.User, addr, err)
		return false
	}
	return res.ExitCode == 0
}

// ReplicaAddresses returns the client addresses the primary currently lists
// in its replication-status view.
func (c *Client) ReplicaAddresses(ctx context.Context, primaryAddr string, admin Credentials) ([]string, error) {
	out, err := c.QueryValue(ctx, primaryAddr, admin, "SELECT client_addr FROM pg_stat_replication;")
	if err != nil {
		return nil, fmt.Errorf("replication status of %s: %w", primaryAddr, err)
	}
	if out == "" {
		return nil, nil
	}
	var addrs []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			// client_addr may carry a /32 suffix depending on version.
			addrs = append(addrs, strings.SplitN(line, "/", 2)[0])
		}
	}
	return addrs, nil
}

// Setting returns a server configuration value via SHOW.
func (c *Client) Setting(ctx context.Context, addr string, creds Credentials, name string) (string, error) {
	return c.QueryValue(ctx, addr, creds, fmt.Sprintf("SHOW %s;", name))
}
