package scenarios

import (
	"context"
	"fmt"

	"github.com/olavtom/postgresql-container/internal/database"
	"github.com/olavtom/postgresql-container/internal/topology"
	"github.com/olavtom/postgresql-container/internal/wait"
)

// runReplication stands up a primary with two replicas, waits for both
// replicas to register in the primary's replication-status view, verifies a
// written row propagates, then replaces the primary and proves the cluster
// converges against the new primary's identity.
func (e *Env) runReplication(ctx context.Context) error {
	creds := freshCreds()
	admin := freshAdminPassword()

	cluster, err := e.Topology.Cluster(ctx, "repl", 2, creds, admin)
	if err != nil {
		return err
	}

	if err := e.awaitReplicasVisible(ctx, cluster); err != nil {
		return err
	}

	if err := e.DB.Exec(ctx, cluster.Primary.Addr, creds,
		"CREATE TABLE replication_probe (id integer); INSERT INTO replication_probe VALUES (1);"); err != nil {
		return fmt.Errorf("write on primary: %w", err)
	}
	if err := e.awaitRowOnReplicas(ctx, cluster, creds, "1"); err != nil {
		return err
	}

	// Primary replacement: the new primary gets a new identity and every
	// live replica must converge against it.
	if err := e.Topology.ReplacePrimary(ctx, cluster); err != nil {
		return err
	}
	if err := e.awaitReplicasVisible(ctx, cluster); err != nil {
		return fmt.Errorf("after primary replacement: %w", err)
	}

	if err := e.DB.Exec(ctx, cluster.Primary.Addr, creds,
		"CREATE TABLE replication_probe (id integer); INSERT INTO replication_probe VALUES (2);"); err != nil {
		return fmt.Errorf("write on replacement primary: %w", err)
	}
	if err := e.awaitRowOnReplicas(ctx, cluster, creds, "2"); err != nil {
		return fmt.Errorf("after primary replacement: %w", err)
	}
	return nil
}

// awaitReplicasVisible polls until every replica address appears in the
// primary's pg_stat_replication view.
func (e *Env) awaitReplicasVisible(ctx context.Context, cluster *topology.Cluster) error {
	adminCreds := database.Admin(cluster.AdminPassword)

	for _, replica := range cluster.Replicas {
		ok := e.Poller.Poll(ctx, wait.Condition{
			Name:     fmt.Sprintf("replica %s visible on primary", replica.Handle.Name),
			Attempts: e.Config.PollAttempts,
			Delay:    e.Config.PollDelay,
			Predicate: func(ctx context.Context) bool {
				addrs, err := e.DB.ReplicaAddresses(ctx, cluster.Primary.Addr, adminCreds)
				if err != nil {
					e.Logger.Debug("replication status: %v\n", err)
					return false
				}
				for _, addr := range addrs {
					if addr == replica.Addr {
						return true
					}
				}
				return false
			},
		})
		if !ok {
			e.Runtime.DumpLogs(ctx, cluster.Primary.Handle)
			e.Runtime.DumpLogs(ctx, replica.Handle)
			return fmt.Errorf("replica %s never appeared in the primary's replication status",
				replica.Handle.Name)
		}
	}
	return nil
}

// awaitRowOnReplicas polls until the probe row with the given id is readable
// on every replica.
func (e *Env) awaitRowOnReplicas(ctx context.Context, cluster *topology.Cluster, creds database.Credentials, id string) error {
	query := fmt.Sprintf("SELECT id FROM replication_probe WHERE id = %s;", id)

	for _, replica := range cluster.Replicas {
		ok := e.Poller.Poll(ctx, wait.Condition{
			Name:     fmt.Sprintf("row %s visible on %s", id, replica.Handle.Name),
			Attempts: e.Config.PollAttempts,
			Delay:    e.Config.PollDelay,
			Predicate: func(ctx context.Context) bool {
				out, err := e.DB.QueryValue(ctx, replica.Addr, creds, query)
				return err == nil && out == id
			},
		})
		if !ok {
			e.Runtime.DumpLogs(ctx, replica.Handle)
			return fmt.Errorf("row %s never became visible on replica %s", id, replica.Handle.Name)
		}
	}
	return nil
}
