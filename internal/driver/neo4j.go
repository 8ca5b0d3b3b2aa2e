package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kliewerdaniel/steinbot/internal/config"
)

const connectAttempts = 5

type Neo4jDriver struct {
	Driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver opens a bolt connection and verifies it, backing off
// between attempts while the database comes up.
func NewNeo4jDriver(ctx context.Context, cfg config.GraphConfig) (*Neo4jDriver, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	delay := 200 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err = driver.VerifyConnectivity(ctx)
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			_ = driver.Close(ctx)
			return nil, fmt.Errorf("failed to connect to neo4j after %d attempts: %w", attempt, err)
		}
		log.Warn("neo4j not reachable, retrying", "uri", cfg.URI, "attempt", attempt, "err", err)
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			_ = driver.Close(ctx)
			return nil, ctx.Err()
		}
	}

	log.Info("connected to neo4j", "uri", cfg.URI)
	return &Neo4jDriver{Driver: driver, database: cfg.Database}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *Neo4jDriver) Ping(ctx context.Context) error {
	return d.Driver.VerifyConnectivity(ctx)
}

func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	var opts []neo4j.ExecuteQueryConfigurationOption
	if d.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(d.database))
	}

	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

// BuildIndices creates the vector indexes and uniqueness constraints for schema.
// Failures are logged and skipped so a partially provisioned database still starts.
func (d *Neo4jDriver) BuildIndices(ctx context.Context, schema Schema, dimensions int) error {
	for _, q := range schema.IndexQueries(dimensions) {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			log.Warn("failed to create index", "query", q, "err", err)
		}
	}
	return nil
}
