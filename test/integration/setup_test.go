//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/kliewerdaniel/steinbot/internal/app"
	"github.com/kliewerdaniel/steinbot/internal/config"
)

// newApp wires the full stack against the live services named in ../../.env
// for one domain. Every document id the test writes starts with the returned
// prefix and is deleted on cleanup.
func newApp(t *testing.T, domain string) (*app.App, string) {
	t.Helper()
	_ = godotenv.Load("../../.env")
	if os.Getenv("NEO4J_URI") == "" {
		t.Skip("NEO4J_URI not set")
	}

	cfg, err := config.LoadOrDefault("../../config/config.toml")
	require.NoError(t, err)
	cfg.ApplyEnv()
	cfg.Retrieval.Domain = domain
	cfg.Persona.Backend = "file"
	cfg.Persona.Path = filepath.Join(t.TempDir(), "persona.json")
	cfg.Evaluation.TraceDB = ":memory:"
	cfg.Concurrency.BulkIngest = 2

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, a.Builder.CreateIndexes(ctx))

	prefix := fmt.Sprintf("it-%s-", uuid.NewString()[:8])
	schema := a.Profile.Schema
	t.Cleanup(func() {
		query := fmt.Sprintf("MATCH (d:%s) WHERE d.%s STARTS WITH $prefix DETACH DELETE d", schema.DocumentLabel, schema.IDProperty)
		_, _ = a.Driver.ExecuteQuery(context.Background(), query, map[string]interface{}{"prefix": prefix})
		t.Logf("Cleaned up documents with prefix %s", prefix)
		_ = a.Close(context.Background())
	})
	return a, prefix
}
