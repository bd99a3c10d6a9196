package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/kjannette/openarb-backend/internal/db"
	"github.com/kjannette/openarb-backend/internal/logging"
)

// SetupPool connects to the database named by TEST_DATABASE_URL, applies the
// schema migrations, and skips the test when no database is configured.
func SetupPool(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	if err := db.Migrate(dsn, logging.Discard()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool, dsn
}
