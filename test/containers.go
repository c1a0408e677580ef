package test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/joao-fontenele/luvoir-pos/internal/catalog"
	"github.com/joao-fontenele/luvoir-pos/internal/telemetry"
)

// catalogSchema matches the schema the migrations create.
const catalogSchema = "catalog"

// CatalogDB is a migrated and seeded product database in a container.
type CatalogDB struct {
	DB     *sql.DB
	Loader *catalog.PostgresLoader
}

// StartCatalogDB starts Postgres, applies the catalog migrations (schema
// plus seed products P001..P004) and removes the container when t ends.
func StartCatalogDB(ctx context.Context, t *testing.T) *CatalogDB {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("luvoir"),
		postgres.WithUsername("luvoir"),
		postgres.WithPassword("luvoir"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := migrateCatalog(connStr); err != nil {
		t.Fatalf("failed to migrate catalog: %v", err)
	}

	db, err := telemetry.OpenDB(ctx, "postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open catalog database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &CatalogDB{
		DB:     db,
		Loader: catalog.NewPostgresLoader(db, catalogSchema),
	}
}

// Store returns an in-memory catalog seeded from the database, limited to
// ids when any are given.
func (c *CatalogDB) Store(ctx context.Context, t *testing.T, ids ...string) *catalog.MemoryStore {
	t.Helper()

	store := catalog.NewMemoryStore()
	if _, err := c.Loader.Seed(ctx, store, ids...); err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}
	return store
}

func migrateCatalog(connStr string) error {
	m, err := migrate.New(migrationsSource(), connStr)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// migrationsSource points at the repository's migrations directory,
// wherever the tests are run from.
func migrationsSource() string {
	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Dir(filepath.Dir(filename))
	return "file://" + filepath.Join(root, "migrations")
}

// StartKafka starts a single-node broker for the order.completed flow and
// returns its bootstrap addresses.
func StartKafka(ctx context.Context, t *testing.T) []string {
	t.Helper()

	container, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.8.0",
		kafka.WithClusterID("luvoir-pos"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("failed to get kafka brokers: %v", err)
	}
	return brokers
}
