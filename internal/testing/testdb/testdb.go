package testdb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/migrations"
)

// SurrealImage is the server image started when TEST_DB_HOST is unset
const SurrealImage = "surrealdb/surrealdb:v2.3.7"

// TestDB provides an isolated database environment for testing.
// Each TestDB instance gets a unique namespace to ensure test isolation.
type TestDB struct {
	DB        database.Database
	Namespace string
	Database  string
	t         *testing.T
}

var (
	serverOnce sync.Once
	serverCfg  database.Config
	serverErr  error

	counterMu sync.Mutex
	counter   int64
)

// server returns connection settings for the test server. TEST_DB_HOST
// points at an existing server; otherwise one container is started for the
// whole test binary and left for the testcontainers reaper to remove.
func server(t *testing.T) database.Config {
	t.Helper()

	serverOnce.Do(func() {
		if host := os.Getenv("TEST_DB_HOST"); host != "" {
			serverCfg = database.Config{
				Host:     host,
				Port:     envOr("TEST_DB_PORT", "8000"),
				User:     envOr("TEST_DB_USER", "root"),
				Password: envOr("TEST_DB_PASSWORD", "root"),
			}
			return
		}
		if !dockerAvailable() {
			serverErr = errNoDocker
			return
		}
		serverCfg, serverErr = startContainer()
	})

	if serverErr == errNoDocker {
		t.Skip("testdb: TEST_DB_HOST unset and Docker not available")
	}
	if serverErr != nil {
		t.Fatalf("testdb: %v", serverErr)
	}
	return serverCfg
}

var errNoDocker = fmt.Errorf("docker not available")

func startContainer() (database.Config, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        SurrealImage,
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", "root", "--pass", "root", "memory"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8000/tcp"),
				wait.ForHTTP("/health").WithPort("8000/tcp"),
			).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return database.Config{}, fmt.Errorf("start surrealdb container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return database.Config{}, fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "8000/tcp")
	if err != nil {
		return database.Config{}, fmt.Errorf("container port: %w", err)
	}

	return database.Config{Host: host, Port: port.Port(), User: "root", Password: "root"}, nil
}

func dockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func uniqueNamespace() string {
	counterMu.Lock()
	defer counterMu.Unlock()
	counter++
	return fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), counter)
}

// New creates a new isolated test database with migrations applied.
// The namespace is removed when the test finishes.
func New(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("testdb: skipping database test in short mode")
	}

	cfg := server(t)
	cfg.Namespace = uniqueNamespace()
	cfg.Database = "test"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.NewSurrealDB(cfg)
	if err := db.Connect(ctx); err != nil {
		t.Fatalf("testdb: failed to connect: %v", err)
	}

	tdb := &TestDB{DB: db, Namespace: cfg.Namespace, Database: cfg.Database, t: t}
	t.Cleanup(tdb.Close)

	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("testdb: %v", err)
	}

	return tdb
}

// Close removes the test namespace and closes the connection. It is
// registered with t.Cleanup by New and safe to call twice.
func (tdb *TestDB) Close() {
	if tdb.DB == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = tdb.DB.Execute(ctx, fmt.Sprintf("REMOVE NAMESPACE %s", tdb.Namespace), nil)
	_ = tdb.DB.Close()
	tdb.DB = nil
}

// Reset deletes every row while keeping the schema
func (tdb *TestDB) Reset(t *testing.T) {
	t.Helper()
	for _, table := range []string{"ticket", "refresh_token", "event", "user"} {
		if err := tdb.DB.Execute(tdb.Ctx(), "DELETE "+table, nil); err != nil {
			t.Fatalf("testdb: failed to clear %s: %v", table, err)
		}
	}
}

// Ctx returns a context that is cancelled when the test ends
func (tdb *TestDB) Ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tdb.t.Cleanup(cancel)
	return ctx
}

// MustExec executes a query and fails the test on error.
func (tdb *TestDB) MustExec(query string, vars map[string]interface{}) {
	tdb.t.Helper()
	if err := tdb.DB.Execute(tdb.Ctx(), query, vars); err != nil {
		tdb.t.Fatalf("testdb: exec failed: %v\nQuery: %s", err, query)
	}
}
