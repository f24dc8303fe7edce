package testutil

import (
	"context"
	"testing"
	"time"

	"hotornot/database"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestDatabase is a throwaway Postgres instance backing one integration test.
// It is torn down automatically when the test finishes.
type TestDatabase struct {
	Container *postgres.PostgresContainer
	DB        *database.DB
	URL       string
}

// SetupTestDatabase starts a Postgres container, applies the schema and opens
// a pool against it. Labels carry the test name so stray containers can be
// traced back to their origin.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("hotornot_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{
			"test":      "hotornot-repository",
			"test-name": t.Name(),
			"timestamp": time.Now().Format("20060102-150405"),
			"cleanup":   "auto",
		}),
	)
	require.NoError(t, err)

	testDB := &TestDatabase{Container: container}
	t.Cleanup(func() {
		testDB.teardown(t)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Schema must exist before the pool's ping
	require.NoError(t, database.RunMigrationsWithURL(connStr))

	db, err := database.NewConnection(ctx, connStr)
	require.NoError(t, err)

	testDB.DB = db
	testDB.URL = connStr
	return testDB
}

// teardown closes the pool and terminates the container. Failures are logged
// rather than failing the test; the auto-cleanup label lets a reaper catch
// anything left behind.
func (td *TestDatabase) teardown(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Logf("recovered during database teardown: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if td.DB != nil {
		td.DB.Close()
	}
	if td.Container != nil {
		if err := td.Container.Terminate(ctx); err != nil {
			t.Logf("could not terminate test container: %v", err)
		}
	}
}
