//go:build integration

package sqlstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/paragnema1/scc/storage"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "scc",
				"POSTGRES_PASSWORD": "scc",
				"POSTGRES_DB":       "scc",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return PostgresDSN("scc", "scc", host, port.Int(), "scc")
}

func TestIntegration_Postgres(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s, err := Open(ctx, Config{Provider: ProviderPostgres, DSN: dsn}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	t.Run("round trip", func(t *testing.T) {
		rec := storage.Record{
			"ts":       1700000000.5,
			"sections": []any{map[string]any{"section_id": "S1", "section_status": "cleared"}},
		}
		require.NoError(t, s.Insert(ctx, storage.KindSectionPlayback, rec))

		rows, err := s.Read(ctx, storage.KindSectionPlayback)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, rec, rows[0])
	})

	t.Run("bool and int columns", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, storage.KindTrailThrough, storage.Record{
			"tt_ts": 1.0, "section_id": "s9", "confirm_status": true,
		}))
		require.NoError(t, s.Insert(ctx, storage.KindSection, storage.Record{
			"ts": 1.0, "section_id": "S9", "torpedo_axle_count": 12,
		}))

		tt, err := s.Read(ctx, storage.KindTrailThrough)
		require.NoError(t, err)
		assert.Equal(t, true, tt[0]["confirm_status"])

		sections, err := s.Read(ctx, storage.KindSection)
		require.NoError(t, err)
		assert.Equal(t, int64(12), sections[0]["torpedo_axle_count"])
	})

	t.Run("yard performance upsert", func(t *testing.T) {
		for i, rec := range []storage.Record{
			{"torpedo_id": "T1", "engine_id": "E1", "entry_ts": 10.0},
			{"torpedo_id": "T1", "exit_ts": 20.0},
		} {
			require.NoError(t, s.Insert(ctx, storage.KindYardPerformance, rec), fmt.Sprint(i))
		}

		rows, err := s.Read(ctx, storage.KindYardPerformance)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, storage.Record{"torpedo_id": "T1", "engine_id": "E1", "entry_ts": 10.0, "exit_ts": 20.0}, rows[0])
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		again, err := Open(ctx, Config{Provider: ProviderPostgres, DSN: dsn}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		require.NoError(t, err)
		defer func() { _ = again.Close() }()

		rows, err := again.Read(ctx, storage.KindYardPerformance)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}
