package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paragnema1/scc/storage"
)

const testSeed = `
layout:
  - {section_id: S1, left_normal: S3}
  - {section_id: S3, right_normal: S1}
points:
  - {point_id: P3, section_id: S3}
users:
  - username: admin
    roles: [Admin]
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeedStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := writeSeed(t, testSeed)

	require.NoError(t, seedStore(ctx, store, path, logger))
	require.NoError(t, seedStore(ctx, store, path, logger), "second seed is skipped")

	layout, err := store.Read(ctx, storage.KindLayoutConnections)
	require.NoError(t, err)
	require.Len(t, layout, 2)
	assert.Equal(t, "S1", layout[0]["section_id"])
	assert.Equal(t, "S3", layout[0]["left_normal"])

	points, err := store.Read(ctx, storage.KindPointConfig)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "P3", points[0]["point_id"])

	users, err := store.Read(ctx, storage.KindUserDetails)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, []any{"Admin"}, users[0]["roles"])
}

func TestSeedStore_Errors(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := seedStore(ctx, storage.NewMemoryStore(), filepath.Join(t.TempDir(), "missing.yaml"), logger)
	assert.Error(t, err)

	err = seedStore(ctx, storage.NewMemoryStore(), writeSeed(t, "layout: [unclosed"), logger)
	assert.Error(t, err)
}

func TestValidateFlags(t *testing.T) {
	base := CLIConfig{LogLevel: "info", LogFormat: "json", ShutdownTimeout: 30e9}

	cfg := base
	assert.NoError(t, validateFlags(&cfg))

	cfg = base
	cfg.LogLevel = "verbose"
	assert.Error(t, validateFlags(&cfg))

	cfg = base
	cfg.LogFormat = "xml"
	assert.Error(t, validateFlags(&cfg))

	cfg = base
	cfg.ConfigPath = filepath.Join(t.TempDir(), "nope.yaml")
	assert.Error(t, validateFlags(&cfg))

	cfg = base
	cfg.ShutdownTimeout = 0
	assert.Error(t, validateFlags(&cfg))
}
