package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: "file:test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "X-Actor-ID", cfg.Server.ActorHeader)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 64, cfg.WorkerPool.QueueSize)
	assert.Equal(t, 300*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 3600, cfg.Push.TTL)
}

func TestLoad_Seed(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "postgres://localhost/schedule"
sweeper:
  enabled: true
  interval_seconds: 30
seed:
  facilities:
    - id: 7
      name: "Visiting Room A"
      capacity: 1
  slots:
    - key: "visit-2026-03-02-am"
      facility_id: 7
      start: 2026-03-02T09:00:00Z
      end: 2026-03-02T12:00:00Z
      max_capacity: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Sweeper.Interval)
	require.Len(t, cfg.Seed.Facilities, 1)
	assert.Equal(t, int64(7), cfg.Seed.Facilities[0].ID)
	require.Len(t, cfg.Seed.Slots, 1)
	assert.Equal(t, 4, cfg.Seed.Slots[0].MaxCapacity)
	assert.Equal(t, 9, cfg.Seed.Slots[0].Start.Hour())
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "Missing DSN", body: "server:\n  port: 9000\n"},
		{name: "Push without keys", body: "database:\n  dsn: x\npush:\n  enabled: true\n"},
		{name: "Slot without capacity", body: "database:\n  dsn: x\nseed:\n  slots:\n    - key: s1\n"},
		{name: "Unknown field", body: "database:\n  dsn: x\n  bogus: 1\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
