package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("EVENTS_DRIVER", "")
	t.Setenv("AUTH_SESSION_TTL_MINUTES", "")
	t.Setenv("ADMIN_EMAIL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "memory", cfg.Events.Driver)
	assert.Equal(t, 20*time.Minute, cfg.Auth.SessionTTL())
	assert.Equal(t, time.Minute, cfg.Auth.SessionCheckInterval())
	assert.Equal(t, 5*time.Second, cfg.Sync.ReconnectDelay())
	assert.Equal(t, "evode.citizenhub@gmail.com", cfg.Auth.AdminEmail)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("AUTH_SESSION_TTL_MINUTES", "5")
	t.Setenv("SYNC_REFRESH_INTERVAL_SECONDS", "not-a-number")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("ADMIN_EMAIL", "Admin@City.gov")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Auth.SessionTTL())
	assert.Equal(t, 30*time.Second, cfg.Sync.RefreshInterval())
	assert.Equal(t, "127.0.0.1:9090", cfg.App.Addr())
	assert.Equal(t, "admin@city.gov", cfg.Auth.AdminEmail)
}

func TestLoadRejectsInvalidDrivers(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown store", env: map[string]string{"STORE_DRIVER": "localstorage"}},
		{name: "unknown events", env: map[string]string{"EVENTS_DRIVER": "kafka"}},
		{name: "postgres without dsn", env: map[string]string{"STORE_DRIVER": "postgres", "POSTGRES_DSN": ""}},
		{name: "bad redis db", env: map[string]string{"REDIS_DB": "one"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
