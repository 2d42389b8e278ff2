package startup

import (
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/pkg/config"
)

func withDatabaseConfig(t *testing.T, driver, dsn, token string) {
	t.Helper()
	prevDriver, prevURL, prevToken := config.DatabaseDriver, config.DatabaseURL, config.TursoAuthToken
	config.DatabaseDriver, config.DatabaseURL, config.TursoAuthToken = driver, dsn, token
	t.Cleanup(func() {
		config.DatabaseDriver, config.DatabaseURL, config.TursoAuthToken = prevDriver, prevURL, prevToken
	})
}

func TestDataSourceName(t *testing.T) {
	t.Run("sqlite is untouched", func(t *testing.T) {
		withDatabaseConfig(t, "sqlite3", "file:mika.db?_foreign_keys=on", "ignored")
		assert.Equal(t, "file:mika.db?_foreign_keys=on", dataSourceName())
	})

	t.Run("libsql without token", func(t *testing.T) {
		withDatabaseConfig(t, "libsql", "libsql://mika.turso.io", "")
		assert.Equal(t, "libsql://mika.turso.io", dataSourceName())
	})

	t.Run("libsql token is appended", func(t *testing.T) {
		withDatabaseConfig(t, "libsql", "libsql://mika.turso.io?tls=1", "tok+en")
		u, err := url.Parse(dataSourceName())
		require.NoError(t, err)
		assert.Equal(t, "mika.turso.io", u.Host)
		assert.Equal(t, "tok+en", u.Query().Get("authToken"))
		assert.Equal(t, "1", u.Query().Get("tls"))
	})
}

func TestLoggerConfigFollowsSettings(t *testing.T) {
	prevLevel, prevFile, prevDir := config.LogLevel, config.LogToFile, config.LogDirectory
	t.Cleanup(func() { config.LogLevel, config.LogToFile, config.LogDirectory = prevLevel, prevFile, prevDir })

	config.LogLevel, config.LogToFile, config.LogDirectory = "debug", false, "/var/log/mika"
	cfg := loggerConfig()
	assert.Equal(t, slog.LevelDebug, cfg.DefaultLevel)
	assert.False(t, cfg.OutputToFile)
	assert.Equal(t, "/var/log/mika", cfg.LogDirectory)
	assert.True(t, cfg.OutputToConsole)
}
