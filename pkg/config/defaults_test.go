package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MIKA_TEST_INT", "42")
	t.Setenv("MIKA_TEST_BOOL", "true")
	t.Setenv("MIKA_TEST_DURATION", "90s")
	t.Setenv("MIKA_TEST_STRING", "libsql")
	t.Setenv("MIKA_TEST_SECRET", "s3cret")

	assert.Equal(t, 42, getEnvInt("MIKA_TEST_INT", 7))
	assert.True(t, getEnvBool("MIKA_TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, getEnvDuration("MIKA_TEST_DURATION", time.Minute))
	assert.Equal(t, "libsql", getEnvString("MIKA_TEST_STRING", "sqlite3"))
	assert.Equal(t, "s3cret", getEnvSecret("MIKA_TEST_SECRET"))
}

func TestEnvFallsBackOnUnsetOrMalformed(t *testing.T) {
	t.Setenv("MIKA_TEST_INT", "forty")
	t.Setenv("MIKA_TEST_BOOL", "sometimes")
	t.Setenv("MIKA_TEST_DURATION", "10")

	assert.Equal(t, 7, getEnvInt("MIKA_TEST_INT", 7))
	assert.False(t, getEnvBool("MIKA_TEST_BOOL", false))
	assert.Equal(t, time.Minute, getEnvDuration("MIKA_TEST_DURATION", time.Minute))
	assert.Equal(t, "sqlite3", getEnvString("MIKA_TEST_UNSET", "sqlite3"))
	assert.Empty(t, getEnvSecret("MIKA_TEST_UNSET"))
}
