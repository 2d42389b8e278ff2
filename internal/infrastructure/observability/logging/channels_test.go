package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelFileOutput(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewChanneledLogger(&LoggerConfig{
		OutputToFile: true,
		LogDirectory: dir,
		MaxSizeMB:    1,
		JSONFormat:   true,
		DefaultLevel: slog.LevelInfo,
	})
	require.NoError(t, err)

	logger.WithWorkspace(ChannelLeads, "ws1").Info("Lead captured", "leadId", "l1")
	logger.Leads().Debug("below the channel level")
	require.NoError(t, logger.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "leads.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "leads", record["channel"])
	assert.Equal(t, "ws1", record["workspaceId"])
	assert.Equal(t, "l1", record["leadId"])
}

func TestSetChannelLevel(t *testing.T) {
	logger := NewDiscardLogger()

	require.NoError(t, logger.SetChannelLevel(ChannelTracking, slog.LevelDebug))
	levels := logger.GetChannelLevels()
	assert.Equal(t, "DEBUG", levels["tracking"])
	assert.Equal(t, "ERROR", levels["leads"])
	assert.Len(t, levels, len(allChannels))

	assert.Error(t, logger.SetChannelLevel(Channel("billing"), slog.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a****@example.com", MaskEmail("ada@example.com"))
	assert.Equal(t, "****", MaskEmail("@example.com"))
	assert.Equal(t, "****", MaskEmail("not-an-email"))
}

func TestSanitizeQuery(t *testing.T) {
	assert.Equal(t, "SELECT id FROM leads WHERE workspace_id = ?", sanitizeQuery("SELECT id\n\t FROM leads\n WHERE workspace_id = ?"))

	long := sanitizeQuery(strings.Repeat("x", 600))
	assert.Len(t, long, 503)
	assert.True(t, strings.HasSuffix(long, "..."))
}
