// Package logging provides structured logging channels for the tracking pipeline
// with workspace context and request correlation.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Channel represents a logical logging channel for different system components
type Channel string

const (
	// System channels
	ChannelSystem   Channel = "system"
	ChannelStartup  Channel = "startup"
	ChannelShutdown Channel = "shutdown"

	// Pipeline channels
	ChannelTracking Channel = "tracking" // identity, sessions, events
	ChannelLeads    Channel = "leads"    // lead capture, merge, stage changes
	ChannelRedirect Channel = "redirect" // click/redirect tracking
	ChannelAuth     Channel = "auth"

	// Infrastructure channels
	ChannelDatabase  Channel = "database"
	ChannelCache     Channel = "cache"
	ChannelSlowQuery Channel = "slow-query"
	ChannelNotify    Channel = "notify"
	ChannelLive      Channel = "live"
)

var allChannels = []Channel{
	ChannelSystem, ChannelStartup, ChannelShutdown,
	ChannelTracking, ChannelLeads, ChannelRedirect, ChannelAuth,
	ChannelDatabase, ChannelCache, ChannelSlowQuery, ChannelNotify, ChannelLive,
}

// ChanneledLogger provides structured logging with multiple channels
type ChanneledLogger struct {
	channels map[Channel]*slog.Logger
	config   *LoggerConfig
	rotators map[Channel]*lumberjack.Logger
	configMu sync.RWMutex
}

// LoggerConfig contains configuration options for the channeled logger
type LoggerConfig struct {
	OutputToFile    bool
	OutputToConsole bool
	LogDirectory    string

	// Rotation settings for file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	JSONFormat    bool
	IncludeSource bool

	DefaultLevel  slog.Level
	ChannelLevels map[Channel]slog.Level
}

// DefaultLoggerConfig returns a sensible default configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputToFile:    true,
		OutputToConsole: true,
		LogDirectory:    "logs",
		MaxSizeMB:       50,
		MaxBackups:      5,
		MaxAgeDays:      14,
		JSONFormat:      true,
		IncludeSource:   false,
		DefaultLevel:    slog.LevelInfo,
		ChannelLevels:   make(map[Channel]slog.Level),
	}
}

// NewChanneledLogger creates a new channeled logger with the given configuration
func NewChanneledLogger(config *LoggerConfig) (*ChanneledLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.ChannelLevels == nil {
		config.ChannelLevels = make(map[Channel]slog.Level)
	}

	logger := &ChanneledLogger{
		channels: make(map[Channel]*slog.Logger),
		rotators: make(map[Channel]*lumberjack.Logger),
		config:   config,
	}

	if config.OutputToFile {
		if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	for _, channel := range allChannels {
		logger.channels[channel] = logger.createChannelLogger(channel)
	}

	return logger, nil
}

// NewDiscardLogger returns a logger that drops every record. Used by tests and tooling.
func NewDiscardLogger() *ChanneledLogger {
	logger, _ := NewChanneledLogger(&LoggerConfig{DefaultLevel: slog.LevelError})
	return logger
}

// ParseLevel converts a textual level into a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// createChannelLogger creates a slog.Logger for a specific channel.
// The rotating file writer of a channel is created once and shared by every
// logger rebuilt for that channel.
func (cl *ChanneledLogger) createChannelLogger(channel Channel) *slog.Logger {
	cl.configMu.Lock()
	defer cl.configMu.Unlock()

	level := cl.config.DefaultLevel
	if channelLevel, exists := cl.config.ChannelLevels[channel]; exists {
		level = channelLevel
	}

	var writers []io.Writer
	if cl.config.OutputToConsole {
		writers = append(writers, os.Stdout)
	}
	if cl.config.OutputToFile {
		rotator, ok := cl.rotators[channel]
		if !ok {
			rotator = &lumberjack.Logger{
				Filename:   filepath.Join(cl.config.LogDirectory, string(channel)+".log"),
				MaxSize:    cl.config.MaxSizeMB,
				MaxBackups: cl.config.MaxBackups,
				MaxAge:     cl.config.MaxAgeDays,
				Compress:   true,
			}
			cl.rotators[channel] = rotator
		}
		writers = append(writers, rotator)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cl.config.IncludeSource,
	}

	var handler slog.Handler
	if cl.config.JSONFormat {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	return slog.New(handler).With(slog.String("channel", string(channel)))
}

func (cl *ChanneledLogger) System() *slog.Logger    { return cl.GetChannel(ChannelSystem) }
func (cl *ChanneledLogger) Startup() *slog.Logger   { return cl.GetChannel(ChannelStartup) }
func (cl *ChanneledLogger) Shutdown() *slog.Logger  { return cl.GetChannel(ChannelShutdown) }
func (cl *ChanneledLogger) Tracking() *slog.Logger  { return cl.GetChannel(ChannelTracking) }
func (cl *ChanneledLogger) Leads() *slog.Logger     { return cl.GetChannel(ChannelLeads) }
func (cl *ChanneledLogger) Redirect() *slog.Logger  { return cl.GetChannel(ChannelRedirect) }
func (cl *ChanneledLogger) Auth() *slog.Logger      { return cl.GetChannel(ChannelAuth) }
func (cl *ChanneledLogger) Database() *slog.Logger  { return cl.GetChannel(ChannelDatabase) }
func (cl *ChanneledLogger) Cache() *slog.Logger     { return cl.GetChannel(ChannelCache) }
func (cl *ChanneledLogger) SlowQuery() *slog.Logger { return cl.GetChannel(ChannelSlowQuery) }
func (cl *ChanneledLogger) Notify() *slog.Logger    { return cl.GetChannel(ChannelNotify) }
func (cl *ChanneledLogger) Live() *slog.Logger      { return cl.GetChannel(ChannelLive) }

// GetChannel returns a logger for a specific channel
func (cl *ChanneledLogger) GetChannel(channel Channel) *slog.Logger {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()
	if logger, exists := cl.channels[channel]; exists {
		return logger
	}
	return cl.channels[ChannelSystem]
}

// WithWorkspace returns a logger with workspace context
func (cl *ChanneledLogger) WithWorkspace(channel Channel, workspaceID string) *slog.Logger {
	return cl.GetChannel(channel).With(slog.String("workspaceId", workspaceID))
}

type contextKey string

// RequestIDKey is the context key under which the HTTP layer stores the request id.
const RequestIDKey contextKey = "requestId"

// WithContext returns a channel logger annotated with the request id carried by ctx, if any.
func (cl *ChanneledLogger) WithContext(ctx context.Context, channel Channel) *slog.Logger {
	logger := cl.GetChannel(channel)
	if ctx == nil {
		return logger
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		logger = logger.With(slog.String("requestId", requestID))
	}
	return logger
}

// LogSlowQuery logs a slow database query
func (cl *ChanneledLogger) LogSlowQuery(query string, duration time.Duration, workspaceID string) {
	cl.SlowQuery().Warn("Slow query detected",
		slog.String("query", sanitizeQuery(query)),
		slog.Duration("duration", duration),
		slog.String("workspaceId", workspaceID),
	)
}

// SetChannelLevel dynamically sets the log level for a specific channel
func (cl *ChanneledLogger) SetChannelLevel(channel Channel, level slog.Level) error {
	cl.configMu.Lock()
	if _, exists := cl.channels[channel]; !exists {
		cl.configMu.Unlock()
		return fmt.Errorf("channel %s does not exist", channel)
	}
	cl.config.ChannelLevels[channel] = level
	cl.configMu.Unlock()

	newLogger := cl.createChannelLogger(channel)

	cl.configMu.Lock()
	cl.channels[channel] = newLogger
	cl.configMu.Unlock()

	cl.System().Info("Channel log level updated",
		slog.String("channel", string(channel)),
		slog.String("level", level.String()),
	)
	return nil
}

// GetChannelLevels returns the current log levels for all channels.
func (cl *ChanneledLogger) GetChannelLevels() map[string]string {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()

	levels := make(map[string]string, len(cl.channels))
	for channel := range cl.channels {
		if level, ok := cl.config.ChannelLevels[channel]; ok {
			levels[string(channel)] = level.String()
		} else {
			levels[string(channel)] = cl.config.DefaultLevel.String()
		}
	}
	return levels
}

// Close flushes and closes rotated log files.
func (cl *ChanneledLogger) Close() error {
	cl.configMu.Lock()
	defer cl.configMu.Unlock()

	var firstErr error
	for channel, rotator := range cl.rotators {
		if err := rotator.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(cl.rotators, channel)
	}
	return firstErr
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "****"
	}
	return email[:1] + "****" + email[at:]
}

func sanitizeQuery(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > 500 {
		query = query[:500] + "..."
	}
	return query
}
