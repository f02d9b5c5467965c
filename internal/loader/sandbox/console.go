package sandbox

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Console collects a script's console output and mirrors it to the host log.
type Console struct {
	mu      sync.Mutex
	entries []LogEntry
	enabled bool
	logger  *zap.Logger
}

// NewConsole creates a console sink. A nil logger disables mirroring.
func NewConsole(logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{enabled: true, logger: logger.Named("console")}
}

// Write records one console call.
func (c *Console) Write(level, msg string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	c.entries = append(c.entries, LogEntry{Level: level, Message: msg, Time: time.Now()})
	c.mu.Unlock()

	switch level {
	case "error":
		c.logger.Warn(msg, zap.String("level", level))
	default:
		c.logger.Debug(msg, zap.String("level", level))
	}
}

// Entries returns a copy of everything written so far.
func (c *Console) Entries() []LogEntry {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogEntry{}, c.entries...)
}

// Disable drops further writes.
func (c *Console) Disable() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.enabled = false
	c.mu.Unlock()
}
