package strategy

import (
	"log/slog"
	"time"
)

// Context is the per-command context handed to strategies.
type Context struct {
	EntityID string
	// NextRevision is the revision a mutation event must carry.
	NextRevision int64
	Timestamp    time.Time
	Logger       *slog.Logger
}

func (c Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c Context) now() time.Time {
	if c.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return c.Timestamp
}
