package notifier

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("notifier disabled")
	ErrNoChat   = errors.New("notifier chat_id is required")
)

// Config controls batch summaries.
type Config struct {
	Enabled  bool
	Token    string
	ChatID   int64
	ThreadID int

	// OnlyFailures skips summaries for batches with nothing failed or degraded.
	OnlyFailures bool

	DedupWindow time.Duration
	RetryMax    int
	RetryBase   time.Duration
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.DedupWindow <= 0 {
		c.DedupWindow = 10 * time.Minute
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryMax == 0 {
		c.RetryMax = 2
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, chatID int64, threadID int, text string) error
}

type HistoryItem struct {
	At    time.Time
	JobID string
	Text  string
	Error string
}
