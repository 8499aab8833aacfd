package storage

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	DefaultCompactInterval  = 30 * time.Second
	DefaultCompactThreshold = 1000
)

// Compactor watches the journal of a MemoryBackend and rewrites it
// once it holds more than Threshold entries.
type Compactor struct {
	Interval  time.Duration
	Threshold int

	backend *MemoryBackend
	log     hclog.Logger
}

func NewCompactor(backend *MemoryBackend, logger hclog.Logger) *Compactor {
	return &Compactor{
		Interval:  DefaultCompactInterval,
		Threshold: DefaultCompactThreshold,
		backend:   backend,
		log:       logger,
	}
}

// StartCompactor runs the compactor until ctx is done.
func (c *Compactor) StartCompactor(ctx context.Context) {
	c.log.Info("starting compactor", "interval", c.Interval, "threshold", c.Threshold)

	go c.startCompactor(ctx)
}

func (c *Compactor) startCompactor(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.compact(); err != nil {
				c.log.Error("error compacting journal", "error", err)
			}
		}
	}
}

// compact reports whether the journal was rewritten.
func (c *Compactor) compact() (bool, error) {
	before := c.backend.JournalLen()
	if before <= c.Threshold {
		return false, nil
	}

	if err := c.backend.Compact(); err != nil {
		return false, err
	}

	c.log.Debug("journal compacted", "before", before, "after", c.backend.JournalLen())
	return true, nil
}
