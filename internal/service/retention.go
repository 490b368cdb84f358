package service

import (
	"context"
	"time"

	"github.com/apiwatch/apiwatch/internal/pkg/logger"
)

// EventCleaner deletes events older than the retention horizon.
type EventCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// Retention periodically trims the event log. Retention 0 keeps everything.
type Retention struct {
	events   EventCleaner
	keep     time.Duration
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewRetention(events EventCleaner, retentionDays, intervalMinutes int) *Retention {
	return &Retention{
		events:   events,
		keep:     time.Duration(retentionDays) * 24 * time.Hour,
		interval: time.Duration(intervalMinutes) * time.Minute,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *Retention) Start() {
	if r.keep <= 0 || r.interval <= 0 {
		close(r.done)
		return
	}
	go r.run()
}

func (r *Retention) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if err := r.events.Cleanup(ctx, r.keep); err != nil {
				logger.Error("event retention cleanup failed", "error", err)
			}
			cancel()
		case <-r.stop:
			return
		}
	}
}

func (r *Retention) Stop() {
	close(r.stop)
	<-r.done
}
