package service

import (
	"context"
	"errors"
	"time"

	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/apiwatch/apiwatch/internal/pkg/logger"
	"github.com/apiwatch/apiwatch/internal/pkg/metrics"
)

// ErrInvalidRate rejects config updates carrying an unrecognized window unit.
var ErrInvalidRate = errors.New("requestLimit.rate must be one of sec, min, hour, day")

// EventStore is the append-only durable event log as seen by the ingest path.
type EventStore interface {
	Insert(ctx context.Context, e *model.Event) error
	CountLimiterRejections(ctx context.Context, apiKey, path string, since time.Time) (int64, error)
}

// ConfigStore resolves per-(apiKey, path) policy records.
type ConfigStore interface {
	Get(ctx context.Context, apiKey, path string) (*model.RouteConfig, error)
	GetOrCreate(ctx context.Context, apiKey, path string) (*model.RouteConfig, error)
	Update(ctx context.Context, apiKey, path string, update model.ConfigUpdate) (*model.RouteConfig, error)
}

// Publisher receives every event the tracker persists, best-effort. Used to
// drive the live dashboard feed.
type Publisher interface {
	Publish(e *model.Event)
}

// Tracker is the ingestion orchestrator: it walks a reported batch in input
// order, resolves policy per route, runs the gate and persists outcomes.
type Tracker struct {
	events  EventStore
	configs ConfigStore
	gate    *Gate
	live    Publisher
	now     func() time.Time
}

func NewTracker(events EventStore, configs ConfigStore, live Publisher) *Tracker {
	return &Tracker{
		events:  events,
		configs: configs,
		gate:    NewGate(events),
		live:    live,
		now:     time.Now,
	}
}

// Track processes one reported batch for a single apiKey. Events are handled
// strictly sequentially: later events in the batch must observe config rows
// and rate-window counts written by earlier ones. The returned count is the
// batch size, not the number of events persisted. On error the remaining
// events are abandoned; whatever was already written stays written.
func (t *Tracker) Track(ctx context.Context, apiKey string, events []model.Event) (int, error) {
	started := t.now()
	metrics.BatchSize.Observe(float64(len(events)))

	for i := range events {
		if err := t.trackOne(ctx, apiKey, &events[i], started); err != nil {
			return 0, err
		}
	}
	return len(events), nil
}

func (t *Tracker) trackOne(ctx context.Context, apiKey string, e *model.Event, started time.Time) error {
	// Console diagnostics bypass policy entirely: stored verbatim, tagged
	// with the reporting key.
	if e.Type == model.EventTypeConsole {
		e.APIKey = apiKey
		if err := t.events.Insert(ctx, e); err != nil {
			return err
		}
		metrics.EventsIngested.WithLabelValues(metrics.OutcomeConsole).Inc()
		t.publish(e)
		return nil
	}

	// No path marks a heartbeat; the event is replaced by a synthetic
	// "Server Started" record and no configuration is touched.
	if e.Path == "" {
		heartbeat := &model.Event{
			APIKey:    apiKey,
			Type:      model.EventTypeServerStarted,
			Message:   "Server starting",
			Timestamp: t.now(),
		}
		if err := t.events.Insert(ctx, heartbeat); err != nil {
			return err
		}
		metrics.EventsIngested.WithLabelValues(metrics.OutcomeHeartbeat).Inc()
		t.publish(heartbeat)
		return nil
	}

	cfg, err := t.configs.GetOrCreate(ctx, apiKey, e.Path)
	if err != nil {
		return err
	}

	decision, err := t.gate.Evaluate(ctx, cfg, t.now())
	if err != nil {
		return err
	}

	switch decision.Action {
	case ActionSkip:
		metrics.EventsIngested.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return nil

	case ActionReject:
		now := t.now()
		rejection := &model.Event{
			APIKey:     apiKey,
			Path:       e.Path,
			Method:     "GET",
			Status:     decision.Status,
			Type:       decision.Kind,
			Response:   model.JSONValue{V: map[string]interface{}{"error": decision.Message}},
			Timestamp:  now,
			DurationMs: now.Sub(started).Milliseconds(),
		}
		if err := t.events.Insert(ctx, rejection); err != nil {
			return err
		}
		metrics.EventsIngested.WithLabelValues(metrics.OutcomeRejected).Inc()
		t.publish(rejection)
		return nil

	default:
		e.APIKey = apiKey
		if e.Type == "" {
			e.Type = model.EventTypeIncoming
		}
		if err := t.events.Insert(ctx, e); err != nil {
			return err
		}
		metrics.EventsIngested.WithLabelValues(metrics.OutcomePersisted).Inc()
		t.publish(e)
		return nil
	}
}

func (t *Tracker) publish(e *model.Event) {
	if t.live == nil {
		return
	}
	t.live.Publish(e)
}

// GetConfig resolves the config for the pair, creating it with defaults when
// absent. Backs the dashboard's get-or-create read.
func (t *Tracker) GetConfig(ctx context.Context, apiKey, path string) (*model.RouteConfig, error) {
	return t.configs.GetOrCreate(ctx, apiKey, path)
}

// FetchConfig is the read-only lookup; missing pairs are reported, never
// fabricated.
func (t *Tracker) FetchConfig(ctx context.Context, apiKey, path string) (*model.RouteConfig, error) {
	return t.configs.Get(ctx, apiKey, path)
}

// UpdateConfig applies an operator-driven partial update.
func (t *Tracker) UpdateConfig(ctx context.Context, apiKey, path string, update model.ConfigUpdate) (*model.RouteConfig, error) {
	if update.RequestLimit != nil && update.RequestLimit.Enabled {
		if !model.ValidRate(update.RequestLimit.Rate) {
			logger.Warn("rejecting config update with unknown rate",
				"api_key", apiKey, "path", path, "rate", update.RequestLimit.Rate)
			return nil, ErrInvalidRate
		}
	}
	return t.configs.Update(ctx, apiKey, path, update)
}
