package service

import (
	"context"
	"net/http"
	"time"

	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/apiwatch/apiwatch/internal/pkg/metrics"
)

// Action is the three-way outcome of the policy gate. The asymmetry between
// Reject (a synthetic rejection event is written) and Skip (nothing is
// written) is load-bearing: the rate limiter counts stored "Limiter"
// rejections, so collapsing Skip into Reject would change what it counts.
type Action int

const (
	ActionPersist Action = iota
	ActionReject
	ActionSkip
)

// Decision is what the gate returns for one event.
type Decision struct {
	Action  Action
	Kind    string
	Status  int
	Message string
}

var persistDecision = Decision{Action: ActionPersist}

// RejectionCounter counts stored rate-limit rejections inside the current
// window. Implemented by the event repository.
type RejectionCounter interface {
	CountLimiterRejections(ctx context.Context, apiKey, path string, since time.Time) (int64, error)
}

// Gate applies the ordered policy checks for one event against its resolved
// route configuration. Checks run in a fixed order and the first match wins;
// later checks are not evaluated.
type Gate struct {
	counter RejectionCounter
}

func NewGate(counter RejectionCounter) *Gate {
	return &Gate{counter: counter}
}

// Evaluate runs the checks at the given instant. The clock is passed in so
// the decision itself stays deterministic.
func (g *Gate) Evaluate(ctx context.Context, cfg *model.RouteConfig, now time.Time) (Decision, error) {
	// 1. Master tracing switch.
	if !cfg.Tracer {
		metrics.GateRejections.WithLabelValues("tracer_off").Inc()
		return Decision{
			Action:  ActionReject,
			Kind:    model.EventTypeTracking,
			Status:  http.StatusBadRequest,
			Message: "API tracking is turned off",
		}, nil
	}

	// 2. Route disabled. ApiEnabled=true blocks the route; the inverted
	// naming is kept from the stored configuration format.
	if cfg.ApiEnabled {
		metrics.GateRejections.WithLabelValues("api_disabled").Inc()
		return Decision{
			Action:  ActionReject,
			Kind:    model.EventTypeAPIDisabled,
			Status:  http.StatusForbidden,
			Message: "API Enabled by config",
		}, nil
	}

	// 3. Schedule window. Zero-padded "HH:MM" compares lexicographically,
	// which only holds for same-day windows; midnight wraparound is
	// unsupported.
	if cfg.Scheduling.Enabled {
		clock := now.Format("15:04")
		if clock < cfg.Scheduling.StartTime || clock > cfg.Scheduling.EndTime {
			metrics.GateRejections.WithLabelValues("schedule").Inc()
			return Decision{
				Action:  ActionReject,
				Kind:    model.EventTypeSchedule,
				Status:  http.StatusForbidden,
				Message: "Outside schedule window",
			}, nil
		}
	}

	// 4. Request limit. Counts prior Limiter rejections in the window, and
	// drops the event silently once the ceiling is reached.
	if cfg.RequestLimit.Enabled {
		since := WindowStart(cfg.RequestLimit.Rate, now)
		count, err := g.counter.CountLimiterRejections(ctx, cfg.APIKey, cfg.Path, since)
		if err != nil {
			return Decision{}, err
		}
		if count >= int64(cfg.RequestLimit.MaxRequests) {
			metrics.GateRejections.WithLabelValues("rate_limit").Inc()
			return Decision{Action: ActionSkip}, nil
		}
	}

	return persistDecision, nil
}

// WindowStart truncates now down to the start of the enclosing fixed window
// in the server's local clock. Hour and day boundaries are computed from
// local wall-clock components rather than absolute-time truncation so they
// line up with what operators see.
func WindowStart(rate string, now time.Time) time.Time {
	switch rate {
	case model.RateSecond:
		return now.Truncate(time.Second)
	case model.RateMinute:
		return now.Truncate(time.Minute)
	case model.RateHour:
		y, m, d := now.Date()
		return time.Date(y, m, d, now.Hour(), 0, 0, 0, now.Location())
	case model.RateDay:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
	return now
}
