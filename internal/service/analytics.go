package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/apiwatch/apiwatch/internal/repository"
)

// EventReader is the read side of the event log used by the dashboard.
type EventReader interface {
	FindAll(ctx context.Context) ([]*model.Event, error)
	FindMonth(ctx context.Context, year, month int) ([]*model.Event, error)
	UniqueRoutes(ctx context.Context) ([]model.UniqueRoute, error)
	DailyUptime(ctx context.Context) ([]model.UptimePoint, error)
	CountSince(ctx context.Context, apiKey, path string, since time.Time) (int64, error)
}

// Analytics serves the dashboard read endpoints. It only aggregates what the
// ingest path already persisted; it makes no policy decisions of its own,
// with the one exception of RequestCount, which reuses the limiter's window
// math over a broader count.
type Analytics struct {
	events  EventReader
	configs ConfigStore
	now     func() time.Time
}

func NewAnalytics(events EventReader, configs ConfigStore) *Analytics {
	return &Analytics{events: events, configs: configs, now: time.Now}
}

// RequestCount reports whether the route is currently over its configured
// ceiling. Unlike the ingest-path limiter, this counts every stored event
// for the pair in the window, not just Limiter rejections. Missing config or
// a disabled limit always answers not-blocked.
func (a *Analytics) RequestCount(ctx context.Context, apiKey, path string) (model.RequestCountResponse, error) {
	cfg, err := a.configs.Get(ctx, apiKey, path)
	if errors.Is(err, repository.ErrConfigNotFound) {
		return model.RequestCountResponse{Blocked: false}, nil
	}
	if err != nil {
		return model.RequestCountResponse{}, err
	}
	if !cfg.RequestLimit.Enabled {
		return model.RequestCountResponse{Blocked: false}, nil
	}

	since := WindowStart(cfg.RequestLimit.Rate, a.now())
	count, err := a.events.CountSince(ctx, apiKey, path, since)
	if err != nil {
		return model.RequestCountResponse{}, err
	}
	if count >= int64(cfg.RequestLimit.MaxRequests) {
		return model.RequestCountResponse{Blocked: true, Reason: "Rate limit exceeded"}, nil
	}
	return model.RequestCountResponse{Blocked: false}, nil
}

func (a *Analytics) UniqueRoutes(ctx context.Context) ([]model.UniqueRoute, error) {
	return a.events.UniqueRoutes(ctx)
}

func (a *Analytics) MonthlyEvents(ctx context.Context, year, month int) ([]*model.Event, error) {
	return a.events.FindMonth(ctx, year, month)
}

func (a *Analytics) AllEvents(ctx context.Context) ([]*model.Event, error) {
	return a.events.FindAll(ctx)
}

// Metrics computes the dashboard headline numbers across the whole log.
func (a *Analytics) Metrics(ctx context.Context) (model.MetricsSummary, error) {
	logs, err := a.events.FindAll(ctx)
	if err != nil {
		return model.MetricsSummary{}, err
	}
	return summarize(logs), nil
}

func summarize(logs []*model.Event) model.MetricsSummary {
	if len(logs) == 0 {
		return model.MetricsSummary{}
	}

	var (
		totalDuration int64
		successful    int64
		errored       int64
		peak          int64
		errFreq       = map[int]int{}
		latestErr     *time.Time
		days          = map[string]int64{}
	)

	for _, log := range logs {
		totalDuration += log.DurationMs
		if log.DurationMs > peak {
			peak = log.DurationMs
		}
		if log.Status >= 200 && log.Status < 300 {
			successful++
		}
		if log.Status >= 400 && log.Status < 600 {
			errored++
			errFreq[log.Status]++
			if latestErr == nil || log.Timestamp.After(*latestErr) {
				ts := log.Timestamp
				latestErr = &ts
			}
		}
		days[log.Timestamp.Format("2006-01-02")]++
	}

	total := int64(len(logs))
	summary := model.MetricsSummary{
		TotalRequestVolume:   total,
		AvgResponseTime:      float64(totalDuration) / float64(total),
		Uptime:               float64(successful) / float64(total) * 100,
		ErrorRate:            float64(errored) / float64(total) * 100,
		LatestErrorTimestamp: latestErr,
		AvgPerDay:            float64(total) / float64(len(days)),
		Peak:                 peak,
	}

	if len(errFreq) > 0 {
		best, bestCount := 0, 0
		for code, n := range errFreq {
			// Lowest code wins a tie so the result is stable across runs.
			if n > bestCount || (n == bestCount && code < best) {
				best, bestCount = code, n
			}
		}
		codeStr := strconv.Itoa(best)
		summary.MostFrequentErrCode = &codeStr
	}

	return summary
}

// Graph computes the overall uptime plus the per-day series.
func (a *Analytics) Graph(ctx context.Context) (model.GraphData, error) {
	logs, err := a.events.FindAll(ctx)
	if err != nil {
		return model.GraphData{}, err
	}

	var successful int64
	for _, log := range logs {
		if log.Status >= 200 && log.Status < 300 {
			successful++
		}
	}

	total := int64(len(logs))
	uptime := 0.0
	if total > 0 {
		uptime = float64(successful) / float64(total) * 100
	}

	series, err := a.events.DailyUptime(ctx)
	if err != nil {
		return model.GraphData{}, err
	}
	if series == nil {
		series = []model.UptimePoint{}
	}

	return model.GraphData{
		TotalRequests:       total,
		SuccessfulResponses: successful,
		Uptime:              fmt.Sprintf("%.2f", uptime),
		UptimeData:          series,
	}, nil
}
