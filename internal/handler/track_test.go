package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apiwatch/apiwatch/internal/middleware"
	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/apiwatch/apiwatch/internal/repository"
	"github.com/apiwatch/apiwatch/internal/service"
	"github.com/gin-gonic/gin"
)

type stubEvents struct {
	inserted []*model.Event
}

func (s *stubEvents) Insert(_ context.Context, e *model.Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.inserted = append(s.inserted, e)
	return nil
}

func (s *stubEvents) CountLimiterRejections(_ context.Context, apiKey, path string, since time.Time) (int64, error) {
	var n int64
	for _, e := range s.inserted {
		if e.APIKey == apiKey && e.Path == path &&
			e.Type == model.EventTypeLimiter && e.Status == http.StatusTooManyRequests &&
			!e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *stubEvents) CountSince(_ context.Context, apiKey, path string, since time.Time) (int64, error) {
	var n int64
	for _, e := range s.inserted {
		if e.APIKey == apiKey && e.Path == path && !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *stubEvents) FindAll(_ context.Context) ([]*model.Event, error) { return s.inserted, nil }

func (s *stubEvents) FindMonth(_ context.Context, _, _ int) ([]*model.Event, error) {
	return s.inserted, nil
}

func (s *stubEvents) UniqueRoutes(_ context.Context) ([]model.UniqueRoute, error) { return nil, nil }

func (s *stubEvents) DailyUptime(_ context.Context) ([]model.UptimePoint, error) { return nil, nil }

type stubConfigs struct {
	configs map[string]*model.RouteConfig
}

func newStubConfigs() *stubConfigs {
	return &stubConfigs{configs: map[string]*model.RouteConfig{}}
}

func (s *stubConfigs) Get(_ context.Context, apiKey, path string) (*model.RouteConfig, error) {
	cfg, ok := s.configs[apiKey+"|"+path]
	if !ok {
		return nil, repository.ErrConfigNotFound
	}
	copied := *cfg
	return &copied, nil
}

func (s *stubConfigs) GetOrCreate(ctx context.Context, apiKey, path string) (*model.RouteConfig, error) {
	if cfg, err := s.Get(ctx, apiKey, path); err == nil {
		return cfg, nil
	}
	cfg := model.DefaultRouteConfig(apiKey, path, time.Now())
	s.configs[apiKey+"|"+path] = cfg
	copied := *cfg
	return &copied, nil
}

func (s *stubConfigs) Update(_ context.Context, apiKey, path string, update model.ConfigUpdate) (*model.RouteConfig, error) {
	cfg, ok := s.configs[apiKey+"|"+path]
	if !ok {
		return nil, repository.ErrConfigNotFound
	}
	update.Apply(cfg)
	copied := *cfg
	return &copied, nil
}

func newTestRouter(events *stubEvents, configs *stubConfigs) *gin.Engine {
	gin.SetMode(gin.TestMode)

	tracker := service.NewTracker(events, configs, nil)
	analytics := service.NewAnalytics(events, configs)

	trackHandler := NewTrackHandler(tracker, analytics)
	configHandler := NewConfigHandler(tracker)
	analyticsHandler := NewAnalyticsHandler(analytics)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.APIKeyMiddleware())
	r.POST("/api/track", trackHandler.Track)
	r.GET("/api/requestCount", trackHandler.RequestCount)
	r.GET("/api/config", configHandler.GetOrCreate)
	r.POST("/api/config", configHandler.Update)
	r.GET("/api/setconfig/:apiKey", configHandler.Fetch)
	r.GET("/api/all", analyticsHandler.MonthlyEvents)
	return r
}

func postTrack(r *gin.Engine, apiKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/track", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(middleware.HeaderTrackAPIKey, apiKey)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTrackEmptyBody(t *testing.T) {
	events := &stubEvents{}
	r := newTestRouter(events, newStubConfigs())

	rec := postTrack(r, "key-1", "{}")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp model.TrackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if !resp.Success || resp.Count != 0 || resp.Note == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(events.inserted) != 0 {
		t.Fatalf("expected no events persisted, got %d", len(events.inserted))
	}
}

func TestTrackWrappedBatch(t *testing.T) {
	events := &stubEvents{}
	r := newTestRouter(events, newStubConfigs())

	body := `{"events":[{"path":"/a","method":"GET","status":200},{"path":"/b","method":"POST","status":500}]}`
	rec := postTrack(r, "key-1", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp model.TrackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected count 2, got %d", resp.Count)
	}
	if len(events.inserted) != 2 {
		t.Fatalf("expected 2 events persisted, got %d", len(events.inserted))
	}
	for _, e := range events.inserted {
		if e.APIKey != "key-1" {
			t.Fatalf("event missing apiKey: %+v", e)
		}
	}
}

func TestTrackSingleEvent(t *testing.T) {
	events := &stubEvents{}
	r := newTestRouter(events, newStubConfigs())

	rec := postTrack(r, "key-1", `{"path":"/a","method":"GET","status":200,"durationMs":42}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp model.TrackResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Fatalf("expected count 1, got %d", resp.Count)
	}
	if len(events.inserted) != 1 || events.inserted[0].DurationMs != 42 {
		t.Fatalf("event not persisted as provided: %+v", events.inserted)
	}
}

func TestTrackBareArray(t *testing.T) {
	events := &stubEvents{}
	r := newTestRouter(events, newStubConfigs())

	rec := postTrack(r, "key-1", `[{"path":"/a"},{"path":"/b"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp model.TrackResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 2 {
		t.Fatalf("expected count 2, got %d", resp.Count)
	}
}

func TestTrackNonArrayEventsFieldIsSingleEvent(t *testing.T) {
	events := &stubEvents{}
	r := newTestRouter(events, newStubConfigs())

	// An "events" key that is not an array does not unwrap; the body is one
	// event that happens to carry that field.
	rec := postTrack(r, "key-1", `{"path":"/a","method":"GET","status":200,"events":"oops"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp model.TrackResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Fatalf("expected count 1, got %d", resp.Count)
	}
	if len(events.inserted) != 1 || events.inserted[0].Path != "/a" {
		t.Fatalf("expected the whole body stored as one event: %+v", events.inserted)
	}
}

func TestTrackMalformedBody(t *testing.T) {
	r := newTestRouter(&stubEvents{}, newStubConfigs())

	rec := postTrack(r, "key-1", `{"events": not-json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRequestCountMissingParams(t *testing.T) {
	r := newTestRouter(&stubEvents{}, newStubConfigs())

	req := httptest.NewRequest(http.MethodGet, "/api/requestCount?path=/a", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without apiKey header, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/requestCount", nil)
	req2.Header.Set(middleware.HeaderTrackAPIKey, "key-1")
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without path, got %d", rec2.Code)
	}
}

func TestRequestCountNoConfigNotBlocked(t *testing.T) {
	r := newTestRouter(&stubEvents{}, newStubConfigs())

	req := httptest.NewRequest(http.MethodGet, "/api/requestCount?path=/a", nil)
	req.Header.Set(middleware.HeaderTrackAPIKey, "key-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp model.RequestCountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if resp.Blocked {
		t.Fatalf("expected blocked=false with no config")
	}
}
