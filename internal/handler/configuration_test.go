package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apiwatch/apiwatch/internal/middleware"
	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/gin-gonic/gin"
)

func postConfig(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestConfigGetOrCreateDefaults(t *testing.T) {
	configs := newStubConfigs()
	r := newTestRouter(&stubEvents{}, configs)

	req := httptest.NewRequest(http.MethodGet, "/api/config?path=/a", nil)
	req.Header.Set(middleware.HeaderTrackAPIKey, "key-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var cfg model.RouteConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if !cfg.Tracer || cfg.ApiEnabled || cfg.Scheduling.Enabled || cfg.RequestLimit.Enabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigUpdatePartial(t *testing.T) {
	configs := newStubConfigs()
	configs.configs["key-1|/a"] = model.DefaultRouteConfig("key-1", "/a", time.Now())
	r := newTestRouter(&stubEvents{}, configs)

	rec := postConfig(r, `{"apiKey":"key-1","path":"/a","tracer":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	updated := configs.configs["key-1|/a"]
	if updated.Tracer {
		t.Fatalf("tracer not updated")
	}
	// Untouched fields keep their values.
	if updated.ApiEnabled || updated.Scheduling.Enabled {
		t.Fatalf("unrelated fields changed: %+v", updated)
	}
}

func TestConfigUpdateUnknownFieldRejected(t *testing.T) {
	configs := newStubConfigs()
	configs.configs["key-1|/a"] = model.DefaultRouteConfig("key-1", "/a", time.Now())
	r := newTestRouter(&stubEvents{}, configs)

	rec := postConfig(r, `{"apiKey":"key-1","path":"/a","tracre":false}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}

	if !configs.configs["key-1|/a"].Tracer {
		t.Fatalf("config must not change on a rejected update")
	}
}

func TestConfigUpdateMissingConfig(t *testing.T) {
	r := newTestRouter(&stubEvents{}, newStubConfigs())

	rec := postConfig(r, `{"apiKey":"key-1","path":"/a","tracer":false}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if body.Code != "NOT_FOUND" || body.Message != "Config not found" {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestConfigUpdateScheduling(t *testing.T) {
	configs := newStubConfigs()
	configs.configs["key-1|/a"] = model.DefaultRouteConfig("key-1", "/a", time.Now())
	r := newTestRouter(&stubEvents{}, configs)

	rec := postConfig(r, `{"apiKey":"key-1","path":"/a","scheduling":{"enabled":true,"startTime":"09:00","endTime":"17:00"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	updated := configs.configs["key-1|/a"]
	if !updated.Scheduling.Enabled || updated.Scheduling.StartTime != "09:00" {
		t.Fatalf("scheduling not applied: %+v", updated.Scheduling)
	}
}

func TestConfigUpdateInvalidRate(t *testing.T) {
	configs := newStubConfigs()
	configs.configs["key-1|/a"] = model.DefaultRouteConfig("key-1", "/a", time.Now())
	r := newTestRouter(&stubEvents{}, configs)

	rec := postConfig(r, `{"apiKey":"key-1","path":"/a","requestLimit":{"enabled":true,"maxRequests":5,"rate":"week"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad rate, got %d", rec.Code)
	}
}

func TestConfigFetch(t *testing.T) {
	configs := newStubConfigs()
	configs.configs["key-1|/a"] = model.DefaultRouteConfig("key-1", "/a", time.Now())
	r := newTestRouter(&stubEvents{}, configs)

	req := httptest.NewRequest(http.MethodGet, "/api/setconfig/key-1?path=/a", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/setconfig/key-2?path=/a", nil)
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown pair, got %d", rec2.Code)
	}
}
