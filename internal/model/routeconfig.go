package model

import "time"

// Rate window units accepted by a request limit.
const (
	RateSecond = "sec"
	RateMinute = "min"
	RateHour   = "hour"
	RateDay    = "day"
)

// ValidRate reports whether r is one of the accepted window units.
func ValidRate(r string) bool {
	switch r {
	case RateSecond, RateMinute, RateHour, RateDay:
		return true
	}
	return false
}

// Scheduling restricts a route to a same-day time-of-day window.
// Times are zero-padded "HH:MM" strings compared against the server's
// local clock; windows crossing midnight are not supported.
type Scheduling struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// RequestLimit caps requests per fixed time window.
type RequestLimit struct {
	Enabled     bool   `json:"enabled"`
	MaxRequests int    `json:"maxRequests,omitempty"`
	Rate        string `json:"rate,omitempty"`
}

// RouteConfig is the policy record for one (apiKey, path) pair. Exactly one
// exists per pair once any event bearing that pair has been processed; the
// pair is enforced unique by the store.
//
// ApiEnabled is inverted from its plain reading: true means the route is
// blocked. The dashboard and reporting SDK both rely on the literal
// behavior, so it is kept as-is.
type RouteConfig struct {
	ID           string       `json:"id" db:"id"`
	APIKey       string       `json:"apiKey" db:"api_key"`
	Path         string       `json:"path" db:"path"`
	Tracer       bool         `json:"tracer" db:"tracer"`
	ApiEnabled   bool         `json:"apiEnabled" db:"api_enabled"`
	Scheduling   Scheduling   `json:"scheduling"`
	RequestLimit RequestLimit `json:"requestLimit"`
	StartDate    time.Time    `json:"startDate" db:"start_date"`
}

// DefaultRouteConfig returns the policy applied to a route on first sight:
// tracing on, route open, no schedule, no limit.
func DefaultRouteConfig(apiKey, path string, now time.Time) *RouteConfig {
	return &RouteConfig{
		APIKey:     apiKey,
		Path:       path,
		Tracer:     true,
		ApiEnabled: false,
		StartDate:  now,
	}
}

// ConfigUpdate is an explicit partial update for a RouteConfig. Nil fields
// are left untouched. Unknown fields in the request payload are rejected at
// the decoding layer rather than assigned blindly.
type ConfigUpdate struct {
	Tracer       *bool         `json:"tracer,omitempty"`
	ApiEnabled   *bool         `json:"apiEnabled,omitempty"`
	Scheduling   *Scheduling   `json:"scheduling,omitempty"`
	RequestLimit *RequestLimit `json:"requestLimit,omitempty"`
}

// Apply copies the set fields of u onto cfg.
func (u ConfigUpdate) Apply(cfg *RouteConfig) {
	if u.Tracer != nil {
		cfg.Tracer = *u.Tracer
	}
	if u.ApiEnabled != nil {
		cfg.ApiEnabled = *u.ApiEnabled
	}
	if u.Scheduling != nil {
		cfg.Scheduling = *u.Scheduling
	}
	if u.RequestLimit != nil {
		cfg.RequestLimit = *u.RequestLimit
	}
}
