package model

import "time"

// TrackResponse echoes the size of the submitted batch, not the number of
// events actually persisted.
type TrackResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Note    string `json:"note,omitempty"`
}

// RequestCountResponse answers GET /api/requestCount.
type RequestCountResponse struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UniqueRoute is one distinct (path, apiKey) pair with its first-seen time.
type UniqueRoute struct {
	APIName   string    `json:"apiName" db:"path"`
	APIKey    string    `json:"apiKey" db:"api_key"`
	StartDate time.Time `json:"startDate" db:"start_date"`
}

// MetricsSummary is the dashboard headline aggregate over all stored events.
type MetricsSummary struct {
	TotalRequestVolume   int64      `json:"totalRequestVolume"`
	AvgResponseTime      float64    `json:"avgResponseTime"`
	Uptime               float64    `json:"uptime"`
	ErrorRate            float64    `json:"errorRate"`
	// The code is a decimal string on the wire; the dashboard reads it as
	// an object key, not a number.
	MostFrequentErrCode  *string    `json:"mostFrequentErrorCode"`
	LatestErrorTimestamp *time.Time `json:"latestErrorTimestamp"`
	AvgPerDay            float64    `json:"avgPerDay"`
	Peak                 int64      `json:"peak"`
}

// UptimePoint is one day of the uptime series on the graph endpoint.
type UptimePoint struct {
	Time   string  `json:"time" db:"day"`
	Uptime float64 `json:"uptime" db:"uptime"`
}

// GraphData answers GET /api/graph.
type GraphData struct {
	TotalRequests       int64         `json:"totalRequests"`
	SuccessfulResponses int64         `json:"successfulResponses"`
	Uptime              string        `json:"uptime"`
	UptimeData          []UptimePoint `json:"uptimeData"`
}
