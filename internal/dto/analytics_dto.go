package dto

import "time"

// MethodStatsItem is one method's aggregated performance.
type MethodStatsItem struct {
	Method               string  `json:"method"`
	Total                int64   `json:"total"`
	Completed            int64   `json:"completed"`
	Failed               int64   `json:"failed"`
	SuccessRatePercent   int     `json:"success_rate_percent"`
	AvgCompletionSeconds float64 `json:"avg_completion_seconds"`
}

// AnalyticsResponse is the owner-facing aggregate for a timeframe.
type AnalyticsResponse struct {
	Since                time.Time         `json:"since"`
	TotalRequests        int64             `json:"total_requests"`
	CountsByStatus       map[string]int64  `json:"counts_by_status"`
	Methods              []MethodStatsItem `json:"methods"`
	OverallSuccessRatePc int               `json:"overall_success_rate_percent"`
	Recommendations      []string          `json:"recommendations"`
	Warnings             []string          `json:"warnings"`
}

// MethodHealthItem is one method's recent-window health.
type MethodHealthItem struct {
	Method             string  `json:"method"`
	State              string  `json:"state"`
	SuccessRatePercent int     `json:"success_rate_percent"`
	AvgSeconds         float64 `json:"avg_seconds"`
	SampleSize         int64   `json:"sample_size"`
}

// SystemHealthResponse classifies the orchestration pipeline.
type SystemHealthResponse struct {
	State     string             `json:"state"`
	CheckedAt time.Time          `json:"checked_at"`
	Methods   []MethodHealthItem `json:"methods"`
}
