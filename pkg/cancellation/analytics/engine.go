package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"subguard-be/internal/config"
	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/apperrors"

	"github.com/google/uuid"
)

// Store is the aggregation surface the engine reads. Grouping happens in
// the database, the engine only derives rates and verdicts.
type Store interface {
	CountByStatus(ctx context.Context, userId *uuid.UUID, since time.Time) ([]*entity.StatusCount, error)
	MethodOutcomes(ctx context.Context, userId *uuid.UUID, since time.Time) ([]*entity.MethodOutcome, error)
}

// MethodStats is one method's aggregated performance over a window.
type MethodStats struct {
	Method               entity.CancellationMethod `json:"method"`
	Total                int64                     `json:"total"`
	Completed            int64                     `json:"completed"`
	Failed               int64                     `json:"failed"`
	SuccessRate          float64                   `json:"successRate"`
	AvgCompletionSeconds float64                   `json:"avgCompletionSeconds"`
}

// SuccessPercent is the success rate as a whole percentage.
func (s MethodStats) SuccessPercent() int {
	return int(math.Round(s.SuccessRate * 100))
}

// Report is the owner-facing analytics aggregate for a timeframe.
type Report struct {
	Timeframe          time.Duration                     `json:"-"`
	Since              time.Time                         `json:"since"`
	TotalRequests      int64                             `json:"totalRequests"`
	CountsByStatus     map[entity.CancellationStatus]int64 `json:"countsByStatus"`
	Methods            []MethodStats                     `json:"methods"`
	OverallSuccessRate float64                           `json:"overallSuccessRate"`
	Recommendations    []string                          `json:"recommendations"`
	Warnings           []string                          `json:"warnings"`
}

type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// MethodHealth is the recent-window snapshot for one method.
type MethodHealth struct {
	Method      entity.CancellationMethod `json:"method"`
	State       HealthState               `json:"state"`
	SuccessRate float64                   `json:"successRate"`
	AvgSeconds  float64                   `json:"avgSeconds"`
	SampleSize  int64                     `json:"sampleSize"`
}

// HealthSnapshot classifies the whole orchestration pipeline over the
// configured recent window.
type HealthSnapshot struct {
	State     HealthState    `json:"state"`
	Window    time.Duration  `json:"-"`
	CheckedAt time.Time      `json:"checkedAt"`
	Methods   []MethodHealth `json:"methods"`
}

// Engine aggregates stored cancellation history into rates, trends, and
// health verdicts. Stateless, safe for concurrent use.
type Engine struct {
	store Store
	cfg   config.AnalyticsConfig
	now   func() time.Time
}

func NewEngine(store Store, cfg config.AnalyticsConfig, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, cfg: cfg, now: now}
}

// Report aggregates one owner's requests (all owners when userId is nil)
// since now - timeframe.
func (e *Engine) Report(ctx context.Context, userId *uuid.UUID, timeframe time.Duration) (*Report, error) {
	since := e.now().Add(-timeframe)

	statusCounts, err := e.store.CountByStatus(ctx, userId, since)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	outcomes, err := e.store.MethodOutcomes(ctx, userId, since)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	report := &Report{
		Timeframe:      timeframe,
		Since:          since,
		CountsByStatus: make(map[entity.CancellationStatus]int64, len(statusCounts)),
	}
	for _, c := range statusCounts {
		report.CountsByStatus[c.Status] = c.Count
		report.TotalRequests += c.Count
	}

	var totalCompleted, totalDecided int64
	for _, o := range outcomes {
		stats := MethodStats{
			Method:               o.Method,
			Total:                o.Total,
			Completed:            o.Completed,
			Failed:               o.Failed,
			SuccessRate:          successRate(o.Completed, o.Failed),
			AvgCompletionSeconds: o.AvgCompletionSeconds,
		}
		report.Methods = append(report.Methods, stats)
		totalCompleted += o.Completed
		totalDecided += o.Completed + o.Failed
	}
	if totalDecided > 0 {
		report.OverallSuccessRate = float64(totalCompleted) / float64(totalDecided)
	}

	report.Recommendations = e.recommend(report.Methods)
	report.Warnings = e.warn(report)
	return report, nil
}

// SystemHealth restricts the aggregation to the configured recent window
// and classifies each method plus the whole pipeline.
func (e *Engine) SystemHealth(ctx context.Context) (*HealthSnapshot, error) {
	since := e.now().Add(-e.cfg.HealthWindow)

	outcomes, err := e.store.MethodOutcomes(ctx, nil, since)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	snapshot := &HealthSnapshot{
		State:     HealthHealthy,
		Window:    e.cfg.HealthWindow,
		CheckedAt: e.now(),
	}

	var totalCompleted, totalDecided int64
	for _, o := range outcomes {
		rate := successRate(o.Completed, o.Failed)
		snapshot.Methods = append(snapshot.Methods, MethodHealth{
			Method:      o.Method,
			State:       e.classify(rate, o.Completed+o.Failed),
			SuccessRate: rate,
			AvgSeconds:  o.AvgCompletionSeconds,
			SampleSize:  o.Total,
		})
		totalCompleted += o.Completed
		totalDecided += o.Completed + o.Failed
	}

	snapshot.State = e.classify(successRate(totalCompleted, totalDecided-totalCompleted), totalDecided)
	return snapshot, nil
}

// classify applies the health thresholds. A window with no decided
// requests is healthy by absence of evidence, not unhealthy.
func (e *Engine) classify(rate float64, decided int64) HealthState {
	switch {
	case decided == 0:
		return HealthHealthy
	case rate > e.cfg.HealthyMinRate:
		return HealthHealthy
	case rate > e.cfg.DegradedMinRate:
		return HealthDegraded
	default:
		return HealthUnhealthy
	}
}

func (e *Engine) recommend(methods []MethodStats) []string {
	var best *MethodStats
	for i := range methods {
		m := &methods[i]
		if m.Completed+m.Failed == 0 {
			continue
		}
		if best == nil || m.SuccessRate > best.SuccessRate {
			best = m
		}
	}
	if best == nil {
		return nil
	}
	return []string{fmt.Sprintf("%s has the highest observed success rate (%d%%), prefer it for this window",
		best.Method, best.SuccessPercent())}
}

func (e *Engine) warn(report *Report) []string {
	var warnings []string
	decided := int64(0)
	for _, m := range report.Methods {
		decided += m.Completed + m.Failed
	}
	if decided > 0 && report.OverallSuccessRate < e.cfg.LowSuccessWarningRate {
		warnings = append(warnings, fmt.Sprintf("overall success rate %.0f%% is below the %.0f%% threshold",
			report.OverallSuccessRate*100, e.cfg.LowSuccessWarningRate*100))
	}
	if stuck := report.CountsByStatus[entity.CancellationStatusRequiresManual]; stuck > 3 {
		warnings = append(warnings, fmt.Sprintf("%d requests are waiting on owner action", stuck))
	}
	return warnings
}

func successRate(completed, failed int64) float64 {
	decided := completed + failed
	if decided == 0 {
		return 0
	}
	return float64(completed) / float64(decided)
}
