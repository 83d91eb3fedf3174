package analytics

import (
	"context"
	"math"
	"testing"
	"time"

	"subguard-be/internal/config"
	"subguard-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	statusCounts []*entity.StatusCount
	outcomes     []*entity.MethodOutcome
	lastSince    time.Time
}

func (f *fakeStore) CountByStatus(ctx context.Context, userId *uuid.UUID, since time.Time) ([]*entity.StatusCount, error) {
	f.lastSince = since
	return f.statusCounts, nil
}

func (f *fakeStore) MethodOutcomes(ctx context.Context, userId *uuid.UUID, since time.Time) ([]*entity.MethodOutcome, error) {
	f.lastSince = since
	return f.outcomes, nil
}

func analyticsConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		LowSuccessWarningRate: 0.5,
		HealthyMinRate:        0.9,
		DegradedMinRate:       0.7,
		HealthWindow:          time.Hour,
	}
}

func fixedNow() time.Time {
	t, _ := time.Parse(time.RFC3339, "2024-08-01T12:00:00Z")
	return t
}

func TestReportSuccessRateArithmetic(t *testing.T) {
	// 7 completed, 3 failed for api: rate must be exactly 7/10
	store := &fakeStore{
		statusCounts: []*entity.StatusCount{
			{Status: entity.CancellationStatusCompleted, Count: 7},
			{Status: entity.CancellationStatusFailed, Count: 3},
		},
		outcomes: []*entity.MethodOutcome{
			{Method: entity.MethodApi, Total: 10, Completed: 7, Failed: 3, AvgCompletionSeconds: 42},
		},
	}
	engine := NewEngine(store, analyticsConfig(), fixedNow)

	report, err := engine.Report(context.Background(), nil, 24*time.Hour)
	require.NoError(t, err)

	require.Len(t, report.Methods, 1)
	api := report.Methods[0]
	assert.InDelta(t, 0.7, api.SuccessRate, 1e-9)
	assert.Equal(t, int(math.Round(7.0/10.0*100)), api.SuccessPercent())
	assert.Equal(t, int64(10), report.TotalRequests)
	assert.InDelta(t, 0.7, report.OverallSuccessRate, 1e-9)
	assert.Equal(t, fixedNow().Add(-24*time.Hour), report.Since)
}

func TestReportRecommendsBestMethod(t *testing.T) {
	store := &fakeStore{
		outcomes: []*entity.MethodOutcome{
			{Method: entity.MethodApi, Total: 10, Completed: 9, Failed: 1},
			{Method: entity.MethodAutomation, Total: 10, Completed: 6, Failed: 4},
		},
	}
	engine := NewEngine(store, analyticsConfig(), fixedNow)

	report, err := engine.Report(context.Background(), nil, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, report.Recommendations, 1)
	assert.Contains(t, report.Recommendations[0], "api")
	assert.Empty(t, report.Warnings)
}

func TestReportWarnsOnLowSuccessRate(t *testing.T) {
	store := &fakeStore{
		outcomes: []*entity.MethodOutcome{
			{Method: entity.MethodAutomation, Total: 10, Completed: 2, Failed: 8},
		},
	}
	engine := NewEngine(store, analyticsConfig(), fixedNow)

	report, err := engine.Report(context.Background(), nil, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "below")
}

func TestReportEmptyWindow(t *testing.T) {
	engine := NewEngine(&fakeStore{}, analyticsConfig(), fixedNow)

	report, err := engine.Report(context.Background(), nil, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, report.TotalRequests)
	assert.Zero(t, report.OverallSuccessRate)
	assert.Empty(t, report.Recommendations)
	assert.Empty(t, report.Warnings)
}

func TestSystemHealthClassification(t *testing.T) {
	tests := []struct {
		name      string
		completed int64
		failed    int64
		want      HealthState
	}{
		{name: "healthy above 90", completed: 95, failed: 5, want: HealthHealthy},
		{name: "exactly 90 is degraded", completed: 90, failed: 10, want: HealthDegraded},
		{name: "degraded above 70", completed: 75, failed: 25, want: HealthDegraded},
		{name: "unhealthy at 70", completed: 70, failed: 30, want: HealthUnhealthy},
		{name: "unhealthy below 70", completed: 1, failed: 9, want: HealthUnhealthy},
		{name: "no traffic is healthy", completed: 0, failed: 0, want: HealthHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				outcomes: []*entity.MethodOutcome{
					{Method: entity.MethodApi, Total: tt.completed + tt.failed, Completed: tt.completed, Failed: tt.failed},
				},
			}
			engine := NewEngine(store, analyticsConfig(), fixedNow)

			health, err := engine.SystemHealth(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, health.State)
			// the health view must restrict itself to the recent window
			assert.Equal(t, fixedNow().Add(-time.Hour), store.lastSince)
		})
	}
}

func TestSystemHealthPerMethodStates(t *testing.T) {
	store := &fakeStore{
		outcomes: []*entity.MethodOutcome{
			{Method: entity.MethodApi, Total: 100, Completed: 95, Failed: 5},
			{Method: entity.MethodAutomation, Total: 100, Completed: 50, Failed: 50},
		},
	}
	engine := NewEngine(store, analyticsConfig(), fixedNow)

	health, err := engine.SystemHealth(context.Background())
	require.NoError(t, err)
	require.Len(t, health.Methods, 2)

	byMethod := map[entity.CancellationMethod]MethodHealth{}
	for _, m := range health.Methods {
		byMethod[m.Method] = m
	}
	assert.Equal(t, HealthHealthy, byMethod[entity.MethodApi].State)
	assert.Equal(t, HealthUnhealthy, byMethod[entity.MethodAutomation].State)
	// overall: 145/200 = 72.5% → degraded
	assert.Equal(t, HealthDegraded, health.State)
}
