package service

import (
	"context"
	"time"

	"subguard-be/internal/dto"
	"subguard-be/internal/entity"
	"subguard-be/internal/repository/unitofwork"
	"subguard-be/pkg/cancellation/analytics"

	"github.com/google/uuid"
)

type IAnalyticsService interface {
	Overview(ctx context.Context, userId uuid.UUID, timeframe time.Duration) (*dto.AnalyticsResponse, error)
	Health(ctx context.Context) (*dto.SystemHealthResponse, error)
}

type analyticsService struct {
	engine *analytics.Engine
}

func NewAnalyticsService(engine *analytics.Engine) IAnalyticsService {
	return &analyticsService{engine: engine}
}

// analyticsStore adapts the repository layer to the engine's read surface,
// opening a fresh unit of work per aggregation.
type analyticsStore struct {
	factory unitofwork.RepositoryFactory
}

func NewAnalyticsStore(factory unitofwork.RepositoryFactory) analytics.Store {
	return &analyticsStore{factory: factory}
}

func (s *analyticsStore) CountByStatus(ctx context.Context, userId *uuid.UUID, since time.Time) ([]*entity.StatusCount, error) {
	return s.factory.NewUnitOfWork(ctx).CancellationRepository().CountByStatus(ctx, userId, since)
}

func (s *analyticsStore) MethodOutcomes(ctx context.Context, userId *uuid.UUID, since time.Time) ([]*entity.MethodOutcome, error) {
	return s.factory.NewUnitOfWork(ctx).CancellationRepository().MethodOutcomes(ctx, userId, since)
}

func (s *analyticsService) Overview(ctx context.Context, userId uuid.UUID, timeframe time.Duration) (*dto.AnalyticsResponse, error) {
	report, err := s.engine.Report(ctx, &userId, timeframe)
	if err != nil {
		return nil, err
	}

	res := &dto.AnalyticsResponse{
		Since:                report.Since,
		TotalRequests:        report.TotalRequests,
		CountsByStatus:       make(map[string]int64, len(report.CountsByStatus)),
		Methods:              make([]dto.MethodStatsItem, 0, len(report.Methods)),
		OverallSuccessRatePc: int(report.OverallSuccessRate*100 + 0.5),
		Recommendations:      report.Recommendations,
		Warnings:             report.Warnings,
	}
	for status, count := range report.CountsByStatus {
		res.CountsByStatus[string(status)] = count
	}
	for _, m := range report.Methods {
		res.Methods = append(res.Methods, dto.MethodStatsItem{
			Method:               string(m.Method),
			Total:                m.Total,
			Completed:            m.Completed,
			Failed:               m.Failed,
			SuccessRatePercent:   m.SuccessPercent(),
			AvgCompletionSeconds: m.AvgCompletionSeconds,
		})
	}
	return res, nil
}

func (s *analyticsService) Health(ctx context.Context) (*dto.SystemHealthResponse, error) {
	snapshot, err := s.engine.SystemHealth(ctx)
	if err != nil {
		return nil, err
	}

	res := &dto.SystemHealthResponse{
		State:     string(snapshot.State),
		CheckedAt: snapshot.CheckedAt,
		Methods:   make([]dto.MethodHealthItem, 0, len(snapshot.Methods)),
	}
	for _, m := range snapshot.Methods {
		res.Methods = append(res.Methods, dto.MethodHealthItem{
			Method:             string(m.Method),
			State:              string(m.State),
			SuccessRatePercent: int(m.SuccessRate*100 + 0.5),
			AvgSeconds:         m.AvgSeconds,
			SampleSize:         m.SampleSize,
		})
	}
	return res, nil
}
