package implementation

import (
	"context"
	"errors"
	"time"

	"subguard-be/internal/entity"
	"subguard-be/internal/mapper"
	"subguard-be/internal/model"
	"subguard-be/internal/repository/contract"
	"subguard-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CancellationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CancellationMapper
}

func NewCancellationRepository(db *gorm.DB) contract.CancellationRepository {
	return &CancellationRepositoryImpl{
		db:     db,
		mapper: mapper.NewCancellationMapper(),
	}
}

func (r *CancellationRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CancellationRepositoryImpl) CreateRequest(ctx context.Context, request *entity.CancellationRequest) error {
	m := r.mapper.RequestToModel(request)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*request = *r.mapper.RequestToEntity(m)
	return nil
}

func (r *CancellationRepositoryImpl) FindOneRequest(ctx context.Context, specs ...specification.Specification) (*entity.CancellationRequest, error) {
	var m model.CancellationRequest
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.RequestToEntity(&m), nil
}

func (r *CancellationRepositoryImpl) FindAllRequests(ctx context.Context, specs ...specification.Specification) ([]*entity.CancellationRequest, error) {
	var models []*model.CancellationRequest
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.CancellationRequest, len(models))
	for i, m := range models {
		entities[i] = r.mapper.RequestToEntity(m)
	}
	return entities, nil
}

// UpdateRequestIf is the optimistic check-and-set that serializes
// transitions: the UPDATE carries the expected status in its WHERE clause,
// so a concurrent transition makes RowsAffected come back zero.
func (r *CancellationRepositoryImpl) UpdateRequestIf(ctx context.Context, request *entity.CancellationRequest, expected entity.CancellationStatus) (bool, error) {
	m := r.mapper.RequestToModel(request)
	result := r.db.WithContext(ctx).Model(&model.CancellationRequest{}).
		Where("id = ? AND status = ?", m.Id, string(expected)).
		Select("*").Omit("id", "created_at").
		Updates(m)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *CancellationRepositoryImpl) AppendLog(ctx context.Context, log *entity.CancellationLog) error {
	m := r.mapper.LogToModel(log)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*log = *r.mapper.LogToEntity(m)
	return nil
}

func (r *CancellationRepositoryImpl) FindLogs(ctx context.Context, requestId uuid.UUID) ([]*entity.CancellationLog, error) {
	var models []*model.CancellationLog
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestId).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.CancellationLog, len(models))
	for i, m := range models {
		entities[i] = r.mapper.LogToEntity(m)
	}
	return entities, nil
}

func (r *CancellationRepositoryImpl) LastLogTime(ctx context.Context, requestId uuid.UUID) (*time.Time, error) {
	var m model.CancellationLog
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestId).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	t := m.CreatedAt
	return &t, nil
}

func (r *CancellationRepositoryImpl) CountByStatus(ctx context.Context, userId *uuid.UUID, since time.Time) ([]*entity.StatusCount, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row

	query := r.db.WithContext(ctx).Model(&model.CancellationRequest{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("status")
	if userId != nil {
		query = query.Where("user_id = ?", *userId)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*entity.StatusCount, len(rows))
	for i, rw := range rows {
		out[i] = &entity.StatusCount{
			Status: entity.CancellationStatus(rw.Status),
			Count:  rw.Count,
		}
	}
	return out, nil
}

func (r *CancellationRepositoryImpl) MethodOutcomes(ctx context.Context, userId *uuid.UUID, since time.Time) ([]*entity.MethodOutcome, error) {
	type row struct {
		Method     string
		Total      int64
		Completed  int64
		Failed     int64
		AvgSeconds float64
	}
	var rows []row

	query := r.db.WithContext(ctx).Model(&model.CancellationRequest{}).
		Select(`
			method,
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE status = 'completed') as completed,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - created_at))) FILTER (WHERE status = 'completed'), 0) as avg_seconds
		`).
		Where("created_at >= ?", since).
		Group("method")
	if userId != nil {
		query = query.Where("user_id = ?", *userId)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*entity.MethodOutcome, len(rows))
	for i, rw := range rows {
		out[i] = &entity.MethodOutcome{
			Method:               entity.CancellationMethod(rw.Method),
			Total:                rw.Total,
			Completed:            rw.Completed,
			Failed:               rw.Failed,
			AvgCompletionSeconds: rw.AvgSeconds,
		}
	}
	return out, nil
}
