package implementation

import (
	"context"
	"errors"

	"subguard-be/internal/entity"
	"subguard-be/internal/mapper"
	"subguard-be/internal/model"
	"subguard-be/internal/repository/contract"
	"subguard-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CapabilityRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CapabilityMapper
}

func NewCapabilityRepository(db *gorm.DB) contract.CapabilityRepository {
	return &CapabilityRepositoryImpl{
		db:     db,
		mapper: mapper.NewCapabilityMapper(),
	}
}

func (r *CapabilityRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CapabilityRepositoryImpl) Upsert(ctx context.Context, capability *entity.ProviderCapability) error {
	m := r.mapper.ToModel(capability)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "normalized_provider"}},
		UpdateAll: true,
	}).Create(m).Error
	if err != nil {
		return err
	}
	*capability = *r.mapper.ToEntity(m)
	return nil
}

func (r *CapabilityRepositoryImpl) FindByProvider(ctx context.Context, normalizedProvider string) (*entity.ProviderCapability, error) {
	var m model.ProviderCapability
	err := r.db.WithContext(ctx).
		Where("normalized_provider = ?", normalizedProvider).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *CapabilityRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ProviderCapability, error) {
	var models []*model.ProviderCapability
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ProviderCapability, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}
