package implementation

import (
	"context"
	"errors"

	"aig-pipeline-be/internal/entity"
	"aig-pipeline-be/internal/mapper"
	"aig-pipeline-be/internal/model"
	"aig-pipeline-be/internal/repository/contract"

	"gorm.io/gorm"
)

type ResearchCacheRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ResearchCacheMapper
}

func NewResearchCacheRepository(db *gorm.DB) contract.ResearchCacheRepository {
	return &ResearchCacheRepositoryImpl{
		db:     db,
		mapper: mapper.NewResearchCacheMapper(),
	}
}

func (r *ResearchCacheRepositoryImpl) Create(ctx context.Context, research *entity.ResearchCache) error {
	m := r.mapper.ToModel(research)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*research = *r.mapper.ToEntity(m)
	return nil
}

func (r *ResearchCacheRepositoryImpl) FindLatest(ctx context.Context, fingerprint string) (*entity.ResearchCache, error) {
	var m model.ResearchCache
	err := r.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}
