package implementation

import (
	"context"

	"aig-pipeline-be/internal/entity"
	"aig-pipeline-be/internal/mapper"
	"aig-pipeline-be/internal/model"
	"aig-pipeline-be/internal/repository/contract"
	"aig-pipeline-be/internal/repository/specification"

	"gorm.io/gorm"
)

type RunReviewRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RunReviewMapper
}

func NewRunReviewRepository(db *gorm.DB) contract.RunReviewRepository {
	return &RunReviewRepositoryImpl{
		db:     db,
		mapper: mapper.NewRunReviewMapper(),
	}
}

func (r *RunReviewRepositoryImpl) Create(ctx context.Context, review *entity.RunReview) error {
	m := r.mapper.ToModel(review)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*review = *r.mapper.ToEntity(m)
	return nil
}

func (r *RunReviewRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RunReview, error) {
	var models []*model.RunReview
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
