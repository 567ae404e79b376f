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

type RunFeedbackRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RunFeedbackMapper
}

func NewRunFeedbackRepository(db *gorm.DB) contract.RunFeedbackRepository {
	return &RunFeedbackRepositoryImpl{
		db:     db,
		mapper: mapper.NewRunFeedbackMapper(),
	}
}

func (r *RunFeedbackRepositoryImpl) Create(ctx context.Context, feedback *entity.RunFeedback) error {
	m := r.mapper.ToModel(feedback)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*feedback = *r.mapper.ToEntity(m)
	return nil
}

func (r *RunFeedbackRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RunFeedback, error) {
	var models []*model.RunFeedback
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
