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

type RunRoundRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RunRoundMapper
}

func NewRunRoundRepository(db *gorm.DB) contract.RunRoundRepository {
	return &RunRoundRepositoryImpl{
		db:     db,
		mapper: mapper.NewRunRoundMapper(),
	}
}

func (r *RunRoundRepositoryImpl) Create(ctx context.Context, round *entity.RunRound) error {
	m := r.mapper.ToModel(round)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*round = *r.mapper.ToEntity(m)
	return nil
}

func (r *RunRoundRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RunRound, error) {
	var models []*model.RunRound
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
