package contract

import (
	"context"

	"aig-pipeline-be/internal/entity"
	"aig-pipeline-be/internal/repository/specification"

	"github.com/google/uuid"
)

type RunRepository interface {
	Create(ctx context.Context, run *entity.Run) error
	Update(ctx context.Context, run *entity.Run) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Run, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Run, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type RunRoundRepository interface {
	Create(ctx context.Context, round *entity.RunRound) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RunRound, error)
}

type RunReviewRepository interface {
	Create(ctx context.Context, review *entity.RunReview) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RunReview, error)
}

type RunFeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.RunFeedback) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RunFeedback, error)
}

type ResearchCacheRepository interface {
	Create(ctx context.Context, research *entity.ResearchCache) error
	FindLatest(ctx context.Context, fingerprint string) (*entity.ResearchCache, error)
}
