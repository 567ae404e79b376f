package unitofwork

import (
	"context"

	"aig-pipeline-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	RunRepository() contract.RunRepository
	RunRoundRepository() contract.RunRoundRepository
	RunReviewRepository() contract.RunReviewRepository
	RunFeedbackRepository() contract.RunFeedbackRepository
	ResearchCacheRepository() contract.ResearchCacheRepository
}
