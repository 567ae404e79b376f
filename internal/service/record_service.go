package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"aig-pipeline-be/internal/entity"
	"aig-pipeline-be/internal/pkg/logger"
	"aig-pipeline-be/internal/repository/memory"
	"aig-pipeline-be/internal/repository/specification"
	"aig-pipeline-be/internal/repository/unitofwork"
	"aig-pipeline-be/pkg/pipeline"

	"github.com/google/uuid"
)

const recordLogModule = "record_service"

// RecordService implements pipeline.Recorder over the gorm unit of work,
// with an in-process cache in front of the research table. Every call
// opens its own short-lived unit of work so concurrent runs never share
// a handle.
type RecordService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.ResearchCache
	log        logger.ILogger
}

var _ pipeline.Recorder = (*RecordService)(nil)

func NewRecordService(uowFactory unitofwork.RepositoryFactory, cache *memory.ResearchCache, log logger.ILogger) *RecordService {
	return &RecordService{
		uowFactory: uowFactory,
		cache:      cache,
		log:        log,
	}
}

func (s *RecordService) CreateRun(ctx context.Context, st *pipeline.State) error {
	runID, err := uuid.Parse(st.RunID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(st.UserID)
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.RunRepository().Create(ctx, &entity.Run{
		Id:                  runID,
		UserId:              userID,
		ConstructName:       st.ConstructName,
		ConstructDefinition: st.ConstructDefinition,
		DimensionInfo:       st.DimensionInfo,
		Fingerprint:         st.Fingerprint,
		Mode:                string(st.Mode),
		Status:              string(pipeline.StatusRunning),
		Phase:               string(st.Phase),
		MaxRevisions:        st.MaxRevisions,
	})
}

func (s *RecordService) FinishRun(ctx context.Context, runID string, status pipeline.Status, phase pipeline.Phase, errMsg string, revisions int) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.RunRepository()
	run, err := repo.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if run == nil {
		return errors.New("run record not found")
	}

	applyFinish(run, status, phase, errMsg, revisions, time.Now())
	return repo.Update(ctx, run)
}

// applyFinish stamps the terminal fields. Phase comes from the pool's last
// snapshot so a failed or cancelled run keeps the phase it actually stopped
// in rather than claiming completion.
func applyFinish(run *entity.Run, status pipeline.Status, phase pipeline.Phase, errMsg string, revisions int, now time.Time) {
	run.Status = string(status)
	if phase != "" {
		run.Phase = string(phase)
	}
	run.Error = errMsg
	run.RevisionCount = revisions
	run.FinishedAt = &now
}

func (s *RecordService) SaveRound(ctx context.Context, runID string, round int, phase pipeline.Phase, items []pipeline.Item) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.RunRoundRepository().Create(ctx, &entity.RunRound{
		RunId: id,
		Round: round,
		Phase: string(phase),
		Items: payload,
	}); err != nil {
		return err
	}

	// Keep the parent run's item snapshot current so previous-item memory
	// can read it without joining rounds.
	repo := uow.RunRepository()
	run, err := repo.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if run != nil {
		run.Items = payload
		run.Phase = string(phase)
		run.RevisionCount = round
		if err := repo.Update(ctx, run); err != nil {
			return err
		}
	}

	return uow.Commit()
}

func (s *RecordService) SaveReview(ctx context.Context, runID string, round int, ratings map[int]pipeline.RatingBundle, decisions []pipeline.ItemDecision, synthesis string) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return err
	}
	ratingsJSON, err := json.Marshal(ratings)
	if err != nil {
		return err
	}
	decisionsJSON, err := json.Marshal(decisions)
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.RunReviewRepository().Create(ctx, &entity.RunReview{
		RunId:     id,
		Round:     round,
		Ratings:   ratingsJSON,
		Decisions: decisionsJSON,
		Synthesis: synthesis,
	})
}

func (s *RecordService) SaveFeedback(ctx context.Context, runID string, round int, source, text, decision string) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.RunFeedbackRepository().Create(ctx, &entity.RunFeedback{
		RunId:    id,
		Round:    round,
		Source:   source,
		Text:     text,
		Decision: decision,
	})
}

func (s *RecordService) SaveResearch(ctx context.Context, runID, fingerprint, summary string) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return err
	}

	s.cache.Save(fingerprint, summary)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ResearchCacheRepository().Create(ctx, &entity.ResearchCache{
		Fingerprint: fingerprint,
		RunId:       id,
		Summary:     summary,
	})
}

func (s *RecordService) GetCachedResearch(ctx context.Context, fingerprint string, ttl time.Duration) (string, bool, error) {
	if summary, ok := s.cache.Get(fingerprint); ok {
		return summary, true, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	row, err := uow.ResearchCacheRepository().FindLatest(ctx, fingerprint)
	if err != nil {
		return "", false, err
	}
	if row == nil || time.Since(row.CreatedAt) > ttl {
		return "", false, nil
	}

	// Warm the in-process layer for the next hit.
	s.cache.Save(fingerprint, row.Summary)
	return row.Summary, true, nil
}

func (s *RecordService) GetPreviousItems(ctx context.Context, fingerprint, excludeRunID string, limit int) ([]string, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	specs := []specification.Specification{
		specification.ByFingerprint{Fingerprint: fingerprint},
		specification.ByStatus{Status: string(pipeline.StatusDone)},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: 0},
	}
	if id, err := uuid.Parse(excludeRunID); err == nil {
		specs = append(specs, specification.ExcludeRun{RunID: id})
	}

	runs, err := uow.RunRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	var previous []string
	for _, run := range runs {
		if len(run.Items) == 0 {
			continue
		}
		var items []pipeline.Item
		if err := json.Unmarshal(run.Items, &items); err != nil {
			s.log.Warn(recordLogModule, "Skipping unreadable item snapshot", map[string]interface{}{
				"run_id": run.Id.String(),
				"error":  err.Error(),
			})
			continue
		}
		previous = append(previous, pipeline.ItemsText(items))
	}
	return previous, nil
}
