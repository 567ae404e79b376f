package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"aig-pipeline-be/internal/config"
	"aig-pipeline-be/internal/dto"
	"aig-pipeline-be/internal/pkg/logger"
	"aig-pipeline-be/pkg/agents"
	"aig-pipeline-be/pkg/events"
	"aig-pipeline-be/pkg/pipeline"
	"aig-pipeline-be/pkg/pool"
)

const runLogModule = "run_service"

type IRunService interface {
	Submit(ctx context.Context, userID, userEmail string, req dto.SubmitRunRequest) (*dto.SubmitRunResponse, error)
	Status(ctx context.Context, userID, runID string) (*dto.RunStatusResponse, error)
	List(ctx context.Context, userID string, page, pageSize int) (*dto.ListRunsResponse, error)
	Cancel(ctx context.Context, userID, runID string) (*dto.CancelRunResponse, error)
	Feedback(ctx context.Context, userID, runID string, req dto.FeedbackRequest) (*dto.FeedbackResponse, error)
	Health() *dto.HealthResponse
}

type runService struct {
	pool      *pool.Pool
	agents    *agents.Runner
	recorder  pipeline.Recorder
	injection pipeline.InjectionChecker
	publisher IEventPublisher
	cfg       config.PipelineConfig
	log       logger.ILogger

	mu       sync.Mutex
	policies map[string]*pipeline.InteractivePolicy // live interactive runs
}

func NewRunService(
	p *pool.Pool,
	agentRunner *agents.Runner,
	recorder pipeline.Recorder,
	injection pipeline.InjectionChecker,
	publisher IEventPublisher,
	cfg config.PipelineConfig,
	log logger.ILogger,
) IRunService {
	s := &runService{
		pool:      p,
		agents:    agentRunner,
		recorder:  recorder,
		injection: injection,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		policies:  make(map[string]*pipeline.InteractivePolicy),
	}
	p.OnFinished(s.handleFinished)
	return s
}

// Fingerprint identifies a construct across runs so research caching and
// previous-item memory survive resubmissions with identical inputs.
func Fingerprint(in pipeline.ConstructInput) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(in.ConstructName))))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.TrimSpace(in.ConstructDefinition)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.TrimSpace(in.DimensionInfo)))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *runService) Submit(ctx context.Context, userID, userEmail string, req dto.SubmitRunRequest) (*dto.SubmitRunResponse, error) {
	construct := pipeline.ConstructInput{
		ConstructName:       strings.TrimSpace(req.ConstructName),
		ConstructDefinition: strings.TrimSpace(req.ConstructDefinition),
		DimensionInfo:       strings.TrimSpace(req.DimensionInfo),
	}
	if preset, ok := constructPresets[strings.ToLower(req.Preset)]; ok {
		if construct.ConstructName == "" {
			construct.ConstructName = preset.ConstructName
		}
		if construct.ConstructDefinition == "" {
			construct.ConstructDefinition = preset.ConstructDefinition
		}
		if construct.DimensionInfo == "" {
			construct.DimensionInfo = preset.DimensionInfo
		}
	}

	if construct.ConstructName == "" || construct.ConstructDefinition == "" {
		return nil, errors.New("construct_name and construct_definition are required unless a known preset is given")
	}

	mode := pipeline.Mode(req.Mode)
	if mode == "" {
		mode = pipeline.ModeInteractive
	}
	maxRevisions := req.MaxRevisions
	if maxRevisions <= 0 {
		maxRevisions = s.cfg.MaxRevisions
	}
	fingerprint := Fingerprint(construct)

	meta := pool.SubmitMeta{
		UserID:        userID,
		ConstructName: construct.ConstructName,
		Mode:          mode,
		MaxRevisions:  maxRevisions,
	}

	exec := func(runCtx context.Context, info *pool.RunInfo) error {
		st := pipeline.NewState(info.RunID, userID, mode, maxRevisions)
		st.ConstructName = construct.ConstructName
		st.ConstructDefinition = construct.ConstructDefinition
		st.DimensionInfo = construct.DimensionInfo
		st.Fingerprint = fingerprint

		var policy pipeline.FeedbackPolicy
		if mode == pipeline.ModeInteractive {
			ip := pipeline.NewInteractivePolicy()
			s.registerPolicy(info.RunID, ip)
			defer s.unregisterPolicy(info.RunID)
			policy = ip
		} else {
			policy = &pipeline.AutomatedPolicy{
				Agents:            s.agents,
				ForceApproveRound: s.cfg.ForceApproveRound,
			}
		}

		hooks := pipeline.Hooks{
			OnPhase: func(st *pipeline.State) {
				info.Update(func(r *pool.RunInfo) {
					r.Phase = st.Phase
					r.RevisionCount = st.RevisionCount
					r.ItemsText = pipeline.ItemsText(st.AllItems())
					r.ReviewText = st.Synthesis
				})
				s.publisher.Publish(events.NewRunPhaseChanged(info.RunID, userID, string(st.Phase), st.RevisionCount))
			},
			OnWaiting: func(st *pipeline.State, waiting bool) {
				status := pipeline.StatusRunning
				if waiting {
					status = pipeline.StatusWaitingFeedback
				}
				info.Update(func(r *pool.RunInfo) { r.Status = status })
				if waiting {
					s.publisher.Publish(events.NewRunWaitingFeedback(
						info.RunID, userID, userEmail, construct.ConstructName, st.RevisionCount))
				}
			},
		}

		machine := pipeline.NewMachine(s.agents, s.recorder, policy, s.injection, s.log, hooks, pipeline.Options{
			ResearchTTL: s.cfg.ResearchTTL,
			MemoryLimit: s.cfg.MemoryLimit,
		})
		return machine.Run(runCtx, st)
	}

	runID, err := s.pool.Submit(ctx, meta, exec)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.NewRunSubmitted(runID, userID, construct.ConstructName, string(mode)))
	s.log.Info(runLogModule, "Run submitted", map[string]interface{}{
		"run_id":    runID,
		"user_id":   userID,
		"construct": construct.ConstructName,
		"mode":      string(mode),
	})

	return &dto.SubmitRunResponse{RunID: runID, Status: string(pipeline.StatusQueued)}, nil
}

func (s *runService) Status(ctx context.Context, userID, runID string) (*dto.RunStatusResponse, error) {
	info, err := s.pool.Status(runID)
	if err != nil {
		return nil, err
	}
	if info.UserID != userID {
		// Don't leak existence of other users' runs.
		return nil, pool.ErrRunNotFound
	}
	res := toRunStatusResponse(info)
	return &res, nil
}

func (s *runService) List(ctx context.Context, userID string, page, pageSize int) (*dto.ListRunsResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	infos, total := s.pool.List(userID, page, pageSize)

	runs := make([]dto.RunStatusResponse, len(infos))
	for i, info := range infos {
		runs[i] = toRunStatusResponse(info)
	}
	return &dto.ListRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}, nil
}

func (s *runService) Cancel(ctx context.Context, userID, runID string) (*dto.CancelRunResponse, error) {
	info, err := s.pool.Status(runID)
	if err != nil {
		return nil, err
	}
	if info.UserID != userID {
		return nil, pool.ErrRunNotFound
	}

	cancelled := s.pool.Cancel(runID)
	return &dto.CancelRunResponse{RunID: runID, Cancelled: cancelled}, nil
}

func (s *runService) Feedback(ctx context.Context, userID, runID string, req dto.FeedbackRequest) (*dto.FeedbackResponse, error) {
	info, err := s.pool.Status(runID)
	if err != nil {
		return nil, err
	}
	if info.UserID != userID {
		return nil, pool.ErrRunNotFound
	}

	s.mu.Lock()
	policy, ok := s.policies[runID]
	s.mu.Unlock()
	if !ok {
		return nil, pipeline.ErrNotWaiting
	}

	fb := pipeline.FeedbackInput{
		Approve: req.Approve,
		Note:    strings.TrimSpace(req.Note),
		Source:  "human",
	}
	if len(req.Decisions) > 0 {
		fb.Decisions = make(map[int]pipeline.Decision, len(req.Decisions))
		for number, decision := range req.Decisions {
			fb.Decisions[number] = pipeline.Decision(decision)
		}
	}

	if err := policy.Resume(fb); err != nil {
		return nil, err
	}

	s.log.Info(runLogModule, "Feedback accepted", map[string]interface{}{
		"run_id":  runID,
		"approve": req.Approve,
	})
	return &dto.FeedbackResponse{RunID: runID, Accepted: true}, nil
}

func (s *runService) Health() *dto.HealthResponse {
	return &dto.HealthResponse{
		Status:      "ok",
		ActiveRuns:  s.pool.ActiveCount(),
		PendingRuns: s.pool.PendingCount(),
		MaxWorkers:  s.pool.MaxWorkers(),
	}
}

func (s *runService) handleFinished(info pool.RunInfo) {
	ctx := context.Background()
	if err := s.recorder.FinishRun(ctx, info.RunID, info.Status, info.Phase, info.Error, info.RevisionCount); err != nil {
		s.log.Warn(runLogModule, "Failed to persist terminal run status", map[string]interface{}{
			"run_id": info.RunID,
			"error":  err.Error(),
		})
	}
	s.publisher.Publish(events.NewRunFinished(
		info.RunID, info.UserID, strings.ToUpper(string(info.Status)), info.Error, info.RevisionCount))
}

func (s *runService) registerPolicy(runID string, p *pipeline.InteractivePolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[runID] = p
}

func (s *runService) unregisterPolicy(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, runID)
}

func toRunStatusResponse(info pool.RunInfo) dto.RunStatusResponse {
	return dto.RunStatusResponse{
		RunID:         info.RunID,
		ConstructName: info.ConstructName,
		Mode:          string(info.Mode),
		Status:        string(info.Status),
		Phase:         string(info.Phase),
		RevisionCount: info.RevisionCount,
		MaxRevisions:  info.MaxRevisions,
		Items:         info.ItemsText,
		ReviewSummary: info.ReviewText,
		Error:         info.Error,
		CreatedAt:     info.CreatedAt,
		FinishedAt:    info.FinishedAt,
	}
}
