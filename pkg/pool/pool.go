package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aig-pipeline-be/internal/pkg/logger"
	"aig-pipeline-be/pkg/pipeline"
)

// ErrRateLimited is returned by Submit when the rate-limit gate rejects.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

// ErrTooManyRuns is returned when the per-user concurrency gate rejects.
var ErrTooManyRuns = errors.New("too many concurrent runs for user")

// ErrQueueFull is returned when the pool-wide admission cap rejects.
var ErrQueueFull = errors.New("run queue is at capacity")

// ErrRunNotFound is returned by lookups for unknown or foreign run ids.
var ErrRunNotFound = errors.New("run not found")

// RunInfo is the shared-but-isolated record an execution unit keeps updated
// as the state machine progresses. Readers get snapshots and never block
// writers beyond the mutex hold.
type RunInfo struct {
	mu sync.RWMutex

	RunID         string
	UserID        string
	ConstructName string
	Mode          pipeline.Mode
	Status        pipeline.Status
	Phase         pipeline.Phase
	RevisionCount int
	MaxRevisions  int
	ItemsText     string
	ReviewText    string
	Error         string
	CreatedAt     time.Time
	FinishedAt    *time.Time
}

// Snapshot returns a copy safe to hand to readers.
func (r *RunInfo) Snapshot() RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RunInfo{
		RunID:         r.RunID,
		UserID:        r.UserID,
		ConstructName: r.ConstructName,
		Mode:          r.Mode,
		Status:        r.Status,
		Phase:         r.Phase,
		RevisionCount: r.RevisionCount,
		MaxRevisions:  r.MaxRevisions,
		ItemsText:     r.ItemsText,
		ReviewText:    r.ReviewText,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt,
		FinishedAt:    r.FinishedAt,
	}
}

// Update applies a mutation under the write lock.
func (r *RunInfo) Update(fn func(*RunInfo)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

// SubmitMeta carries the submission attributes tracked in RunInfo.
type SubmitMeta struct {
	UserID        string
	ConstructName string
	Mode          pipeline.Mode
	MaxRevisions  int
}

// ExecFunc is one run's execution unit. It must respect ctx cancellation;
// a context error marks the run cancelled, any other error marks it failed.
type ExecFunc func(ctx context.Context, info *RunInfo) error

// Config sizes the pool and its run registry.
type Config struct {
	// MaxWorkers bounds how many execution units run at once.
	MaxWorkers int
	// GlobalActiveCap rejects submissions outright once this many units are
	// tracked (queued plus running). Zero disables the cap.
	GlobalActiveCap int
	// Retention is how long a finished run stays queryable. Zero keeps
	// finished runs forever.
	Retention time.Duration
}

// Pool accepts run submissions, applies both admission gates, and executes
// runs under a bounded global worker count.
type Pool struct {
	maxWorkers int
	globalCap  int
	retention  time.Duration
	sem        chan struct{}
	limiter    AdmissionLimiter
	conc       *ConcurrencyLimiter
	log        logger.ILogger

	mu      sync.RWMutex
	runs    map[string]*RunInfo
	cancels map[string]context.CancelFunc
	tracked map[string]bool // execution units not yet reaped

	onFinished func(info RunInfo) // optional lifecycle hook
}

func New(cfg Config, limiter AdmissionLimiter, conc *ConcurrencyLimiter, log logger.ILogger) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	return &Pool{
		maxWorkers: cfg.MaxWorkers,
		globalCap:  cfg.GlobalActiveCap,
		retention:  cfg.Retention,
		sem:        make(chan struct{}, cfg.MaxWorkers),
		limiter:    limiter,
		conc:       conc,
		log:        log,
		runs:       make(map[string]*RunInfo),
		cancels:    make(map[string]context.CancelFunc),
		tracked:    make(map[string]bool),
	}
}

// OnFinished registers a hook invoked with the final snapshot of every run.
func (p *Pool) OnFinished(fn func(info RunInfo)) { p.onFinished = fn }

// Submit applies the rate-limit gate, then the concurrency gate, then
// schedules the execution unit. It returns the run id immediately; the run
// executes in the background under the global worker semaphore.
func (p *Pool) Submit(ctx context.Context, meta SubmitMeta, exec ExecFunc) (string, error) {
	p.pruneExpired(time.Now().UTC())

	if p.globalCap > 0 {
		p.mu.RLock()
		n := len(p.tracked)
		p.mu.RUnlock()
		if n >= p.globalCap {
			return "", ErrQueueFull
		}
	}
	if p.limiter != nil {
		if allowed, retryAfter := p.limiter.Check(ctx, meta.UserID); !allowed {
			return "", &ErrRateLimited{RetryAfter: retryAfter}
		}
	}
	if p.conc != nil && !p.conc.Acquire(meta.UserID) {
		return "", ErrTooManyRuns
	}

	runID := uuid.NewString()
	info := &RunInfo{
		RunID:         runID,
		UserID:        meta.UserID,
		ConstructName: meta.ConstructName,
		Mode:          meta.Mode,
		Status:        pipeline.StatusQueued,
		Phase:         pipeline.PhaseWebResearch,
		MaxRevisions:  meta.MaxRevisions,
		CreatedAt:     time.Now().UTC(),
	}

	runCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.runs[runID] = info
	p.cancels[runID] = cancel
	p.tracked[runID] = true
	p.mu.Unlock()

	go p.execute(runCtx, info, exec)

	p.logInfo("Run submitted", map[string]interface{}{
		"run_id": runID, "user_id": meta.UserID, "mode": string(meta.Mode),
	})
	return runID, nil
}

// execute drives one run inside the worker semaphore. The concurrency slot
// is released exactly once regardless of outcome; a panic marks the run
// failed instead of crashing the pool.
func (p *Pool) execute(ctx context.Context, info *RunInfo, exec ExecFunc) {
	var releaseOnce sync.Once
	release := func() {
		releaseOnce.Do(func() {
			if p.conc != nil {
				p.conc.Release(info.UserID)
			}
		})
	}
	defer release()
	defer p.reap(info.RunID)

	defer func() {
		if r := recover(); r != nil {
			p.finish(info, pipeline.StatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.finish(info, pipeline.StatusCancelled, "")
		return
	}
	defer func() { <-p.sem }()

	info.Update(func(r *RunInfo) { r.Status = pipeline.StatusRunning })

	err := exec(ctx, info)
	switch {
	case err == nil:
		p.finish(info, pipeline.StatusDone, "")
	case errors.Is(err, context.Canceled):
		p.finish(info, pipeline.StatusCancelled, "")
	default:
		p.finish(info, pipeline.StatusFailed, err.Error())
	}
}

func (p *Pool) finish(info *RunInfo, status pipeline.Status, errMsg string) {
	now := time.Now().UTC()
	info.Update(func(r *RunInfo) {
		r.Status = status
		r.Error = errMsg
		r.FinishedAt = &now
	})
	p.logInfo("Run finished", map[string]interface{}{
		"run_id": info.RunID, "status": string(status), "error": errMsg,
	})
	if p.onFinished != nil {
		p.onFinished(info.Snapshot())
	}
}

// pruneExpired drops finished runs past the retention window from the
// registry. Tracked units are never pruned.
func (p *Pool) pruneExpired(now time.Time) {
	if p.retention <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, info := range p.runs {
		if p.tracked[id] {
			continue
		}
		snap := info.Snapshot()
		if snap.FinishedAt != nil && now.Sub(*snap.FinishedAt) > p.retention {
			delete(p.runs, id)
		}
	}
}

// reap removes the execution unit from the active-task table. RunInfo stays
// queryable; only the task bookkeeping is dropped.
func (p *Pool) reap(runID string) {
	p.mu.Lock()
	delete(p.tracked, runID)
	delete(p.cancels, runID)
	p.mu.Unlock()
}

// Status returns the run snapshot, or ErrRunNotFound.
func (p *Pool) Status(runID string) (RunInfo, error) {
	p.mu.RLock()
	info, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return RunInfo{}, ErrRunNotFound
	}
	return info.Snapshot(), nil
}

// Cancel requests cooperative cancellation. Returns false when the run is
// unknown or already finished.
func (p *Pool) Cancel(runID string) bool {
	p.mu.RLock()
	cancel, ok := p.cancels[runID]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// List returns a page of the user's runs, newest first, plus the total.
func (p *Pool) List(userID string, page, pageSize int) ([]RunInfo, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	p.mu.RLock()
	all := make([]RunInfo, 0, len(p.runs))
	for _, info := range p.runs {
		snap := info.Snapshot()
		if snap.UserID == userID {
			all = append(all, snap)
		}
	}
	p.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return []RunInfo{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total
}

// ActiveCount is the number of execution units not yet reaped.
func (p *Pool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracked)
}

// PendingCount is how many tracked units are waiting for a worker slot.
func (p *Pool) PendingCount() int {
	n := p.ActiveCount() - p.maxWorkers
	if n < 0 {
		return 0
	}
	return n
}

// MaxWorkers is the configured global worker bound.
func (p *Pool) MaxWorkers() int { return p.maxWorkers }

// Shutdown cancels every tracked run.
func (p *Pool) Shutdown() {
	p.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(p.cancels))
	for _, c := range p.cancels {
		cancels = append(cancels, c)
	}
	p.mu.RUnlock()
	for _, c := range cancels {
		c()
	}
}

func (p *Pool) logInfo(msg string, details map[string]interface{}) {
	if p.log != nil {
		p.log.Info("pool", msg, details)
	}
}
