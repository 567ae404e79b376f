package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aig-pipeline-be/pkg/pipeline"
)

type stubLimiter struct {
	allowed    bool
	retryAfter time.Duration
}

func (s stubLimiter) Check(_ context.Context, _ string) (bool, time.Duration) {
	return s.allowed, s.retryAfter
}

func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func waitStatus(t *testing.T, p *Pool, runID string, want pipeline.Status) RunInfo {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		info, err := p.Status(runID)
		if err == nil && info.Status == want {
			return info
		}
		select {
		case <-deadline:
			t.Fatalf("run %s never reached status %s (last: %+v)", runID, want, info)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestPoolSubmitAndFinish(t *testing.T) {
	p := New(Config{MaxWorkers: 2}, nil, nil, nil)
	defer p.Shutdown()

	var finished []RunInfo
	done := make(chan struct{})
	p.OnFinished(func(info RunInfo) {
		finished = append(finished, info)
		close(done)
	})

	runID, err := p.Submit(context.Background(), SubmitMeta{
		UserID: "alice", ConstructName: "grit", Mode: pipeline.ModeAutomated, MaxRevisions: 3,
	}, func(_ context.Context, info *RunInfo) error {
		info.Update(func(r *RunInfo) { r.Phase = pipeline.PhaseDone })
		return nil
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, runID)

	info := waitStatus(t, p, runID, pipeline.StatusDone)
	assert.Equal(t, "alice", info.UserID)
	assert.Equal(t, pipeline.PhaseDone, info.Phase)
	assert.NotNil(t, info.FinishedAt)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnFinished hook never fired")
	}
	if assert.Len(t, finished, 1) {
		assert.Equal(t, pipeline.StatusDone, finished[0].Status)
	}
}

func TestPoolRateLimitRejection(t *testing.T) {
	p := New(Config{MaxWorkers: 1}, stubLimiter{allowed: false, retryAfter: 42 * time.Second}, nil, nil)

	_, err := p.Submit(context.Background(), SubmitMeta{UserID: "alice"}, nil)
	var rl *ErrRateLimited
	assert.ErrorAs(t, err, &rl)
	assert.Equal(t, 42*time.Second, rl.RetryAfter)
}

func TestPoolPerUserConcurrencyGate(t *testing.T) {
	conc := NewConcurrencyLimiter(1)
	p := New(Config{MaxWorkers: 4}, nil, conc, nil)
	defer p.Shutdown()

	release := make(chan struct{})
	first, err := p.Submit(context.Background(), SubmitMeta{UserID: "alice"},
		func(ctx context.Context, _ *RunInfo) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	assert.NoError(t, err)
	waitStatus(t, p, first, pipeline.StatusRunning)

	_, err = p.Submit(context.Background(), SubmitMeta{UserID: "alice"}, nil)
	assert.ErrorIs(t, err, ErrTooManyRuns)

	// A different user is not affected by alice's active run.
	otherRelease := make(chan struct{})
	close(otherRelease)
	_, err = p.Submit(context.Background(), SubmitMeta{UserID: "bob"},
		func(_ context.Context, _ *RunInfo) error { <-otherRelease; return nil })
	assert.NoError(t, err)

	close(release)
	waitStatus(t, p, first, pipeline.StatusDone)
	waitFor(t, "slot never released", func() bool { return conc.ActiveCount("alice") == 0 })

	second, err := p.Submit(context.Background(), SubmitMeta{UserID: "alice"},
		func(_ context.Context, _ *RunInfo) error { return nil })
	assert.NoError(t, err)
	waitStatus(t, p, second, pipeline.StatusDone)
}

func TestPoolCancelReleasesSlot(t *testing.T) {
	conc := NewConcurrencyLimiter(1)
	p := New(Config{MaxWorkers: 2}, nil, conc, nil)
	defer p.Shutdown()

	runID, err := p.Submit(context.Background(), SubmitMeta{UserID: "alice"},
		func(ctx context.Context, _ *RunInfo) error {
			<-ctx.Done()
			return ctx.Err()
		})
	assert.NoError(t, err)
	waitStatus(t, p, runID, pipeline.StatusRunning)

	assert.True(t, p.Cancel(runID))
	info := waitStatus(t, p, runID, pipeline.StatusCancelled)
	assert.NotNil(t, info.FinishedAt)
	assert.Empty(t, info.Error, "cancellation is not an error")

	// Slot is freed and the execution unit reaped.
	waitFor(t, "slot never released", func() bool { return conc.ActiveCount("alice") == 0 })
	waitFor(t, "run never reaped", func() bool { return !p.Cancel(runID) })
}

func TestPoolFailureCapturesError(t *testing.T) {
	p := New(Config{MaxWorkers: 1}, nil, nil, nil)
	defer p.Shutdown()

	runID, err := p.Submit(context.Background(), SubmitMeta{UserID: "alice"},
		func(_ context.Context, _ *RunInfo) error {
			return errors.New("provider meltdown")
		})
	assert.NoError(t, err)

	info := waitStatus(t, p, runID, pipeline.StatusFailed)
	assert.Equal(t, "provider meltdown", info.Error)
}

func TestPoolPanicMarksRunFailed(t *testing.T) {
	p := New(Config{MaxWorkers: 1}, nil, nil, nil)
	defer p.Shutdown()

	runID, err := p.Submit(context.Background(), SubmitMeta{UserID: "alice"},
		func(_ context.Context, _ *RunInfo) error {
			panic("boom")
		})
	assert.NoError(t, err)

	info := waitStatus(t, p, runID, pipeline.StatusFailed)
	assert.Contains(t, info.Error, "panic")
}

func TestPoolWorkerBound(t *testing.T) {
	p := New(Config{MaxWorkers: 1}, nil, nil, nil)
	defer p.Shutdown()

	release := make(chan struct{})
	blocker := func(ctx context.Context, _ *RunInfo) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	first, err := p.Submit(context.Background(), SubmitMeta{UserID: "alice"}, blocker)
	assert.NoError(t, err)
	waitStatus(t, p, first, pipeline.StatusRunning)

	second, err := p.Submit(context.Background(), SubmitMeta{UserID: "bob"}, blocker)
	assert.NoError(t, err)

	// With one worker the second run must stay queued while the first holds
	// the slot.
	time.Sleep(20 * time.Millisecond)
	info, err := p.Status(second)
	assert.NoError(t, err)
	assert.Equal(t, pipeline.StatusQueued, info.Status)
	assert.Equal(t, 1, p.PendingCount())

	close(release)
	waitStatus(t, p, first, pipeline.StatusDone)
	waitStatus(t, p, second, pipeline.StatusDone)
	waitFor(t, "tracked table never drained", func() bool { return p.ActiveCount() == 0 })
}

func TestPoolList(t *testing.T) {
	p := New(Config{MaxWorkers: 4}, nil, nil, nil)
	defer p.Shutdown()

	noop := func(_ context.Context, _ *RunInfo) error { return nil }
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := p.Submit(context.Background(), SubmitMeta{UserID: "alice"}, noop)
		assert.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond) // distinct CreatedAt ordering
	}
	otherID, err := p.Submit(context.Background(), SubmitMeta{UserID: "bob"}, noop)
	assert.NoError(t, err)
	for _, id := range append(ids, otherID) {
		waitStatus(t, p, id, pipeline.StatusDone)
	}

	runs, total := p.List("alice", 1, 2)
	assert.Equal(t, 3, total)
	if assert.Len(t, runs, 2) {
		assert.Equal(t, ids[2], runs[0].RunID, "newest first")
		assert.Equal(t, ids[1], runs[1].RunID)
	}

	runs, total = p.List("alice", 2, 2)
	assert.Equal(t, 3, total)
	if assert.Len(t, runs, 1) {
		assert.Equal(t, ids[0], runs[0].RunID)
	}

	runs, total = p.List("alice", 3, 2)
	assert.Equal(t, 3, total)
	assert.Empty(t, runs)

	_, err = p.Status("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPoolGlobalActiveCap(t *testing.T) {
	p := New(Config{MaxWorkers: 1, GlobalActiveCap: 2}, nil, nil, nil)
	defer p.Shutdown()

	release := make(chan struct{})
	blocked := func(ctx context.Context, _ *RunInfo) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	first, err := p.Submit(context.Background(), SubmitMeta{UserID: "alice"}, blocked)
	assert.NoError(t, err)
	_, err = p.Submit(context.Background(), SubmitMeta{UserID: "bob"}, blocked)
	assert.NoError(t, err)

	_, err = p.Submit(context.Background(), SubmitMeta{UserID: "carol"}, blocked)
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	waitStatus(t, p, first, pipeline.StatusDone)
	waitFor(t, "capacity never freed after runs drained", func() bool {
		_, err := p.Submit(context.Background(), SubmitMeta{UserID: "carol"},
			func(_ context.Context, _ *RunInfo) error { return nil })
		return err == nil
	})
}

func TestPoolRetentionPrunesFinished(t *testing.T) {
	p := New(Config{MaxWorkers: 1, Retention: time.Millisecond}, nil, nil, nil)
	defer p.Shutdown()

	noop := func(_ context.Context, _ *RunInfo) error { return nil }

	oldID, err := p.Submit(context.Background(), SubmitMeta{UserID: "alice"}, noop)
	assert.NoError(t, err)
	waitStatus(t, p, oldID, pipeline.StatusDone)
	waitFor(t, "finished run never reaped", func() bool { return p.ActiveCount() == 0 })

	time.Sleep(5 * time.Millisecond)

	// Pruning piggybacks on submission.
	_, err = p.Submit(context.Background(), SubmitMeta{UserID: "bob"}, noop)
	assert.NoError(t, err)

	_, err = p.Status(oldID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}
