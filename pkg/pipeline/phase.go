package pipeline

// Phase is the canonical lifecycle phase of a run.
type Phase string

const (
	PhaseWebResearch    Phase = "web_research"
	PhaseItemGeneration Phase = "item_generation"
	PhaseReview         Phase = "review"
	PhaseHumanFeedback  Phase = "human_feedback"
	PhaseRevision       Phase = "revision"
	PhaseDone           Phase = "done"
)

// Status is the lifecycle status tracked by the worker pool.
type Status string

const (
	StatusQueued          Status = "queued"
	StatusRunning         Status = "running"
	StatusWaitingFeedback Status = "waiting_feedback"
	StatusDone            Status = "done"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// Terminal reports whether a status is final.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// Mode selects the feedback policy for a run.
type Mode string

const (
	// ModeInteractive suspends the run indefinitely at human_feedback
	// until an external actor resumes it.
	ModeInteractive Mode = "interactive"
	// ModeAutomated uses the moderator persona instead of a human.
	ModeAutomated Mode = "automated"
)
