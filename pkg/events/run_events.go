package events

import "time"

// Run lifecycle event codes.
const (
	RunSubmittedEvent       = "RUN_SUBMITTED"
	RunPhaseChangedEvent    = "RUN_PHASE_CHANGED"
	RunWaitingFeedbackEvent = "RUN_WAITING_FEEDBACK"
	RunDoneEvent            = "RUN_DONE"
	RunFailedEvent          = "RUN_FAILED"
	RunCancelledEvent       = "RUN_CANCELLED"
)

// NewRunSubmitted is emitted when a run is accepted by the worker pool.
func NewRunSubmitted(runID, userID, constructName, mode string) Event {
	return BaseEvent{
		Type: RunSubmittedEvent,
		Data: map[string]interface{}{
			"run_id":         runID,
			"user_id":        userID,
			"construct_name": constructName,
			"mode":           mode,
		},
		OccurredAt: time.Now(),
	}
}

// NewRunPhaseChanged is emitted on every phase transition.
func NewRunPhaseChanged(runID, userID, phase string, revision int) Event {
	return BaseEvent{
		Type: RunPhaseChangedEvent,
		Data: map[string]interface{}{
			"run_id":   runID,
			"user_id":  userID,
			"phase":    phase,
			"revision": revision,
		},
		OccurredAt: time.Now(),
	}
}

// NewRunWaitingFeedback is emitted when an interactive run suspends for
// human feedback.
func NewRunWaitingFeedback(runID, userID, userEmail, constructName string, revision int) Event {
	return BaseEvent{
		Type: RunWaitingFeedbackEvent,
		Data: map[string]interface{}{
			"run_id":         runID,
			"user_id":        userID,
			"user_email":     userEmail,
			"construct_name": constructName,
			"revision":       revision,
		},
		OccurredAt: time.Now(),
	}
}

// NewRunFinished is emitted when a run reaches a terminal status.
// status is one of DONE, FAILED, CANCELLED.
func NewRunFinished(runID, userID, status, errMsg string, revisions int) Event {
	eventType := RunDoneEvent
	switch status {
	case "FAILED":
		eventType = RunFailedEvent
	case "CANCELLED":
		eventType = RunCancelledEvent
	}
	data := map[string]interface{}{
		"run_id":    runID,
		"user_id":   userID,
		"status":    status,
		"revisions": revisions,
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}
