package dto

import (
	"time"
)

type SubmitRunRequest struct {
	ConstructName       string `json:"construct_name" validate:"omitempty,min=2"`
	ConstructDefinition string `json:"construct_definition" validate:"omitempty,min=10"`
	DimensionInfo       string `json:"dimension_info"`
	Preset              string `json:"preset"` // optional named construct preset
	Mode                string `json:"mode" validate:"omitempty,oneof=interactive automated"`
	MaxRevisions        int    `json:"max_revisions" validate:"omitempty,gte=0,lte=10"`
}

type SubmitRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type RunStatusResponse struct {
	RunID         string     `json:"run_id"`
	ConstructName string     `json:"construct_name"`
	Mode          string     `json:"mode"`
	Status        string     `json:"status"`
	Phase         string     `json:"phase,omitempty"`
	RevisionCount int        `json:"revision_count"`
	MaxRevisions  int        `json:"max_revisions"`
	Items         string     `json:"items,omitempty"`
	ReviewSummary string     `json:"review_summary,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

type ListRunsResponse struct {
	Runs   []RunStatusResponse `json:"runs"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type FeedbackRequest struct {
	Approve   bool           `json:"approve"`
	Decisions map[int]string `json:"decisions" validate:"omitempty,dive,oneof=KEEP REVISE DISCARD"`
	Note      string         `json:"note"`
}

type FeedbackResponse struct {
	RunID    string `json:"run_id"`
	Accepted bool   `json:"accepted"`
}

type CancelRunResponse struct {
	RunID     string `json:"run_id"`
	Cancelled bool   `json:"cancelled"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ActiveRuns  int    `json:"active_runs"`
	PendingRuns int    `json:"pending_runs"`
	MaxWorkers  int    `json:"max_workers"`
}
