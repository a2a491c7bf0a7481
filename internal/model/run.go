package model

import "time"

// PhaseName identifies one of the three sequential ingestion phases.
type PhaseName string

const (
	PhaseEntities PhaseName = "entities"
	PhasePreRace  PhaseName = "prerace"
	PhaseResults  PhaseName = "results"
)

// RunStatus is the lifecycle state of a recorded phase run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunRecord is the persisted log entry for one phase run.
type RunRecord struct {
	ID          string     `json:"id"`
	Phase       PhaseName  `json:"phase"`
	Status      RunStatus  `json:"status"`
	Stats       string     `json:"stats,omitempty"` // JSON-encoded PhaseStats
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
