package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunState tracks the orchestrator's progress through one ingestion run.
type RunState string

const (
	RunIdle            RunState = "idle"
	RunDiscovering     RunState = "discovering"
	RunLoading         RunState = "loading"
	RunCrossPopulating RunState = "cross_populating"
	RunAuditing        RunState = "auditing"
	RunCompleted       RunState = "completed"
	RunFailed          RunState = "failed"
)

// RunContext holds ingestion-run-scoped state. It is owned by exactly
// one orchestrator run and never shared across runs.
type RunContext struct {
	ID        uuid.UUID
	StartedAt time.Time

	loadedKeys map[string]struct{}
}

// NewRunContext creates run state for a fresh ingestion run.
func NewRunContext() *RunContext {
	return &RunContext{
		ID:         uuid.New(),
		StartedAt:  time.Now().UTC(),
		loadedKeys: make(map[string]struct{}),
	}
}

// MarkLoaded records that a parent-category primary key was loaded in
// this run, making it visible to dependent-category referential filters.
func (rc *RunContext) MarkLoaded(key string) {
	rc.loadedKeys[key] = struct{}{}
}

// HasKey reports whether the key was loaded earlier in this run.
func (rc *RunContext) HasKey(key string) bool {
	_, ok := rc.loadedKeys[key]
	return ok
}

// LoadedKeyCount returns the number of parent keys seen so far.
func (rc *RunContext) LoadedKeyCount() int {
	return len(rc.loadedKeys)
}
