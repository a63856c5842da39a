package model

import (
	"time"
)

// ScopeGlobal is the cursor scope covering all bots.
const ScopeGlobal = "global"

// SyncCursor is the per-scope watermark bounding what has already been
// synced from the remote service.
type SyncCursor struct {
	Scope         string    `json:"scope"`
	LastSyncedAt  time.Time `json:"last_synced_at"`
	LastRunStatus RunState  `json:"last_run_status"`
}

// RunState is one state of a reconciliation run's state machine.
type RunState string

const (
	RunIdle            RunState = "idle"
	RunFetching        RunState = "fetching"
	RunNormalizing     RunState = "normalizing"
	RunMerging         RunState = "merging"
	RunCommitting      RunState = "committing"
	RunSucceeded       RunState = "succeeded"
	RunPartiallyFailed RunState = "partially_failed"
	RunFailed          RunState = "failed"
)

// Terminal reports whether s is a terminal run state.
func (s RunState) Terminal() bool {
	return s == RunSucceeded || s == RunPartiallyFailed || s == RunFailed
}

// ConversationError records a per-conversation merge failure. These are
// aggregated on the run and do not stop the remaining conversations.
type ConversationError struct {
	ConversationID string `json:"conversation_id"`
	Error          string `json:"error"`
}

// RunSnapshot is a point-in-time view of a reconciliation run, as exposed
// to the presentation layer for polling.
type RunSnapshot struct {
	ID             string              `json:"id"`
	Scope          string              `json:"scope"`
	State          RunState            `json:"state"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     *time.Time          `json:"finished_at,omitempty"`
	Fetched        int                 `json:"fetched"`
	Merged         int                 `json:"merged"`
	Skipped        int                 `json:"skipped"`
	MessagesAdded  int                 `json:"messages_added"`
	Errors         []ConversationError `json:"errors,omitempty"`
	AlreadyRunning bool                `json:"already_running,omitempty"`
}
