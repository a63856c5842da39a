package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/hkevin01/poe-archive/internal/model"
)

// Run is the handle for one reconciliation run. The presentation layer
// polls Snapshot or subscribes to the engine's observers; both see the
// state machine of a run transition
// Fetching → Normalizing → Merging → Committing → terminal.
type Run struct {
	id    string
	scope string

	cancel context.CancelFunc

	mu            stdsync.Mutex
	state         model.RunState
	startedAt     time.Time
	finishedAt    *time.Time
	fetched       int
	merged        int
	skipped       int
	messagesAdded int
	errors        []model.ConversationError
	cancelled     bool
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Scope returns the cursor scope this run reconciles.
func (r *Run) Scope() string { return r.scope }

// Cancel requests cancellation. The run stops between conversations;
// progress already merged is still committed to the cursor.
func (r *Run) Cancel() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
	r.cancel()
}

// Snapshot returns a point-in-time view of the run.
func (r *Run) Snapshot() model.RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := model.RunSnapshot{
		ID:            r.id,
		Scope:         r.scope,
		State:         r.state,
		StartedAt:     r.startedAt,
		FinishedAt:    r.finishedAt,
		Fetched:       r.fetched,
		Merged:        r.merged,
		Skipped:       r.skipped,
		MessagesAdded: r.messagesAdded,
	}
	snap.Errors = append(snap.Errors, r.errors...)
	return snap
}

func (r *Run) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *Run) recordError(conversationID string, err error) {
	r.mu.Lock()
	r.errors = append(r.errors, model.ConversationError{
		ConversationID: conversationID,
		Error:          err.Error(),
	})
	r.mu.Unlock()
}

func (r *Run) addCounts(fetched, merged, skipped, messages int) {
	r.mu.Lock()
	r.fetched += fetched
	r.merged += merged
	r.skipped += skipped
	r.messagesAdded += messages
	r.mu.Unlock()
}

func (r *Run) setState(s model.RunState) {
	r.mu.Lock()
	r.state = s
	if s.Terminal() {
		now := time.Now().UTC()
		r.finishedAt = &now
	}
	r.mu.Unlock()
}
