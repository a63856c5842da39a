// Package sync implements the reconciliation engine: it pulls raw
// records from the remote client, normalizes them, merges them into the
// store and advances the per-scope sync cursor.
package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hkevin01/poe-archive/internal/categorize"
	"github.com/hkevin01/poe-archive/internal/model"
	"github.com/hkevin01/poe-archive/internal/poe"
	"github.com/hkevin01/poe-archive/internal/store"
	"github.com/hkevin01/poe-archive/pkg/logger"
	"github.com/hkevin01/poe-archive/pkg/metrics"
)

// Engine coordinates reconciliation runs. At most one run per scope is
// active at a time; triggering while one is active hands back the live
// run instead of starting a duplicate.
type Engine struct {
	store       *store.Store
	client      poe.Client
	logger      *logger.Logger
	batchSize   int
	categorizer categorize.Categorizer

	mu         stdsync.Mutex
	active     map[string]*Run
	runs       map[string]*Run
	runOrder   []string
	historyCap int
	observers  []Observer
}

// Option configures the engine.
type Option func(*Engine)

// WithBatchSize sets the page size requested per fetch.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithCategorizer enables category enrichment after each merge.
func WithCategorizer(c categorize.Categorizer) Option {
	return func(e *Engine) { e.categorizer = c }
}

// NewEngine creates a reconciliation engine.
func NewEngine(st *store.Store, client poe.Client, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		client:     client,
		logger:     log,
		batchSize:  50,
		active:     make(map[string]*Run),
		runs:       make(map[string]*Run),
		historyCap: 64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers an observer for run state transitions.
func (e *Engine) Subscribe(o Observer) {
	e.mu.Lock()
	e.observers = append(e.observers, o)
	e.mu.Unlock()
}

// Trigger starts a reconciliation run for scope and returns its handle
// immediately. If a run for the scope is already active, that run is
// returned with already=true and nothing new is started.
func (e *Engine) Trigger(ctx context.Context, scope string) (run *Run, already bool) {
	if scope == "" {
		scope = model.ScopeGlobal
	}

	e.mu.Lock()
	if r, ok := e.active[scope]; ok {
		e.mu.Unlock()
		return r, true
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run = &Run{
		id:        uuid.New().String(),
		scope:     scope,
		cancel:    cancel,
		state:     model.RunIdle,
		startedAt: time.Now().UTC(),
	}
	e.active[scope] = run
	e.runs[run.id] = run
	e.runOrder = append(e.runOrder, run.id)
	e.pruneRunsLocked()
	e.mu.Unlock()

	go e.execute(runCtx, run)
	return run, false
}

// pruneRunsLocked drops the oldest terminal runs once the retained
// history exceeds the cap, so a long-lived server with periodic sync
// does not accumulate one handle per run. Live runs are never evicted.
func (e *Engine) pruneRunsLocked() {
	excess := len(e.runOrder) - e.historyCap
	if excess <= 0 {
		return
	}
	kept := e.runOrder[:0]
	for _, id := range e.runOrder {
		r := e.runs[id]
		if excess > 0 && r != nil && r.Snapshot().State.Terminal() {
			delete(e.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	e.runOrder = kept
}

// Run looks up a run handle by ID.
func (e *Engine) Run(id string) (*Run, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[id]
	return r, ok
}

func (e *Engine) transition(r *Run, s model.RunState) {
	r.setState(s)
	e.publish(r.Snapshot())
}

func (e *Engine) publish(snap model.RunSnapshot) {
	e.mu.Lock()
	observers := append([]Observer(nil), e.observers...)
	e.mu.Unlock()
	for _, o := range observers {
		o.SyncStatus(snap)
	}
}

func (e *Engine) finish(r *Run, s model.RunState) {
	e.mu.Lock()
	delete(e.active, r.scope)
	e.mu.Unlock()

	e.transition(r, s)

	snap := r.Snapshot()
	metrics.RecordSyncRun(r.scope, string(s), time.Since(snap.StartedAt).Seconds(), snap.Merged)
	metrics.MessagesIndexed.Add(float64(snap.MessagesAdded))
	e.logger.WithRun(r.id, r.scope).Info("sync run finished",
		zap.String("state", string(s)),
		zap.Int("fetched", snap.Fetched),
		zap.Int("merged", snap.Merged),
		zap.Int("skipped", snap.Skipped),
		zap.Int("messages_added", snap.MessagesAdded),
		zap.Int("errors", len(snap.Errors)),
	)
}

// execute drives one run through the state machine. Any failure before
// Committing leaves the cursor untouched, so the whole run is safely
// replayable.
func (e *Engine) execute(ctx context.Context, r *Run) {
	log := e.logger.WithRun(r.id, r.scope)

	cursor, err := e.store.GetCursor(ctx, r.scope)
	if err != nil {
		log.Error("load cursor", zap.Error(err))
		e.finish(r, model.RunFailed)
		return
	}

	// Fetching: pull every conversation page past the watermark. No
	// storage transaction is open during any of this.
	e.transition(r, model.RunFetching)
	raw, err := e.fetchConversations(ctx, cursor.LastSyncedAt)
	if err != nil {
		log.Error("fetch conversations", zap.Error(err))
		e.finish(r, model.RunFailed)
		return
	}
	r.addCounts(len(raw), 0, 0, 0)

	// Normalizing: canonicalize and deduplicate. Unparseable records
	// are logged and skipped, never fatal.
	e.transition(r, model.RunNormalizing)
	conversations := e.normalizeConversations(r, raw, log)

	// Merging: one small transaction per conversation. Failures are
	// isolated so the rest of the batch still lands.
	e.transition(r, model.RunMerging)
	var maxUpdated time.Time
	for _, conv := range conversations {
		if r.isCancelled() || ctx.Err() != nil {
			log.Info("sync cancelled", zap.Int("merged", r.Snapshot().Merged))
			break
		}
		if err := e.mergeConversation(ctx, r, conv); err != nil {
			log.Warn("merge conversation failed",
				zap.String("conversation_id", conv.ID), zap.Error(err))
			r.recordError(conv.ID, err)
			continue
		}
		if conv.UpdatedAt.After(maxUpdated) {
			maxUpdated = conv.UpdatedAt
		}
	}

	// Committing: advance the watermark to the newest successfully
	// merged conversation, not to now, so records missed at a
	// pagination boundary are retried next run.
	e.transition(r, model.RunCommitting)
	snap := r.Snapshot()
	state := model.RunSucceeded
	if len(snap.Errors) > 0 || r.isCancelled() {
		state = model.RunPartiallyFailed
	}
	// Commit even when the run context was cancelled: progress already
	// merged is durable and the watermark must reflect it.
	if err := e.store.SetCursor(context.WithoutCancel(ctx), model.SyncCursor{
		Scope:         r.scope,
		LastSyncedAt:  maxUpdated,
		LastRunStatus: state,
	}); err != nil {
		log.Error("commit cursor", zap.Error(err))
		e.finish(r, model.RunFailed)
		return
	}

	e.finish(r, state)
}

func (e *Engine) fetchConversations(ctx context.Context, since time.Time) ([]map[string]any, error) {
	var items []map[string]any
	cursor := ""
	for {
		page, err := e.client.ListConversations(ctx, since, cursor, e.batchSize)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.NextCursor == "" {
			return items, nil
		}
		cursor = page.NextCursor
	}
}

func (e *Engine) normalizeConversations(r *Run, raw []map[string]any, log *logger.Logger) []*model.Conversation {
	seen := make(map[string]bool, len(raw))
	out := make([]*model.Conversation, 0, len(raw))
	for _, item := range raw {
		conv, err := poe.NormalizeConversation(item)
		if err != nil {
			log.Warn("skipping unparseable conversation record", zap.Error(err))
			r.addCounts(0, 0, 1, 0)
			continue
		}
		if r.scope != model.ScopeGlobal && conv.Bot != r.scope {
			continue
		}
		// The remote may return the same record more than once.
		if seen[conv.ID] {
			continue
		}
		seen[conv.ID] = true
		out = append(out, conv)
	}
	return out
}

// mergeConversation upserts one conversation and its messages. The
// message fetch happens before the storage transaction; the transaction
// never spans a network call.
func (e *Engine) mergeConversation(ctx context.Context, r *Run, conv *model.Conversation) error {
	msgs, err := e.fetchMessages(ctx, r, conv.ID)
	if err != nil {
		return err
	}

	if _, err := e.store.UpsertConversation(ctx, conv); err != nil {
		return err
	}
	added, err := e.store.UpsertMessages(ctx, conv.ID, msgs)
	if err != nil {
		return err
	}
	r.addCounts(0, 1, 0, added)

	if e.categorizer != nil {
		e.enrichCategory(ctx, conv, msgs)
	}
	return nil
}

func (e *Engine) fetchMessages(ctx context.Context, r *Run, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	cursor := ""
	seq := 0
	for {
		page, err := e.client.ListMessages(ctx, conversationID, cursor, e.batchSize)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			m, err := poe.NormalizeMessage(conversationID, seq, item)
			seq++
			if err != nil {
				e.logger.WithRun(r.id, r.scope).Warn("skipping unparseable message record",
					zap.String("conversation_id", conversationID), zap.Error(err))
				r.addCounts(0, 0, 1, 0)
				continue
			}
			msgs = append(msgs, *m)
		}
		if page.NextCursor == "" {
			return msgs, nil
		}
		cursor = page.NextCursor
	}
}

// enrichCategory assigns a category to newly seen conversations. Best
// effort: a failing categorizer never fails the merge.
func (e *Engine) enrichCategory(ctx context.Context, conv *model.Conversation, msgs []model.Message) {
	if conv.Category != "" {
		return
	}
	sample := make([]string, 0, 3)
	for _, m := range msgs {
		if len(sample) == 3 {
			break
		}
		sample = append(sample, m.Content)
	}
	category, err := e.categorizer.Categorize(ctx, conv.Title, sample)
	if err != nil || category == "" {
		if err != nil {
			e.logger.Warn("categorize failed",
				zap.String("conversation_id", conv.ID), zap.Error(err))
		}
		return
	}
	if err := e.store.SetCategory(ctx, conv.ID, category); err != nil {
		e.logger.Warn("set category failed",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}
}
