package sync

import (
	"github.com/hkevin01/poe-archive/internal/model"
)

// Observer receives a run snapshot on every state transition. Callbacks
// run on the engine's goroutine and must not block.
type Observer interface {
	SyncStatus(snap model.RunSnapshot)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(model.RunSnapshot)

func (f ObserverFunc) SyncStatus(snap model.RunSnapshot) { f(snap) }
