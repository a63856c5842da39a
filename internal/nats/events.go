package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/hkevin01/poe-archive/internal/model"
)

const (
	// StreamName is the name of the sync events stream.
	StreamName = "SYNC_EVENTS"

	// SubjectPrefix is the prefix for all sync event subjects.
	SubjectPrefix = "sync"
)

// EventPublisher publishes reconciliation run status transitions to
// JetStream. It satisfies the engine's Observer contract.
type EventPublisher struct {
	client *Client
}

// NewEventPublisher creates a publisher on an established client.
func NewEventPublisher(client *Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// EnsureStream ensures the sync events stream exists.
func (p *EventPublisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Reconciliation run status transitions",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// StatusSubject returns the subject for a run status event.
func StatusSubject(scope string, state model.RunState) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, scope, state)
}

// SyncStatus publishes a run snapshot. Publish failures are logged, not
// surfaced: the event stream is advisory, the run itself is the source
// of truth.
func (p *EventPublisher) SyncStatus(snap model.RunSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(snap)
	if err != nil {
		p.client.logger.Error("marshal sync event", zap.Error(err))
		return
	}

	subject := StatusSubject(snap.Scope, snap.State)
	if _, err := p.client.JetStream().Publish(ctx, subject, data); err != nil {
		p.client.logger.Warn("publish sync event",
			zap.String("subject", subject), zap.Error(err))
	}
}
