// Package events publishes domain events after state changes commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/platform/queue"
	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/tool"
)

type Type string

const (
	PaymentCompleted Type = "payment.completed"
	PaymentFailed    Type = "payment.failed"
	PayoutCompleted  Type = "payout.completed"
	PayoutFailed     Type = "payout.failed"
	// OrderCompleted drives vendor performance recalculation downstream.
	OrderCompleted Type = "order.completed"
	OrderCancelled Type = "order.cancelled"
)

type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	VendorID   string    `json:"vendor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New stamps an id and time on an event.
func New(t Type, vendorID string, payload any) Event {
	return Event{ID: tool.GenerateUUIDV7(), Type: t, VendorID: vendorID, OccurredAt: time.Now(), Payload: payload}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emit publishes and only logs failures. Events are sent after commit, so a
// failed publish never rolls back the state change.
func Emit(ctx context.Context, p Publisher, log *zap.SugaredLogger, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logctx.FromCtx(ctx, log).Warnw("event_publish_failed", "type", e.Type, "id", e.ID, "error", err.Error())
	}
}

type sender interface {
	Send(ctx context.Context, eventType string, groupKey string, body []byte) (string, error)
}

// QueuePublisher writes events to SQS.
type QueuePublisher struct {
	sender sender
	log    *zap.SugaredLogger
}

func (p *QueuePublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Type, err)
	}
	id, err := p.sender.Send(ctx, string(e.Type), e.VendorID, body)
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, p.log).Debugw("event_published", "type", e.Type, "id", e.ID, "message_id", id)
	return nil
}

// LogPublisher only logs events. Used when no queue is configured.
type LogPublisher struct {
	log *zap.SugaredLogger
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	logctx.FromCtx(ctx, p.log).Infow("event", "type", e.Type, "id", e.ID, "vendor_id", e.VendorID, "payload", e.Payload)
	return nil
}

// MemoryPublisher keeps events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemoryPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// OfType returns recorded events of type t.
func (p *MemoryPublisher) OfType(t Type) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func NewPublisher(cfg *cfgpkg.Config, log *zap.SugaredLogger) (Publisher, error) {
	if cfg.Events.SQSQueueURL == "" {
		log.Infow("events: no queue configured, logging only")
		return &LogPublisher{log: log}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := queue.NewSQSSender(ctx, cfg.Events)
	if err != nil {
		return nil, err
	}
	log.Infow("events: publishing to sqs", "queue_url", cfg.Events.SQSQueueURL)
	return &QueuePublisher{sender: s, log: log}, nil
}

var Module = fx.Options(
	fx.Provide(NewPublisher),
)
