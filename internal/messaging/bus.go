// Package messaging is the in-process domain event bus.
//
// Services publish small JSON payloads on named topics; subscribers wired in
// cmd/server react to them (last_active bookkeeping, confirmation emails,
// metrics) outside the request path. The bus is a watermill GoChannel, so
// delivery is at-most-once and does not survive a restart.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
)

// Topics
const (
	TopicUserActive      = "user.active"
	TopicTicketPurchased = "ticket.purchased"
	TopicEventDeleted    = "event.deleted"
)

// UserActive is published when an authenticated user makes a request
type UserActive struct {
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// TicketPurchased is published after a purchase commits
type TicketPurchased struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	UserEmail     string    `json:"user_email"`
	UserName      string    `json:"user_name"`
	EventID       string    `json:"event_id"`
	EventTitle    string    `json:"event_title"`
	EventDate     time.Time `json:"event_date"`
	Tier          string    `json:"tier"`
	Quantity      int       `json:"quantity"`
	Total         float64   `json:"total"`
	TicketIDs     []string  `json:"ticket_ids"`
}

// EventDeleted is published after an event and its tickets are removed
type EventDeleted struct {
	EventID     string `json:"event_id"`
	OrganizerID string `json:"organizer_id"`
	DeletedBy   string `json:"deleted_by"`
	Tickets     int    `json:"tickets"`
}

// HandlerFunc processes one raw message payload
type HandlerFunc func(ctx context.Context, payload []byte) error

// Bus publishes and subscribes to domain events
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
	wg     sync.WaitGroup
}

// NewBus creates an in-memory bus logging through logger
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := watermill.NewSlogLogger(logger)

	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, adapter),
		logger: adapter,
	}
}

// Publish encodes payload as JSON and publishes it on topic
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		msg.Metadata.Set("request_id", id)
	}

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe runs fn for every message on topic until ctx is cancelled or
// the bus is closed. Failures are logged and the message is acked anyway,
// since the GoChannel redelivers nacked messages immediately.
func (b *Bus) Subscribe(ctx context.Context, topic string, fn HandlerFunc) error {
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range messages {
			b.process(topic, msg, fn)
		}
	}()
	return nil
}

func (b *Bus) process(topic string, msg *message.Message, fn HandlerFunc) {
	defer msg.Ack()

	ctx := msg.Context()
	if id := msg.Metadata.Get("request_id"); id != "" {
		ctx = WithRequestID(ctx, id)
	}

	if err := fn(ctx, msg.Payload); err != nil {
		b.logger.Error("Message processing failed", err, watermill.LogFields{
			"message_uuid": msg.UUID,
			"topic":        topic,
		})
	}
}

// Close stops the bus and waits for in-flight handlers
func (b *Bus) Close() error {
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}

// Decode adapts a typed handler to a HandlerFunc
func Decode[T any](fn func(ctx context.Context, event T) error) HandlerFunc {
	return func(ctx context.Context, payload []byte) error {
		var event T
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return fn(ctx, event)
	}
}

type requestIDKey struct{}

// WithRequestID tags ctx so published messages carry the request id
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
