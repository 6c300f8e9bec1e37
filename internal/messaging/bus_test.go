package messaging

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBus_PublishSubscribe_DeliversTypedPayload(t *testing.T) {
	bus := NewBus(nil)
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan TicketPurchased, 1)
	err := bus.Subscribe(ctx, TopicTicketPurchased, Decode(func(ctx context.Context, e TicketPurchased) error {
		got <- e
		return nil
	}))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	want := TicketPurchased{TransactionID: "txn_1", UserID: "user:1", Quantity: 2, Total: 50}
	if err := bus.Publish(ctx, TopicTicketPurchased, want); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case e := <-got:
		if e.TransactionID != want.TransactionID || e.Quantity != 2 || e.Total != 50 {
			t.Errorf("unexpected payload %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestBus_RequestIDTravelsWithMessage(t *testing.T) {
	bus := NewBus(nil)
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 1)
	_ = bus.Subscribe(ctx, TopicUserActive, func(ctx context.Context, _ []byte) error {
		id, _ := ctx.Value(requestIDKey{}).(string)
		got <- id
		return nil
	})

	if err := bus.Publish(WithRequestID(ctx, "req-42"), TopicUserActive, UserActive{UserID: "user:1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case id := <-got:
		if id != "req-42" {
			t.Errorf("expected request id 'req-42', got %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestBus_HandlerErrorDoesNotRedeliver(t *testing.T) {
	bus := NewBus(nil)
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	_ = bus.Subscribe(ctx, TopicEventDeleted, func(ctx context.Context, _ []byte) error {
		calls <- struct{}{}
		return errors.New("boom")
	})

	_ = bus.Publish(ctx, TopicEventDeleted, EventDeleted{EventID: "event:1"})

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first delivery")
	}
	select {
	case <-calls:
		t.Fatal("message was delivered twice")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDecode_InvalidPayload_ReturnsError(t *testing.T) {
	fn := Decode(func(ctx context.Context, e UserActive) error { return nil })
	if err := fn(context.Background(), []byte("{not json")); err == nil {
		t.Error("expected decode error")
	}
}
