package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/messaging"
	"github.com/forgo/marquee/api/internal/metrics"
	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/validation"
)

// TicketRepository defines the interface for ticket storage
type TicketRepository interface {
	Purchase(ctx context.Context, p model.TicketPurchase) ([]*model.Ticket, error)
	GetByID(ctx context.Context, id string) (*model.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Ticket, error)
	Release(ctx context.Context, ticket *model.Ticket, tierIndex int, status model.TicketStatus) error
	Reserve(ctx context.Context, ticket *model.Ticket, tierIndex int, status model.TicketStatus) error
	SetStatus(ctx context.Context, id string, from, to model.TicketStatus) (*model.Ticket, error)
	CountByEvent(ctx context.Context, eventID string) (int, error)
}

// TicketService sells, lists and releases tickets
type TicketService struct {
	ticketRepo TicketRepository
	eventRepo  EventRepository
	userRepo   UserRepository
	payments   PaymentProcessor
	publisher  Publisher
	currency   string
	now        func() time.Time
}

// TicketServiceConfig holds configuration for the ticket service
type TicketServiceConfig struct {
	TicketRepo TicketRepository
	EventRepo  EventRepository
	UserRepo   UserRepository
	Payments   PaymentProcessor // Default: LocalPaymentProcessor
	Publisher  Publisher        // optional
	Currency   string
}

// NewTicketService creates a new ticket service
func NewTicketService(cfg TicketServiceConfig) *TicketService {
	if cfg.Payments == nil {
		cfg.Payments = LocalPaymentProcessor{}
	}
	return &TicketService{
		ticketRepo: cfg.TicketRepo,
		eventRepo:  cfg.EventRepo,
		userRepo:   cfg.UserRepo,
		payments:   cfg.Payments,
		publisher:  cfg.Publisher,
		currency:   cfg.Currency,
		now:        time.Now,
	}
}

// Purchase sells req.Quantity tickets of one tier to the actor. Capacity is
// enforced by the database transaction; the checks here only fail fast.
// idempotencyKey is forwarded to the payment provider scoped to the buyer
// and the event.
func (s *TicketService) Purchase(ctx context.Context, actor Actor, eventID string, req model.PurchaseTicketRequest, idempotencyKey string) ([]*model.Ticket, error) {
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	quantity := req.Units()
	if quantity > model.MaxTicketsPerOrder {
		return nil, ErrInvalidTicketQuantity
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	if event.Status != model.EventStatusPublished || !event.IsUpcoming(s.now()) {
		metrics.RecordPurchaseFailure("not_on_sale")
		return nil, ErrEventNotOnSale
	}

	idx := event.TierIndex(req.Tier)
	if idx < 0 {
		return nil, ErrTierNotFound
	}
	tier := event.TicketTiers[idx]
	if tier.Remaining() < quantity {
		metrics.RecordPurchaseFailure("sold_out")
		return nil, ErrTierSoldOut
	}

	total := tier.Price * float64(quantity)
	txID, err := s.payments.Charge(ctx, ChargeRequest{
		Amount:         total,
		Currency:       s.currency,
		Description:    fmt.Sprintf("%d x %s - %s", quantity, tier.Name, event.Title),
		IdempotencyKey: chargeKey(actor.UserID, event.ID, idempotencyKey),
		Metadata: map[string]string{
			"event_id": event.ID,
			"user_id":  actor.UserID,
			"tier":     tier.Name,
		},
	})
	if err != nil {
		metrics.RecordPurchaseFailure("payment")
		return nil, err
	}

	tickets, err := s.ticketRepo.Purchase(ctx, model.TicketPurchase{
		EventID:       event.ID,
		UserID:        actor.UserID,
		TierIndex:     idx,
		Tier:          model.TierSnapshot{Name: tier.Name, Price: tier.Price},
		Quantity:      quantity,
		TransactionID: txID,
	})
	if err != nil {
		s.void(ctx, txID)
		if errors.Is(err, database.ErrCapacityExceeded) {
			return nil, s.explainRejection(ctx, event.ID)
		}
		metrics.RecordPurchaseFailure("other")
		return nil, err
	}

	metrics.RecordTicketSale(string(event.Category), quantity, total)
	s.announcePurchase(ctx, actor, event, tier.Name, quantity, total, txID, tickets)

	return tickets, nil
}

// explainRejection re-reads the event after the transaction refused a sale
func (s *TicketService) explainRejection(ctx context.Context, eventID string) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err == nil && (event == nil || event.Status != model.EventStatusPublished || !event.IsUpcoming(s.now())) {
		metrics.RecordPurchaseFailure("not_on_sale")
		return ErrEventNotOnSale
	}
	metrics.RecordPurchaseFailure("sold_out")
	return ErrTierSoldOut
}

func (s *TicketService) announcePurchase(ctx context.Context, actor Actor, event *model.Event, tier string, quantity int, total float64, txID string, tickets []*model.Ticket) {
	if s.publisher == nil {
		return
	}

	msg := messaging.TicketPurchased{
		TransactionID: txID,
		UserID:        actor.UserID,
		EventID:       event.ID,
		EventTitle:    event.Title,
		EventDate:     event.Date,
		Tier:          tier,
		Quantity:      quantity,
		Total:         total,
	}
	for _, t := range tickets {
		msg.TicketIDs = append(msg.TicketIDs, t.ID)
	}
	if s.userRepo != nil {
		if user, err := s.userRepo.GetByID(ctx, actor.UserID); err == nil && user != nil {
			msg.UserEmail = user.Email
			msg.UserName = user.FullName()
		}
	}

	if err := s.publisher.Publish(ctx, messaging.TopicTicketPurchased, msg); err != nil {
		slog.Warn("failed to publish ticket purchase",
			slog.String("transaction_id", txID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TicketService) void(ctx context.Context, txID string) {
	if err := s.payments.Void(ctx, txID); err != nil {
		slog.Error("failed to void payment after rejected purchase",
			slog.String("transaction_id", txID),
			slog.String("error", err.Error()),
		)
	}
}

// ListForUser returns the user's tickets with event summaries
func (s *TicketService) ListForUser(ctx context.Context, userID string) ([]*model.Ticket, error) {
	return s.ticketRepo.ListByUser(ctx, userID)
}

// Get returns a ticket held by the actor; admins may read any ticket
func (s *TicketService) Get(ctx context.Context, actor Actor, id string) (*model.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}
	if !actor.IsAdmin() && !ticket.IsOwnedBy(actor.UserID) {
		return nil, ErrNotTicketOwner
	}
	return ticket, nil
}

// Cancel lets the holder cancel a valid ticket of an upcoming event and
// returns the seat to its tier
func (s *TicketService) Cancel(ctx context.Context, actor Actor, id string) (*model.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}
	if !ticket.IsOwnedBy(actor.UserID) {
		return nil, ErrNotTicketOwner
	}
	if ticket.Status != model.TicketStatusValid {
		return nil, ErrTicketNotCancellable
	}

	event, err := s.eventRepo.GetByID(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil || !event.IsUpcoming(s.now()) {
		return nil, ErrTicketNotCancellable
	}

	if err := s.release(ctx, ticket, event, model.TicketStatusCancelled); err != nil {
		return nil, err
	}
	return s.reload(ctx, ticket.ID)
}

// SetStatus changes a ticket status (admin). Leaving a seat status (valid,
// used) returns the seat to the tier; entering one takes a seat and fails
// with ErrTierSoldOut when the tier is full.
func (s *TicketService) SetStatus(ctx context.Context, id string, status model.TicketStatus) (*model.Ticket, error) {
	if !isTicketStatus(status) {
		return nil, ErrInvalidTicketStatus
	}

	ticket, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}

	switch {
	case ticket.Status == status:
		return ticket, nil

	case ticket.Status.HoldsSeat() && !status.HoldsSeat():
		event, err := s.eventRepo.GetByID(ctx, ticket.EventID)
		if err != nil {
			return nil, err
		}
		if err := s.release(ctx, ticket, event, status); err != nil {
			if errors.Is(err, ErrTicketNotCancellable) {
				return nil, ErrTicketStatusChanged
			}
			return nil, err
		}

	case !ticket.Status.HoldsSeat() && status.HoldsSeat():
		if err := s.reserve(ctx, ticket, status); err != nil {
			return nil, err
		}

	default:
		if _, err := s.ticketRepo.SetStatus(ctx, ticket.ID, ticket.Status, status); err != nil {
			if errors.Is(err, database.ErrStateChanged) {
				return nil, ErrTicketStatusChanged
			}
			return nil, err
		}
	}
	return s.reload(ctx, ticket.ID)
}

func (s *TicketService) release(ctx context.Context, ticket *model.Ticket, event *model.Event, status model.TicketStatus) error {
	tierIndex := -1
	if event != nil {
		tierIndex = event.TierIndex(ticket.Tier.Name)
	}

	if err := s.ticketRepo.Release(ctx, ticket, tierIndex, status); err != nil {
		if errors.Is(err, database.ErrStateChanged) {
			return ErrTicketNotCancellable
		}
		return err
	}
	metrics.TicketsReleased.WithLabelValues(string(status)).Inc()
	return nil
}

// reserve gives a ticket without a seat its seat back. The tier must still
// exist and have room.
func (s *TicketService) reserve(ctx context.Context, ticket *model.Ticket, status model.TicketStatus) error {
	event, err := s.eventRepo.GetByID(ctx, ticket.EventID)
	if err != nil {
		return err
	}
	if event == nil {
		return ErrEventNotFound
	}
	tierIndex := event.TierIndex(ticket.Tier.Name)
	if tierIndex < 0 {
		return ErrTierNotFound
	}

	if err := s.ticketRepo.Reserve(ctx, ticket, tierIndex, status); err != nil {
		switch {
		case errors.Is(err, database.ErrCapacityExceeded):
			return ErrTierSoldOut
		case errors.Is(err, database.ErrStateChanged):
			return ErrTicketStatusChanged
		}
		return err
	}
	return nil
}

func (s *TicketService) reload(ctx context.Context, id string) (*model.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}
	return ticket, nil
}

func isTicketStatus(status model.TicketStatus) bool {
	switch status {
	case model.TicketStatusValid, model.TicketStatusUsed, model.TicketStatusCancelled, model.TicketStatusRefunded:
		return true
	}
	return false
}

// chargeKey scopes a client idempotency key to one buyer and event
func chargeKey(userID, eventID, key string) string {
	if key == "" {
		return ""
	}
	return userID + ":" + eventID + ":" + key
}
