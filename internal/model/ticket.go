package model

import "time"

// TicketStatus is the lifecycle state of a ticket
type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusRefunded  TicketStatus = "refunded"
)

// HoldsSeat reports whether a ticket in this status counts against its tier
func (s TicketStatus) HoldsSeat() bool {
	return s == TicketStatusValid || s == TicketStatusUsed
}

// TierSnapshot freezes the tier name and price at purchase time
type TierSnapshot struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Ticket is one admission to an event
type Ticket struct {
	ID            string       `json:"id"`
	EventID       string       `json:"event"`
	UserID        string       `json:"user"`
	Tier          TierSnapshot `json:"tier"`
	PurchaseDate  time.Time    `json:"purchase_date"`
	Status        TicketStatus `json:"status"`
	TransactionID string       `json:"transaction_id"`
	CreatedOn     time.Time    `json:"created_on"`

	// Populated by fetches that join the event record
	Event *EventSummary `json:"-"`
}

// IsOwnedBy reports whether userID holds the ticket
func (t *Ticket) IsOwnedBy(userID string) bool {
	return t.UserID == userID
}

// EventSummary is the subset of an event shown next to a ticket
type EventSummary struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Date          time.Time    `json:"date"`
	Location      Location     `json:"location"`
	Images        []EventImage `json:"images"`
	Status        EventStatus  `json:"status"`
	OrganizerName string       `json:"organizer_name,omitempty"`
}

// PurchaseTicketRequest is the payload for POST /api/events/{id}/tickets
type PurchaseTicketRequest struct {
	Tier     string `json:"tier" validate:"required,max=100"`
	Quantity int    `json:"quantity,omitempty" validate:"omitempty,gte=1,lte=10"`
}

// Units returns the requested quantity, defaulting to one
func (r *PurchaseTicketRequest) Units() int {
	if r.Quantity <= 0 {
		return 1
	}
	return r.Quantity
}

// TicketPurchase carries everything the repository needs to sell tickets
type TicketPurchase struct {
	EventID       string
	UserID        string
	TierIndex     int
	Tier          TierSnapshot
	Quantity      int
	TransactionID string
}

// UpdateTicketStatusRequest is the admin payload for changing a ticket status
type UpdateTicketStatusRequest struct {
	Status TicketStatus `json:"status" validate:"required,oneof=valid used cancelled refunded"`
}
