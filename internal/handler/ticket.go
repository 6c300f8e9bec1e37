package handler

import (
	"time"

	"github.com/forgo/marquee/api/internal/model"
)

// TicketResponse is a ticket with its event summary expanded
type TicketResponse struct {
	ID            string              `json:"id"`
	Event         *model.EventSummary `json:"event"`
	UserID        string              `json:"user"`
	Tier          model.TierSnapshot  `json:"tier"`
	PurchaseDate  time.Time           `json:"purchase_date"`
	Status        model.TicketStatus  `json:"status"`
	TransactionID string              `json:"transaction_id"`
	CreatedOn     time.Time           `json:"created_on"`
	Links         map[string]string   `json:"_links,omitempty"`
}

func toTicketResponse(t *model.Ticket) TicketResponse {
	event := t.Event
	if event == nil {
		event = &model.EventSummary{ID: t.EventID}
	}
	if event.Images == nil {
		event.Images = []model.EventImage{}
	}

	return TicketResponse{
		ID:            t.ID,
		Event:         event,
		UserID:        t.UserID,
		Tier:          t.Tier,
		PurchaseDate:  t.PurchaseDate,
		Status:        t.Status,
		TransactionID: t.TransactionID,
		CreatedOn:     t.CreatedOn,
		Links:         ticketLinks(t.ID),
	}
}

func toTicketResponses(tickets []*model.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, toTicketResponse(t))
	}
	return out
}

func ticketLinks(id string) map[string]string {
	base := "/api/users/tickets/" + id
	return map[string]string{
		"qr":     base + "/qr",
		"pdf":    base + "/pdf",
		"cancel": base + "/cancel",
	}
}
