package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgo/marquee/api/internal/messaging"
	"github.com/forgo/marquee/api/internal/metrics"
)

// TicketNotifier mails purchase confirmations
type TicketNotifier struct {
	mailer  Mailer
	baseURL string
}

// NewTicketNotifier creates a notifier. baseURL prefixes ticket links.
func NewTicketNotifier(mailer Mailer, baseURL string) *TicketNotifier {
	return &TicketNotifier{mailer: mailer, baseURL: strings.TrimRight(baseURL, "/")}
}

// TicketPurchased sends the confirmation for one purchase. It is meant to be
// subscribed to messaging.TopicTicketPurchased via messaging.Decode.
func (n *TicketNotifier) TicketPurchased(ctx context.Context, event messaging.TicketPurchased) error {
	if event.UserEmail == "" {
		return nil
	}

	err := n.mailer.Send(ctx, ConfirmationEmail(event, n.baseURL))
	if err != nil {
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("ticket confirmation for %s: %w", event.TransactionID, err)
	}
	metrics.EmailsSent.WithLabelValues("sent").Inc()
	return nil
}

// ConfirmationEmail renders the purchase confirmation message
func ConfirmationEmail(event messaging.TicketPurchased, baseURL string) Email {
	noun := "ticket"
	if event.Quantity != 1 {
		noun = "tickets"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", firstNonEmpty(event.UserName, "there"))
	fmt.Fprintf(&b, "You bought %d %s %s for %s on %s.\n",
		event.Quantity, event.Tier, noun, event.EventTitle, event.EventDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&b, "Total paid: %.2f\n", event.Total)
	fmt.Fprintf(&b, "Transaction: %s\n\n", event.TransactionID)
	for _, id := range event.TicketIDs {
		fmt.Fprintf(&b, "Ticket %s: %s/api/users/tickets/%s/pdf\n", id, baseURL, id)
	}

	return Email{
		To:      event.UserEmail,
		ToName:  event.UserName,
		Subject: fmt.Sprintf("Your %s for %s", noun, event.EventTitle),
		Text:    b.String(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
