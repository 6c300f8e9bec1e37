package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/model"
)

// ticketProjection selects a ticket with a summary of its event
const ticketProjection = `*,
	event.{id, title, date, location, images, status} AS event_details,
	event.organizer.{first_name, last_name} AS organizer_details`

// TicketRepository handles ticket data access
type TicketRepository struct {
	db database.Database
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db database.Database) *TicketRepository {
	return &TicketRepository{db: db}
}

// Purchase sells p.Quantity tickets of one tier in a single transaction.
// The tier sold count is only incremented while the event is published,
// upcoming and the tier still has capacity; otherwise the transaction is
// cancelled and database.ErrCapacityExceeded is returned. The buyer is added to the event
// attendees and one ticket per unit is created with the tier snapshot.
func (r *TicketRepository) Purchase(ctx context.Context, p model.TicketPurchase) ([]*model.Ticket, error) {
	if p.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", database.ErrQuery)
	}

	tb := database.NewTxBuilder()

	// The tier index is an int rendered into the statement; all user input
	// stays in variables.
	tier := fmt.Sprintf("ticket_tiers[%d]", p.TierIndex)
	tb.Add(fmt.Sprintf(`
		LET $sold = (UPDATE type::record($event) SET
			%[1]s.sold_count += $quantity,
			attendees = array::union(attendees, [type::record($user)]),
			updated_on = time::now()
		WHERE status = "published"
			AND date > time::now()
			AND %[1]s.name = $tier_name
			AND %[1]s.sold_count + $quantity <= %[1]s.quantity
		RETURN id)`, tier), map[string]interface{}{
		"event":     p.EventID,
		"user":      p.UserID,
		"quantity":  p.Quantity,
		"tier_name": p.Tier.Name,
	})
	tb.AddRaw(fmt.Sprintf(`IF array::len($sold) = 0 { THROW "%s" }`, throwSoldOut))

	for i := 0; i < p.Quantity; i++ {
		tb.Add(`
			CREATE ticket CONTENT {
				event: type::record($event),
				user: type::record($user),
				tier: { name: $tier_name, price: $tier_price },
				purchase_date: time::now(),
				status: "valid",
				transaction_id: $transaction_id,
				created_on: time::now()
			}`, map[string]interface{}{
			"event":          p.EventID,
			"user":           p.UserID,
			"tier_name":      p.Tier.Name,
			"tier_price":     p.Tier.Price,
			"transaction_id": p.TransactionID,
		})
	}

	tb.Add(`SELECT `+ticketProjection+` FROM ticket WHERE transaction_id = $transaction_id ORDER BY created_on ASC`,
		map[string]interface{}{"transaction_id": p.TransactionID})

	result, err := database.ExecuteTransaction(ctx, r.db, tb)
	if err != nil {
		return nil, mapThrown(err)
	}

	rows := resultRecords(result, -1)
	tickets := make([]*model.Ticket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, parseTicket(row))
	}
	return tickets, nil
}

// GetByID retrieves a ticket with its event summary. Returns nil, nil when not found.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	rid, ok := recordID("ticket", id)
	if !ok {
		return nil, nil
	}

	result, err := r.db.QueryOne(ctx, `SELECT `+ticketProjection+` FROM type::record($id)`, map[string]interface{}{"id": rid})
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}

	data, err := asRecord(result)
	if err != nil {
		return nil, err
	}
	return parseTicket(data), nil
}

// ListByUser returns a user's tickets, most recent purchase first
func (r *TicketRepository) ListByUser(ctx context.Context, userID string) ([]*model.Ticket, error) {
	query := `SELECT ` + ticketProjection + ` FROM ticket WHERE user = type::record($user) ORDER BY purchase_date DESC`

	result, err := r.db.Query(ctx, query, map[string]interface{}{"user": userID})
	if err != nil {
		return nil, err
	}

	rows := resultRecords(result, 0)
	tickets := make([]*model.Ticket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, parseTicket(row))
	}
	return tickets, nil
}

// seatStatuses are the ticket statuses that occupy a tier seat
var seatStatuses = []string{string(model.TicketStatusValid), string(model.TicketStatusUsed)}

// Release moves a seat-holding ticket to status and returns its seat to the
// tier. tierIndex is the current index of the ticket's tier, or -1 when the
// tier no longer exists. The holder leaves the attendee list once they hold no
// seats for the event. database.ErrStateChanged means the ticket status was no
// longer ticket.Status.
func (r *TicketRepository) Release(ctx context.Context, ticket *model.Ticket, tierIndex int, status model.TicketStatus) error {
	tb := database.NewTxBuilder()

	tb.Add(`LET $released = (UPDATE type::record($ticket) SET status = $status WHERE status = $from RETURN id)`,
		map[string]interface{}{"ticket": ticket.ID, "status": status, "from": ticket.Status})
	tb.AddRaw(fmt.Sprintf(`IF array::len($released) = 0 { THROW "%s" }`, throwStateChanged))

	if tierIndex >= 0 {
		tier := fmt.Sprintf("ticket_tiers[%d]", tierIndex)
		tb.Add(fmt.Sprintf(`
			UPDATE type::record($event) SET %[1]s.sold_count -= 1
			WHERE %[1]s.name = $tier_name AND %[1]s.sold_count > 0`, tier),
			map[string]interface{}{"event": ticket.EventID, "tier_name": ticket.Tier.Name})
	}

	tb.Add(`
		UPDATE type::record($event) SET attendees = array::complement(attendees, [type::record($user)])
		WHERE array::len((SELECT VALUE id FROM ticket
			WHERE event = type::record($event) AND user = type::record($user) AND status IN $seats)) = 0`,
		map[string]interface{}{"event": ticket.EventID, "user": ticket.UserID, "seats": seatStatuses})

	_, err := database.ExecuteTransaction(ctx, r.db, tb)
	return mapThrown(err)
}

// Reserve is the reverse of Release: it moves a ticket that holds no seat
// back to a seat status, taking a seat from the tier at tierIndex under the
// same capacity guard as Purchase. database.ErrCapacityExceeded means the
// tier is full; database.ErrStateChanged means the ticket status was no
// longer ticket.Status. Either way nothing is written.
func (r *TicketRepository) Reserve(ctx context.Context, ticket *model.Ticket, tierIndex int, status model.TicketStatus) error {
	tb := database.NewTxBuilder()

	tb.Add(`LET $restored = (UPDATE type::record($ticket) SET status = $status WHERE status = $from RETURN id)`,
		map[string]interface{}{"ticket": ticket.ID, "status": status, "from": ticket.Status})
	tb.AddRaw(fmt.Sprintf(`IF array::len($restored) = 0 { THROW "%s" }`, throwStateChanged))

	tier := fmt.Sprintf("ticket_tiers[%d]", tierIndex)
	tb.Add(fmt.Sprintf(`
		LET $seat = (UPDATE type::record($event) SET
			%[1]s.sold_count += 1,
			attendees = array::union(attendees, [type::record($user)]),
			updated_on = time::now()
		WHERE %[1]s.name = $tier_name
			AND %[1]s.sold_count + 1 <= %[1]s.quantity
		RETURN id)`, tier), map[string]interface{}{
		"event":     ticket.EventID,
		"user":      ticket.UserID,
		"tier_name": ticket.Tier.Name,
	})
	tb.AddRaw(fmt.Sprintf(`IF array::len($seat) = 0 { THROW "%s" }`, throwSoldOut))

	_, err := database.ExecuteTransaction(ctx, r.db, tb)
	return mapThrown(err)
}

// SetStatus moves a ticket from one status to another without touching
// capacity; callers use it only when both statuses hold a seat or neither
// does. database.ErrStateChanged means the ticket was missing or no longer
// in status from.
func (r *TicketRepository) SetStatus(ctx context.Context, id string, from, to model.TicketStatus) (*model.Ticket, error) {
	rid, ok := recordID("ticket", id)
	if !ok {
		return nil, database.ErrStateChanged
	}

	query := `UPDATE type::record($id) SET status = $to WHERE status = $from RETURN AFTER`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": rid, "from": from, "to": to})
	if err != nil {
		if notFound(err) {
			return nil, database.ErrStateChanged
		}
		return nil, err
	}

	data, err := asRecord(result)
	if err != nil {
		return nil, err
	}
	return parseTicket(data), nil
}

// CountByEvent returns how many tickets reference an event
func (r *TicketRepository) CountByEvent(ctx context.Context, eventID string) (int, error) {
	query := `SELECT count() AS count FROM ticket WHERE event = type::record($event) GROUP ALL`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"event": eventID})
	if err != nil {
		return 0, err
	}
	return countAt(result, 0), nil
}

func parseTicket(data map[string]interface{}) *model.Ticket {
	tier := getMap(data, "tier")
	ticket := &model.Ticket{
		ID:            convertSurrealID(data["id"]),
		EventID:       convertSurrealID(data["event"]),
		UserID:        convertSurrealID(data["user"]),
		PurchaseDate:  getTimeValue(data, "purchase_date"),
		Status:        model.TicketStatus(getString(data, "status")),
		TransactionID: getString(data, "transaction_id"),
		CreatedOn:     getTimeValue(data, "created_on"),
	}
	if tier != nil {
		ticket.Tier = model.TierSnapshot{
			Name:  getString(tier, "name"),
			Price: getFloat(tier, "price"),
		}
	}

	if ev := getMap(data, "event_details"); ev != nil {
		summary := &model.EventSummary{
			ID:       convertSurrealID(ev["id"]),
			Title:    getString(ev, "title"),
			Date:     getTimeValue(ev, "date"),
			Location: parseLocation(getMap(ev, "location")),
			Images:   parseImages(getMapSlice(ev, "images")),
			Status:   model.EventStatus(getString(ev, "status")),
		}
		if org := getMap(data, "organizer_details"); org != nil {
			summary.OrganizerName = strings.TrimSpace(getString(org, "first_name") + " " + getString(org, "last_name"))
		}
		ticket.Event = summary
	}
	return ticket
}
