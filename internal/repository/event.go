package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/model"
)

// eventProjection selects an event with its organizer summary
const eventProjection = `*, organizer.{id, first_name, last_name, email, profile_image} AS organizer_details`

// EventRepository handles event data access
type EventRepository struct {
	db database.Database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db database.Database) *EventRepository {
	return &EventRepository{db: db}
}

// Create creates a new event and fills in the generated fields
func (r *EventRepository) Create(ctx context.Context, event *model.Event) error {
	status := event.Status
	if status == "" {
		status = model.EventStatusDraft
	}

	query := `
		CREATE event CONTENT {
			title: $title,
			description: $description,
			organizer: type::record($organizer),
			date: <datetime>$date,
			location: $location,
			category: $category,
			images: $images,
			ticket_tiers: $ticket_tiers,
			status: $status,
			tags: $tags,
			featured: $featured,
			attendees: [],
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	vars := map[string]interface{}{
		"title":        event.Title,
		"description":  event.Description,
		"organizer":    event.OrganizerID,
		"date":         rfc3339(event.Date),
		"location":     locationContent(event.Location),
		"category":     event.Category,
		"images":       imagesContent(event.Images),
		"ticket_tiers": tiersContent(event.TicketTiers),
		"status":       status,
		"tags":         nonNilStrings(event.Tags),
		"featured":     event.Featured,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	rows := resultRecords(result, 0)
	if len(rows) == 0 {
		return fmt.Errorf("%w: create event returned no record", database.ErrQuery)
	}

	created := parseEvent(rows[0])
	event.ID = created.ID
	event.Status = created.Status
	event.TicketTiers = created.TicketTiers
	event.Attendees = created.Attendees
	event.CreatedOn = created.CreatedOn
	event.UpdatedOn = created.UpdatedOn
	return nil
}

// GetByID retrieves an event with organizer and attendee summaries.
// Returns nil, nil when not found.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	rid, ok := recordID("event", id)
	if !ok {
		return nil, nil
	}

	query := `
		SELECT ` + eventProjection + `,
			attendees.{id, first_name, last_name, profile_image} AS attendee_details
		FROM type::record($id)
	`
	return r.getOne(ctx, query, map[string]interface{}{"id": rid})
}

func (r *EventRepository) getOne(ctx context.Context, query string, vars map[string]interface{}) (*model.Event, error) {
	result, err := r.db.QueryOne(ctx, query, vars)
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
	return parseEvent(data), nil
}

// List returns events matching filter ordered by date ascending
func (r *EventRepository) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	conditions := []string{"true"}
	vars := map[string]interface{}{}

	if filter.Category != "" {
		conditions = append(conditions, "category = $category")
		vars["category"] = filter.Category
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = $status")
		vars["status"] = filter.Status
	}
	if s := strings.ToLower(strings.TrimSpace(filter.Search)); s != "" {
		conditions = append(conditions, "(string::lowercase(title) CONTAINS $search OR string::lowercase(description) CONTAINS $search)")
		vars["search"] = s
	}
	if filter.From != nil {
		conditions = append(conditions, "date >= <datetime>$from")
		vars["from"] = rfc3339(*filter.From)
	}
	if filter.Featured != nil {
		conditions = append(conditions, "featured = $featured")
		vars["featured"] = *filter.Featured
	}
	if filter.OrganizerID != "" {
		conditions = append(conditions, "organizer = type::record($organizer)")
		vars["organizer"] = filter.OrganizerID
	}

	query := fmt.Sprintf("SELECT %s FROM event WHERE %s ORDER BY date ASC", eventProjection, strings.Join(conditions, " AND "))
	if filter.Limit > 0 {
		query += " LIMIT $limit START $start"
		vars["limit"] = filter.Limit
		vars["start"] = filter.Offset
	}

	return r.queryMany(ctx, query, vars)
}

// ListByOrganizer returns the events a user organizes, newest date first
func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error) {
	query := `SELECT ` + eventProjection + ` FROM event WHERE organizer = type::record($organizer) ORDER BY date DESC`
	return r.queryMany(ctx, query, map[string]interface{}{"organizer": organizerID})
}

// ListAll returns every event newest first, for moderation
func (r *EventRepository) ListAll(ctx context.Context) ([]*model.Event, error) {
	query := `SELECT ` + eventProjection + ` FROM event ORDER BY created_on DESC`
	return r.queryMany(ctx, query, nil)
}

func (r *EventRepository) queryMany(ctx context.Context, query string, vars map[string]interface{}) ([]*model.Event, error) {
	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := resultRecords(result, 0)
	events := make([]*model.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, parseEvent(row))
	}
	return events, nil
}

// Update writes the mutable fields of event. The write only applies while the
// stored sold counts still equal expectedSold, so a purchase that lands
// between read and write is never overwritten; in that case database.ErrStateChanged
// is returned and the caller should re-read.
func (r *EventRepository) Update(ctx context.Context, event *model.Event, expectedSold []int) (*model.Event, error) {
	query := `
		UPDATE type::record($id) SET
			title = $title,
			description = $description,
			date = <datetime>$date,
			location = $location,
			category = $category,
			images = $images,
			ticket_tiers = $ticket_tiers,
			status = $status,
			tags = $tags,
			featured = $featured,
			updated_on = time::now()
		WHERE ticket_tiers.*.sold_count = $expected_sold
		RETURN AFTER
	`

	vars := map[string]interface{}{
		"id":            event.ID,
		"title":         event.Title,
		"description":   event.Description,
		"date":          rfc3339(event.Date),
		"location":      locationContent(event.Location),
		"category":      event.Category,
		"images":        imagesContent(event.Images),
		"ticket_tiers":  tiersContent(event.TicketTiers),
		"status":        event.Status,
		"tags":          nonNilStrings(event.Tags),
		"featured":      event.Featured,
		"expected_sold": expectedSold,
	}

	updated, err := r.getOne(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, database.ErrStateChanged
	}
	return updated, nil
}

// SetStatus changes an event status. Returns nil, nil when not found.
func (r *EventRepository) SetStatus(ctx context.Context, id string, status model.EventStatus) (*model.Event, error) {
	rid, ok := recordID("event", id)
	if !ok {
		return nil, nil
	}
	query := `UPDATE type::record($id) SET status = $status, updated_on = time::now() RETURN AFTER`
	return r.getOne(ctx, query, map[string]interface{}{"id": rid, "status": status})
}

// AppendImages adds images to an event. Returns nil, nil when not found.
func (r *EventRepository) AppendImages(ctx context.Context, id string, images []model.EventImage) (*model.Event, error) {
	rid, ok := recordID("event", id)
	if !ok {
		return nil, nil
	}
	query := `UPDATE type::record($id) SET images = array::concat(images, $images), updated_on = time::now() RETURN AFTER`
	return r.getOne(ctx, query, map[string]interface{}{"id": rid, "images": imagesContent(images)})
}

// DeleteCascade removes an event and all of its tickets atomically
func (r *EventRepository) DeleteCascade(ctx context.Context, id string) error {
	rid, ok := recordID("event", id)
	if !ok {
		return database.ErrNotFound
	}
	vars := map[string]interface{}{"event": rid}

	return database.NewAtomicBatch().
		Add(`DELETE ticket WHERE event = type::record($event)`, vars).
		Add(`DELETE type::record($event)`, vars).
		Execute(ctx, r.db)
}

// CompletePastEvents marks published events dated before now as completed
// and returns how many changed
func (r *EventRepository) CompletePastEvents(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE event SET status = "completed", updated_on = time::now()
		WHERE status = "published" AND date < <datetime>$now
		RETURN id
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"now": rfc3339(now)})
	if err != nil {
		return 0, err
	}
	return len(resultRecords(result, 0)), nil
}

func parseEvent(data map[string]interface{}) *model.Event {
	event := &model.Event{
		ID:          convertSurrealID(data["id"]),
		Title:       getString(data, "title"),
		Description: getString(data, "description"),
		OrganizerID: convertSurrealID(data["organizer"]),
		Date:        getTimeValue(data, "date"),
		Location:    parseLocation(getMap(data, "location")),
		Category:    model.EventCategory(getString(data, "category")),
		Images:      parseImages(getMapSlice(data, "images")),
		TicketTiers: parseTiers(getMapSlice(data, "ticket_tiers")),
		Status:      model.EventStatus(getString(data, "status")),
		Tags:        getStringSlice(data, "tags"),
		Featured:    getBool(data, "featured"),
		Attendees:   getIDSlice(data, "attendees"),
		CreatedOn:   getTimeValue(data, "created_on"),
		UpdatedOn:   getTimeValue(data, "updated_on"),
	}

	if org := getMap(data, "organizer_details"); org != nil {
		event.Organizer = parseUserSummary(org)
	}
	if attendees := getMapSlice(data, "attendee_details"); attendees != nil {
		event.AttendeeDetails = make([]*model.UserSummary, 0, len(attendees))
		for _, a := range attendees {
			event.AttendeeDetails = append(event.AttendeeDetails, parseUserSummary(a))
		}
	}
	return event
}

func parseLocation(data map[string]interface{}) model.Location {
	if data == nil {
		return model.Location{}
	}
	loc := model.Location{
		Address: getString(data, "address"),
		City:    getString(data, "city"),
		State:   getString(data, "state"),
		Country: getString(data, "country"),
	}
	if coords := getMap(data, "coordinates"); coords != nil {
		loc.Coordinates = &model.Coordinates{
			Lat: getFloat(coords, "lat"),
			Lng: getFloat(coords, "lng"),
		}
	}
	return loc
}

func parseImages(data []map[string]interface{}) []model.EventImage {
	images := make([]model.EventImage, 0, len(data))
	for _, img := range data {
		images = append(images, model.EventImage{
			URL: getString(img, "url"),
			Alt: getString(img, "alt"),
		})
	}
	return images
}

func parseTiers(data []map[string]interface{}) []model.TicketTier {
	tiers := make([]model.TicketTier, 0, len(data))
	for _, t := range data {
		tiers = append(tiers, model.TicketTier{
			Name:        getString(t, "name"),
			Price:       getFloat(t, "price"),
			Quantity:    getInt(t, "quantity"),
			SoldCount:   getInt(t, "sold_count"),
			Description: getString(t, "description"),
		})
	}
	return tiers
}

// locationContent omits empty optional keys so they are stored as NONE
func locationContent(loc model.Location) map[string]interface{} {
	out := map[string]interface{}{"address": loc.Address}
	if loc.City != "" {
		out["city"] = loc.City
	}
	if loc.State != "" {
		out["state"] = loc.State
	}
	if loc.Country != "" {
		out["country"] = loc.Country
	}
	if loc.Coordinates != nil {
		out["coordinates"] = map[string]interface{}{
			"lat": loc.Coordinates.Lat,
			"lng": loc.Coordinates.Lng,
		}
	}
	return out
}

func imagesContent(images []model.EventImage) []interface{} {
	out := make([]interface{}, 0, len(images))
	for _, img := range images {
		m := map[string]interface{}{"url": img.URL}
		if img.Alt != "" {
			m["alt"] = img.Alt
		}
		out = append(out, m)
	}
	return out
}

func tiersContent(tiers []model.TicketTier) []interface{} {
	out := make([]interface{}, 0, len(tiers))
	for _, t := range tiers {
		m := map[string]interface{}{
			"name":       t.Name,
			"price":      t.Price,
			"quantity":   t.Quantity,
			"sold_count": t.SoldCount,
		}
		if t.Description != "" {
			m["description"] = t.Description
		}
		out = append(out, m)
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
