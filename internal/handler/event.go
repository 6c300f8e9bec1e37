package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/service"
)

// EventService is the event workflow behind /api/events
type EventService interface {
	Create(ctx context.Context, actor service.Actor, req model.CreateEventRequest, files []io.Reader) (*model.Event, error)
	Get(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error)
	ListAll(ctx context.Context) ([]*model.Event, error)
	Update(ctx context.Context, actor service.Actor, id string, req model.UpdateEventRequest) (*model.Event, error)
	AddImages(ctx context.Context, actor service.Actor, id string, files []io.Reader) (*model.Event, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
	SetStatus(ctx context.Context, id string, status model.EventStatus) (*model.Event, error)
}

// TicketPurchaser sells tickets for an event
type TicketPurchaser interface {
	Purchase(ctx context.Context, actor service.Actor, eventID string, req model.PurchaseTicketRequest, idempotencyKey string) ([]*model.Ticket, error)
}

// EventHandler handles event endpoints
type EventHandler struct {
	events    EventService
	tickets   TicketPurchaser
	maxUpload int64
}

// EventHandlerConfig holds dependencies for the event handler
type EventHandlerConfig struct {
	Events    EventService
	Tickets   TicketPurchaser
	MaxUpload int64 // per-file limit, default 5 MB
}

// NewEventHandler creates a new event handler
func NewEventHandler(cfg EventHandlerConfig) *EventHandler {
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = service.DefaultMaxImageBytes
	}
	return &EventHandler{events: cfg.Events, tickets: cfg.Tickets, maxUpload: cfg.MaxUpload}
}

// EventResponse is an event with its organizer and attendees expanded
type EventResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Organizer   *model.UserSummary   `json:"organizer"`
	Date        time.Time            `json:"date"`
	Location    model.Location       `json:"location"`
	Category    model.EventCategory  `json:"category"`
	Images      []model.EventImage   `json:"images"`
	TicketTiers []model.TicketTier   `json:"ticket_tiers"`
	Status      model.EventStatus    `json:"status"`
	Tags        []string             `json:"tags"`
	Featured    bool                 `json:"featured"`
	Attendees   []*model.UserSummary `json:"attendees"`
	TicketsSold int                  `json:"tickets_sold"`
	CreatedOn   time.Time            `json:"created_on"`
	UpdatedOn   time.Time            `json:"updated_on"`
}

func toEventResponse(e *model.Event) EventResponse {
	organizer := e.Organizer
	if organizer == nil {
		organizer = &model.UserSummary{ID: e.OrganizerID}
	}

	attendees := e.AttendeeDetails
	if attendees == nil {
		attendees = make([]*model.UserSummary, 0, len(e.Attendees))
		for _, id := range e.Attendees {
			attendees = append(attendees, &model.UserSummary{ID: id})
		}
	}

	return EventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Organizer:   organizer,
		Date:        e.Date,
		Location:    e.Location,
		Category:    e.Category,
		Images:      nonNil(e.Images),
		TicketTiers: nonNil(e.TicketTiers),
		Status:      e.Status,
		Tags:        nonNil(e.Tags),
		Featured:    e.Featured,
		Attendees:   attendees,
		TicketsSold: e.TicketsSold(),
		CreatedOn:   e.CreatedOn,
		UpdatedOn:   e.UpdatedOn,
	}
}

func toEventResponses(events []*model.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func eventLinks(id string) map[string]string {
	return map[string]string{
		"self":    "/api/events/" + id,
		"images":  "/api/events/" + id + "/images",
		"tickets": "/api/events/" + id + "/tickets",
	}
}

// List handles GET /api/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, problem := parseEventFilter(r)
	if problem != nil {
		WriteError(w, problem)
		return
	}

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteCollection(w, http.StatusOK, toEventResponses(events), nil, map[string]string{"self": "/api/events"})
}

func parseEventFilter(r *http.Request) (model.EventFilter, *model.ProblemDetails) {
	q := r.URL.Query()
	filter := model.EventFilter{
		Category: model.EventCategory(q.Get("category")),
		Status:   model.EventStatus(q.Get("status")),
		Search:   q.Get("search"),
	}

	if raw := q.Get("date"); raw != "" {
		from, err := parseDateParam(raw)
		if err != nil {
			return filter, model.NewValidationError([]model.FieldError{
				{Field: "date", Message: "must be YYYY-MM-DD or RFC 3339"},
			})
		}
		filter.From = &from
	}

	if raw := q.Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, model.NewValidationError([]model.FieldError{
				{Field: "featured", Message: "must be true or false"},
			})
		}
		filter.Featured = &featured
	}

	return filter, nil
}

func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Get handles GET /api/events/{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, toEventResponse(event), eventLinks(event.ID))
}

// Create handles POST /api/events. The body is either JSON or a multipart
// form with a "data" JSON field and "images" files.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.CreateEventRequest
	var files []io.Reader

	if isMultipart(r) {
		if err := parseMultipart(w, r, h.maxUpload, model.MaxEventImages); err != nil {
			WriteError(w, model.NewBadRequestError(err.Error()))
			return
		}
		if err := decodeDataPart(r, &req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid data field"))
			return
		}
		opened, closeFiles, err := openFiles(r, "images")
		if err != nil {
			WriteError(w, model.NewBadRequestError("could not read uploaded files"))
			return
		}
		defer closeFiles()
		files = opened
	} else if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	event, err := h.events.Create(r.Context(), actor, req, files)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusCreated, toEventResponse(event), eventLinks(event.ID))
}

// Update handles PUT /api/events/{id}
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.UpdateEventRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	event, err := h.events.Update(r.Context(), actor, r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, toEventResponse(event), eventLinks(event.ID))
}

// Delete handles DELETE /api/events/{id}
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := h.events.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, map[string]string{"id": id, "message": "event deleted"}, nil)
}

// AddImages handles POST /api/events/{id}/images
func (h *EventHandler) AddImages(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if !isMultipart(r) {
		WriteError(w, model.NewBadRequestError("expected multipart/form-data with images"))
		return
	}
	if err := parseMultipart(w, r, h.maxUpload, model.MaxEventImages); err != nil {
		WriteError(w, model.NewBadRequestError(err.Error()))
		return
	}
	files, closeFiles, err := openFiles(r, "images")
	if err != nil {
		WriteError(w, model.NewBadRequestError("could not read uploaded files"))
		return
	}
	defer closeFiles()

	event, err := h.events.AddImages(r.Context(), actor, r.PathValue("id"), files)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, toEventResponse(event), eventLinks(event.ID))
}

// PurchaseTickets handles POST /api/events/{id}/tickets
func (h *EventHandler) PurchaseTickets(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.PurchaseTicketRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	tickets, err := h.tickets.Purchase(r.Context(), actor, r.PathValue("id"), req, key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusCreated, toTicketResponses(tickets), map[string]string{
		"tickets": "/api/users/tickets",
	})
}
