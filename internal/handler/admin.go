package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/service"
)

// AdminService is the moderation and reporting workflow behind /api/admin
type AdminService interface {
	Stats(ctx context.Context) (*model.AdminStats, error)
	ListUsers(ctx context.Context, filter model.UserFilter) (*model.UserPage, error)
	SetUserStatus(ctx context.Context, actor service.Actor, id string, status model.UserStatus) (*model.User, error)
	DeleteUser(ctx context.Context, actor service.Actor, id string) error
}

// TicketModerator changes ticket state on behalf of an admin
type TicketModerator interface {
	SetStatus(ctx context.Context, id string, status model.TicketStatus) (*model.Ticket, error)
}

// Seeder generates development data
type Seeder interface {
	Seed(ctx context.Context, req service.SeedRequest) (*service.SeedResult, error)
}

// AdminHandler handles admin endpoints. Every route is mounted behind the
// admin authorization check.
type AdminHandler struct {
	admin   AdminService
	events  EventService
	tickets TicketModerator
	seeder  Seeder
}

// AdminHandlerConfig holds dependencies for the admin handler
type AdminHandlerConfig struct {
	Admin   AdminService
	Events  EventService
	Tickets TicketModerator
	Seeder  Seeder
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	return &AdminHandler{
		admin:   cfg.Admin,
		events:  cfg.Events,
		tickets: cfg.Tickets,
		seeder:  cfg.Seeder,
	}
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, stats, map[string]string{"self": "/api/admin/stats"})
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.UserFilter{
		Search: q.Get("search"),
		Role:   model.UserRole(q.Get("role")),
		Status: model.UserStatus(q.Get("status")),
	}

	var fields []model.FieldError
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			fields = append(fields, model.FieldError{Field: "page", Message: "must be a positive integer"})
		}
		filter.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			fields = append(fields, model.FieldError{Field: "page_size", Message: "must be a positive integer"})
		}
		filter.PageSize = size
	}
	if len(fields) > 0 {
		WriteError(w, model.NewValidationError(fields))
		return
	}

	filter = filter.WithPaging()
	page, err := h.admin.ListUsers(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	users := page.Users
	if users == nil {
		users = []*model.User{}
	}

	WriteCollection(w, http.StatusOK, users, &PaginationInfo{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Total:    page.Total,
		HasMore:  filter.Offset()+len(users) < page.Total,
	}, map[string]string{"self": "/api/admin/users"})
}

// ListEvents handles GET /api/admin/events
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteCollection(w, http.StatusOK, toEventResponses(events), nil, map[string]string{"self": "/api/admin/events"})
}

// SetUserStatus handles PUT /api/admin/users/{id}/status
func (h *AdminHandler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.UpdateUserStatusRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	user, err := h.admin.SetUserStatus(r.Context(), actor, r.PathValue("id"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, user, nil)
}

// SetEventStatus handles PUT /api/admin/events/{id}/status
func (h *AdminHandler) SetEventStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventStatusRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	event, err := h.events.SetStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, toEventResponse(event), eventLinks(event.ID))
}

// SetTicketStatus handles PUT /api/admin/tickets/{id}/status
func (h *AdminHandler) SetTicketStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateTicketStatusRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	ticket, err := h.tickets.SetStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, toTicketResponse(ticket), nil)
}

// DeleteUser handles DELETE /api/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := h.admin.DeleteUser(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, map[string]string{"id": id, "message": "user deleted"}, nil)
}

// DeleteEvent handles DELETE /api/admin/events/{id}
func (h *AdminHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
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

// Seed handles POST /api/admin/seed
func (h *AdminHandler) Seed(w http.ResponseWriter, r *http.Request) {
	var req service.SeedRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}
	}

	result, err := h.seeder.Seed(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusCreated, result, map[string]string{
		"users":  "/api/admin/users",
		"events": "/api/admin/events",
	})
}
