package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/service"
)

// UserService is the profile workflow behind /api/users
type UserService interface {
	Profile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest, image io.Reader) (*model.User, error)
	UploadProfileImage(ctx context.Context, userID string, image io.Reader) (*model.UploadedImage, error)
	Stats(ctx context.Context, userID string) (*model.UserStats, error)
}

// TicketService is the ticket workflow behind /api/users/tickets
type TicketService interface {
	ListForUser(ctx context.Context, userID string) ([]*model.Ticket, error)
	Cancel(ctx context.Context, actor service.Actor, id string) (*model.Ticket, error)
	QRCode(ctx context.Context, actor service.Actor, id string) ([]byte, error)
	PDF(ctx context.Context, actor service.Actor, id string) ([]byte, error)
}

// OrganizerEvents lists the events a user organizes
type OrganizerEvents interface {
	ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error)
}

// PasswordChanger changes a user's password
type PasswordChanger interface {
	ChangePassword(ctx context.Context, userID string, req model.ChangePasswordRequest) error
}

// UserHandler handles the signed-in user's endpoints
type UserHandler struct {
	users     UserService
	tickets   TicketService
	events    OrganizerEvents
	passwords PasswordChanger
	maxUpload int64
}

// UserHandlerConfig holds dependencies for the user handler
type UserHandlerConfig struct {
	Users     UserService
	Tickets   TicketService
	Events    OrganizerEvents
	Passwords PasswordChanger
	MaxUpload int64
}

// NewUserHandler creates a new user handler
func NewUserHandler(cfg UserHandlerConfig) *UserHandler {
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = service.DefaultMaxImageBytes
	}
	return &UserHandler{
		users:     cfg.Users,
		tickets:   cfg.Tickets,
		events:    cfg.Events,
		passwords: cfg.Passwords,
		maxUpload: cfg.MaxUpload,
	}
}

var profileLinks = map[string]string{
	"self":    "/api/users/profile",
	"stats":   "/api/users/stats",
	"events":  "/api/users/events",
	"tickets": "/api/users/tickets",
}

// Profile handles GET /api/users/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	user, err := h.users.Profile(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, user, profileLinks)
}

// UpdateProfile handles PUT /api/users/profile. A multipart body may carry
// an "image" file next to the JSON "data" field.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.UpdateProfileRequest
	var image io.Reader

	if isMultipart(r) {
		if err := parseMultipart(w, r, h.maxUpload, 1); err != nil {
			WriteError(w, model.NewBadRequestError(err.Error()))
			return
		}
		if err := decodeDataPart(r, &req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid data field"))
			return
		}
		files, closeFiles, err := openFiles(r, "image")
		if err != nil {
			WriteError(w, model.NewBadRequestError("could not read uploaded file"))
			return
		}
		defer closeFiles()
		if len(files) > 0 {
			image = files[0]
		}
	} else if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), actor.UserID, req, image)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, user, profileLinks)
}

// Stats handles GET /api/users/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	stats, err := h.users.Stats(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, stats, nil)
}

// Events handles GET /api/users/events
func (h *UserHandler) Events(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	events, err := h.events.ListByOrganizer(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteCollection(w, http.StatusOK, toEventResponses(events), nil, map[string]string{"self": "/api/users/events"})
}

// Tickets handles GET /api/users/tickets
func (h *UserHandler) Tickets(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	tickets, err := h.tickets.ListForUser(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteCollection(w, http.StatusOK, toTicketResponses(tickets), nil, map[string]string{"self": "/api/users/tickets"})
}

// TicketQR handles GET /api/users/tickets/{id}/qr
func (h *UserHandler) TicketQR(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	png, err := h.tickets.QRCode(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeBinary(w, "image/png", "", png)
}

// TicketPDF handles GET /api/users/tickets/{id}/pdf
func (h *UserHandler) TicketPDF(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	pdf, err := h.tickets.PDF(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeBinary(w, "application/pdf", "ticket-"+id+".pdf", pdf)
}

// CancelTicket handles POST /api/users/tickets/{id}/cancel
func (h *UserHandler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ticket, err := h.tickets.Cancel(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, toTicketResponse(ticket), nil)
}

// ChangePassword handles PUT /api/users/change-password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.ChangePasswordRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	if err := h.passwords.ChangePassword(r.Context(), actor.UserID, req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, map[string]string{"message": "password updated"}, nil)
}

// UploadImage handles POST /api/users/upload-image
func (h *UserHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if !isMultipart(r) {
		WriteError(w, MapServiceError(service.ErrImageRequired))
		return
	}
	if err := parseMultipart(w, r, h.maxUpload, 1); err != nil {
		WriteError(w, model.NewBadRequestError(err.Error()))
		return
	}
	files, closeFiles, err := openFiles(r, "image")
	if err != nil {
		WriteError(w, model.NewBadRequestError("could not read uploaded file"))
		return
	}
	defer closeFiles()
	if len(files) == 0 {
		WriteError(w, MapServiceError(service.ErrImageRequired))
		return
	}

	uploaded, err := h.users.UploadProfileImage(r.Context(), actor.UserID, files[0])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, uploaded, map[string]string{"profile": "/api/users/profile"})
}

func writeBinary(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "no-store")
	if filename != "" {
		w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
