package main

import (
	"net/http"

	"github.com/forgo/marquee/api/internal/authz"
	"github.com/forgo/marquee/api/internal/handler"
	"github.com/forgo/marquee/api/internal/middleware"
)

// routes holds everything the mux needs. Middlewares are plain values so
// tests can assemble a router without a database.
type routes struct {
	auth    *handler.AuthHandler
	events  *handler.EventHandler
	users   *handler.UserHandler
	admin   *handler.AdminHandler
	uploads *handler.UploadHandler
	health  *handler.HealthHandler
	metrics http.Handler

	authn       middleware.Middleware
	permissions middleware.PermissionChecker
	authLimit   middleware.Middleware
	idempotency *middleware.IdempotencyStore
}

func (rt *routes) mux() *http.ServeMux {
	mux := http.NewServeMux()

	// Infrastructure
	mux.HandleFunc("GET /health", rt.health.Health)
	mux.Handle("GET /metrics", rt.metrics)
	mux.HandleFunc("GET /uploads/{id}", rt.uploads.Get)

	// Auth
	mux.Handle("POST /api/auth/signup", rt.authLimit(http.HandlerFunc(rt.auth.Signup)))
	mux.Handle("POST /api/auth/login", rt.authLimit(http.HandlerFunc(rt.auth.Login)))
	mux.Handle("POST /api/auth/refresh", rt.authLimit(http.HandlerFunc(rt.auth.Refresh)))
	mux.Handle("GET /api/auth/me", rt.authn(http.HandlerFunc(rt.auth.Me)))
	mux.Handle("POST /api/auth/logout", rt.authn(http.HandlerFunc(rt.auth.Logout)))

	// Events
	mux.HandleFunc("GET /api/events", rt.events.List)
	mux.HandleFunc("GET /api/events/{id}", rt.events.Get)
	mux.Handle("POST /api/events", rt.can(authz.ResourceEvents, authz.ActionWrite, rt.events.Create))
	mux.Handle("PUT /api/events/{id}", rt.can(authz.ResourceEvents, authz.ActionWrite, rt.events.Update))
	mux.Handle("DELETE /api/events/{id}", rt.can(authz.ResourceEvents, authz.ActionWrite, rt.events.Delete))
	mux.Handle("POST /api/events/{id}/images", rt.can(authz.ResourceEvents, authz.ActionWrite, rt.events.AddImages))
	mux.Handle("POST /api/events/{id}/tickets", middleware.Chain(
		http.HandlerFunc(rt.events.PurchaseTickets),
		rt.authn,
		middleware.Authorize(rt.permissions, authz.ResourceTickets, authz.ActionPurchase),
		middleware.Idempotency(rt.idempotency),
	))

	// Users
	mux.Handle("GET /api/users/profile", rt.can(authz.ResourceProfile, authz.ActionRead, rt.users.Profile))
	mux.Handle("PUT /api/users/profile", rt.can(authz.ResourceProfile, authz.ActionWrite, rt.users.UpdateProfile))
	mux.Handle("GET /api/users/stats", rt.can(authz.ResourceProfile, authz.ActionRead, rt.users.Stats))
	mux.Handle("GET /api/users/events", rt.can(authz.ResourceProfile, authz.ActionRead, rt.users.Events))
	mux.Handle("GET /api/users/tickets", rt.can(authz.ResourceTickets, authz.ActionRead, rt.users.Tickets))
	mux.Handle("GET /api/users/tickets/{id}/qr", rt.can(authz.ResourceTickets, authz.ActionRead, rt.users.TicketQR))
	mux.Handle("GET /api/users/tickets/{id}/pdf", rt.can(authz.ResourceTickets, authz.ActionRead, rt.users.TicketPDF))
	mux.Handle("POST /api/users/tickets/{id}/cancel", rt.can(authz.ResourceTickets, authz.ActionCancel, rt.users.CancelTicket))
	mux.Handle("PUT /api/users/change-password", rt.can(authz.ResourceProfile, authz.ActionWrite, rt.users.ChangePassword))
	mux.Handle("POST /api/users/upload-image", rt.can(authz.ResourceProfile, authz.ActionWrite, rt.users.UploadImage))

	// Admin
	mux.Handle("GET /api/admin/stats", rt.can(authz.ResourceAdmin, authz.ActionRead, rt.admin.Stats))
	mux.Handle("GET /api/admin/users", rt.can(authz.ResourceAdmin, authz.ActionRead, rt.admin.ListUsers))
	mux.Handle("GET /api/admin/events", rt.can(authz.ResourceAdmin, authz.ActionRead, rt.admin.ListEvents))
	mux.Handle("PUT /api/admin/users/{id}/status", rt.can(authz.ResourceAdmin, authz.ActionManage, rt.admin.SetUserStatus))
	mux.Handle("PUT /api/admin/events/{id}/status", rt.can(authz.ResourceAdmin, authz.ActionManage, rt.admin.SetEventStatus))
	mux.Handle("PUT /api/admin/tickets/{id}/status", rt.can(authz.ResourceAdmin, authz.ActionManage, rt.admin.SetTicketStatus))
	mux.Handle("DELETE /api/admin/users/{id}", rt.can(authz.ResourceAdmin, authz.ActionManage, rt.admin.DeleteUser))
	mux.Handle("DELETE /api/admin/events/{id}", rt.can(authz.ResourceAdmin, authz.ActionManage, rt.admin.DeleteEvent))
	mux.Handle("POST /api/admin/seed", rt.can(authz.ResourceAdmin, authz.ActionManage, rt.admin.Seed))

	return mux
}

// can wraps h with authentication and a role permission check
func (rt *routes) can(resource, action string, h http.HandlerFunc) http.Handler {
	return middleware.Chain(h, rt.authn, middleware.Authorize(rt.permissions, resource, action))
}
