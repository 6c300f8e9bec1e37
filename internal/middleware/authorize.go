package middleware

import (
	"net/http"

	"github.com/forgo/marquee/api/internal/model"
)

// PermissionChecker decides whether a role may perform an action on a resource
type PermissionChecker interface {
	Can(role, resource, action string) bool
}

// Authorize returns a middleware that rejects requests whose role lacks the
// permission. It must run after Auth.
func Authorize(checker PermissionChecker, resource, action string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserID(r.Context()) == "" {
				model.NewUnauthorizedError("authentication required").WriteJSON(w)
				return
			}
			if !checker.Can(GetUserRole(r.Context()), resource, action) {
				model.NewForbiddenError("your role does not permit this action").WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
