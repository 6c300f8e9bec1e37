// Package handler provides HTTP request handlers for the Marquee API.
//
// Handlers are grouped by route prefix: AuthHandler serves /api/auth,
// EventHandler serves /api/events, UserHandler serves /api/users,
// AdminHandler serves /api/admin and UploadHandler serves /uploads.
// Each handler depends on small interfaces declared next to it so tests can
// substitute hand-written fakes for the services.
//
// # Response Format
//
// Successful responses are wrapped in {"data": ..., "_links": ...} by
// WriteData, or {"data": [...], "pagination": ...} by WriteCollection.
// Failures are RFC 9457 Problem Details written by WriteError; service
// errors pass through MapServiceError first.
//
// # Uploads
//
// Event creation and profile updates accept either a JSON body or a
// multipart form whose "data" field holds the same JSON next to the files.
//
// # Authentication
//
// Protected routes run behind middleware.Auth. Handlers read the caller with
// requireActor, which answers 401 for anonymous requests.
package handler
