// Package helpers provides test utilities shared by the handler, repository
// and middleware tests.
//
// # JWT Helpers
//
// Mint HS256 access tokens accepted by the auth middleware:
//
//	jh := helpers.NewJWTHelper(t)
//	token := jh.GenerateToken(user)
//	expired := jh.GenerateExpiredToken(user)
//
// # Request Helpers
//
//	rec := helpers.NewRequest(t, http.MethodPost, "/api/events/e1/tickets").
//	    WithAuth(jh, user).
//	    WithIdempotencyKey("k1").
//	    WithBody(map[string]any{"tier": "General"}).
//	    Do(router)
//
// # Assertion Helpers
//
//	helpers.AssertProblemDetails(t, rec, http.StatusConflict, model.ErrCodeSoldOut)
//	helpers.AssertRecordNotExists(t, db, "ticket", id)
//	n := helpers.CountRecords(t, db, "ticket", "event = $event", vars)
package helpers
