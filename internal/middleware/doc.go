// Package middleware provides HTTP middleware for the Marquee API.
//
// # Available Middleware
//
//   - Auth / OptionalAuth: bearer token validation; Auth also reloads the
//     account so suspended users are rejected and the role is current
//   - Authorize: role check against the casbin policy in internal/authz
//   - RateLimit: per-user (or per-address) token buckets
//   - LimitByIP: fixed-window limit for login and signup
//   - Idempotency: replays keyed POST/PATCH responses
//   - RequestID, Logger, Recovery, CORS, Compress
//
// # Context Values
//
//   - GetUserID, GetUserEmail, GetUserRole, GetUser, GetClaims
//   - GetRequestID
package middleware
