// Package model defines domain entities and data structures for the Marquee API.
//
// # Domain Entities
//
//   - User: account with a role (attendee, organizer, admin) and moderation status
//   - Event: organizer listing with ticket tiers, images and attendees
//   - Ticket: one admission with a snapshot of the tier name and price paid
//
// Request payloads carry go-playground/validator struct tags; rules that
// depend on the clock or on stored state live in Validate methods.
//
// RFC 9457 Problem Details errors are defined in errors.go.
package model
