// Package service implements the business logic layer for the Marquee API.
//
// Services sit between HTTP handlers and the repositories. They validate
// input, enforce ownership and role rules, and orchestrate repository calls,
// the image store, the payment processor and the message bus.
//
// # Service Pattern
//
// All services follow a consistent pattern:
//
//   - Constructor function (NewXxxService) accepts a config struct with its dependencies
//   - Methods that act for a user take an Actor (user id and role)
//   - Errors are returned as sentinel errors from errors.go, or validation.Error
//   - Context is passed through for cancellation and request-scoped values
//
// # Repository Interfaces
//
// Services define the repository interfaces they consume (UserRepository,
// EventRepository, TicketRepository, TokenRepository, StatsRepository).
// Repositories return nil, nil when a record does not exist; services turn
// that into the matching not-found sentinel.
//
// # Example Usage
//
//	events := NewEventService(EventServiceConfig{
//	    EventRepo:  eventRepository,
//	    TicketRepo: ticketRepository,
//	    Images:     imageService,
//	    Publisher:  bus,
//	})
//	event, err := events.Update(ctx, Actor{UserID: userID, Role: role}, eventID, req)
package service
