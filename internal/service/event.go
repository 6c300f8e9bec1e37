package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/messaging"
	"github.com/forgo/marquee/api/internal/metrics"
	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/validation"
)

// maxUpdateAttempts bounds re-reads when a purchase races an event update
const maxUpdateAttempts = 3

// Actor is the authenticated caller of a service method
type Actor struct {
	UserID string
	Role   model.UserRole
}

// IsAdmin returns true if the actor has admin role
func (a Actor) IsAdmin() bool {
	return a.Role == model.UserRoleAdmin
}

// CanOrganize returns true if the actor may create and manage events
func (a Actor) CanOrganize() bool {
	return a.Role == model.UserRoleOrganizer || a.Role == model.UserRoleAdmin
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error)
	ListAll(ctx context.Context) ([]*model.Event, error)
	Update(ctx context.Context, event *model.Event, expectedSold []int) (*model.Event, error)
	SetStatus(ctx context.Context, id string, status model.EventStatus) (*model.Event, error)
	AppendImages(ctx context.Context, id string, images []model.EventImage) (*model.Event, error)
	DeleteCascade(ctx context.Context, id string) error
	CompletePastEvents(ctx context.Context, now time.Time) (int, error)
}

// EventService handles event listings and their lifecycle
type EventService struct {
	eventRepo  EventRepository
	ticketRepo TicketRepository
	images     *ImageService
	publisher  Publisher
	now        func() time.Time
}

// EventServiceConfig holds configuration for the event service
type EventServiceConfig struct {
	EventRepo  EventRepository
	TicketRepo TicketRepository
	Images     *ImageService
	Publisher  Publisher // optional
}

// NewEventService creates a new event service
func NewEventService(cfg EventServiceConfig) *EventService {
	return &EventService{
		eventRepo:  cfg.EventRepo,
		ticketRepo: cfg.TicketRepo,
		images:     cfg.Images,
		publisher:  cfg.Publisher,
		now:        time.Now,
	}
}

// Create validates and stores a new event organized by the actor. Uploaded
// files are stored first and appended to req.Images; they are removed again
// if the event cannot be created.
func (s *EventService) Create(ctx context.Context, actor Actor, req model.CreateEventRequest, files []io.Reader) (*model.Event, error) {
	if !actor.CanOrganize() {
		return nil, ErrForbidden
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	for i := range req.TicketTiers {
		req.TicketTiers[i].Name = strings.TrimSpace(req.TicketTiers[i].Name)
		req.TicketTiers[i].SoldCount = 0
	}
	if err := validation.Struct(&req, req.Validate(s.now())...); err != nil {
		return nil, err
	}
	if len(req.Images)+len(files) > model.MaxEventImages {
		return nil, ErrTooManyImages
	}

	uploaded, err := s.uploadAll(ctx, actor.UserID, files)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = model.EventStatusDraft
	}

	event := &model.Event{
		Title:       req.Title,
		Description: req.Description,
		OrganizerID: actor.UserID,
		Date:        req.Date.UTC(),
		Location:    req.Location,
		Category:    req.Category,
		Images:      append(req.Images, uploaded...),
		TicketTiers: req.TicketTiers,
		Status:      status,
		Tags:        req.Tags,
		Featured:    req.Featured,
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.discard(ctx, actor.UserID, uploaded)
		return nil, err
	}

	return event, nil
}

// Get returns an event with organizer and attendee summaries
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

// List returns events matching filter, soonest first
func (s *EventService) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	if filter.Category != "" && !isEventCategory(filter.Category) {
		return nil, ErrInvalidEventCategory
	}
	if filter.Status != "" && !isEventStatus(filter.Status) {
		return nil, ErrInvalidEventStatus
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.eventRepo.List(ctx, filter)
}

// ListByOrganizer returns the events a user organizes, latest first
func (s *EventService) ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error) {
	return s.eventRepo.ListByOrganizer(ctx, organizerID)
}

// ListAll returns every event, newest first
func (s *EventService) ListAll(ctx context.Context) ([]*model.Event, error) {
	return s.eventRepo.ListAll(ctx)
}

// Update applies a partial update. Only the organizer or an admin may update.
// Tier sold counts are carried over by tier name; a concurrent purchase
// causes a re-read and re-validation.
func (s *EventService) Update(ctx context.Context, actor Actor, id string, req model.UpdateEventRequest) (*model.Event, error) {
	if req.IsEmpty() {
		return nil, ErrNoChanges
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.getManaged(ctx, actor, id)
		if err != nil {
			return nil, err
		}

		if err := validation.Struct(&req, req.Validate(current, s.now())...); err != nil {
			return nil, err
		}

		expectedSold := make([]int, len(current.TicketTiers))
		for i, tier := range current.TicketTiers {
			expectedSold[i] = tier.SoldCount
		}

		updated := applyEventUpdate(current, req)
		if len(updated.Images) > model.MaxEventImages {
			return nil, ErrTooManyImages
		}

		result, err := s.eventRepo.Update(ctx, updated, expectedSold)
		if errors.Is(err, database.ErrStateChanged) {
			slog.Debug("event changed during update, retrying",
				slog.String("event_id", id),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, ErrEventNotFound
		}

		s.discard(ctx, current.OrganizerID, droppedImages(current.Images, result.Images))
		return result, nil
	}

	return nil, ErrEventBusy
}

// AddImages stores files and appends them to the event images
func (s *EventService) AddImages(ctx context.Context, actor Actor, id string, files []io.Reader) (*model.Event, error) {
	if len(files) == 0 {
		return nil, ErrImageRequired
	}

	event, err := s.getManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if len(event.Images)+len(files) > model.MaxEventImages {
		return nil, ErrTooManyImages
	}

	uploaded, err := s.uploadAll(ctx, event.OrganizerID, files)
	if err != nil {
		return nil, err
	}

	updated, err := s.eventRepo.AppendImages(ctx, event.ID, uploaded)
	if err != nil || updated == nil {
		s.discard(ctx, event.OrganizerID, uploaded)
		if err == nil {
			err = ErrEventNotFound
		}
		return nil, err
	}
	return updated, nil
}

// Delete removes an event together with all of its tickets, then its stored
// images. Only the organizer or an admin may delete.
func (s *EventService) Delete(ctx context.Context, actor Actor, id string) error {
	event, err := s.getManaged(ctx, actor, id)
	if err != nil {
		return err
	}

	tickets := 0
	if s.ticketRepo != nil {
		if tickets, err = s.ticketRepo.CountByEvent(ctx, event.ID); err != nil {
			return err
		}
	}

	if err := s.eventRepo.DeleteCascade(ctx, event.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	metrics.EventsDeleted.Inc()

	s.discard(ctx, event.OrganizerID, event.Images)

	s.publish(ctx, messaging.TopicEventDeleted, messaging.EventDeleted{
		EventID:     event.ID,
		OrganizerID: event.OrganizerID,
		DeletedBy:   actor.UserID,
		Tickets:     tickets,
	})

	slog.Info("event deleted",
		slog.String("event_id", event.ID),
		slog.String("deleted_by", actor.UserID),
		slog.Int("tickets", tickets),
	)
	return nil
}

// SetStatus changes an event status (admin moderation)
func (s *EventService) SetStatus(ctx context.Context, id string, status model.EventStatus) (*model.Event, error) {
	if !isEventStatus(status) {
		return nil, ErrInvalidEventStatus
	}
	event, err := s.eventRepo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

// CompletePastEvents marks published events whose date has passed as completed
func (s *EventService) CompletePastEvents(ctx context.Context) (int, error) {
	return s.eventRepo.CompletePastEvents(ctx, s.now())
}

// getManaged loads an event the actor may modify
func (s *EventService) getManaged(ctx context.Context, actor Actor, id string) (*model.Event, error) {
	if !actor.CanOrganize() {
		return nil, ErrForbidden
	}
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !event.IsOwnedBy(actor.UserID) {
		return nil, ErrNotEventOwner
	}
	return event, nil
}

// uploadAll stores files as images owned by ownerID
func (s *EventService) uploadAll(ctx context.Context, ownerID string, files []io.Reader) ([]model.EventImage, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.images == nil {
		return nil, ErrImageStoreUnavailable
	}

	images := make([]model.EventImage, 0, len(files))
	for _, f := range files {
		img, err := s.images.Upload(ctx, ownerID, f)
		if err != nil {
			s.discard(ctx, ownerID, images)
			return nil, err
		}
		images = append(images, model.EventImage{URL: img.URL})
	}
	return images, nil
}

func (s *EventService) discard(ctx context.Context, ownerID string, images []model.EventImage) {
	if s.images != nil && len(images) > 0 {
		s.images.DeleteURLs(ctx, ownerID, imageURLs(images)...)
	}
}

func (s *EventService) publish(ctx context.Context, topic string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish event",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
	}
}

// applyEventUpdate returns a copy of current with req applied. Tiers that
// keep their name keep their sold count.
func applyEventUpdate(current *model.Event, req model.UpdateEventRequest) *model.Event {
	updated := *current

	if req.Title != nil {
		updated.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Date != nil {
		updated.Date = req.Date.UTC()
	}
	if req.Location != nil {
		updated.Location = *req.Location
	}
	if req.Category != nil {
		updated.Category = *req.Category
	}
	if req.Images != nil {
		updated.Images = req.Images
	}
	if req.Tags != nil {
		updated.Tags = req.Tags
	}
	if req.Status != nil {
		updated.Status = *req.Status
	}
	if req.Featured != nil {
		updated.Featured = *req.Featured
	}
	if req.TicketTiers != nil {
		tiers := make([]model.TicketTier, len(req.TicketTiers))
		for i, tier := range req.TicketTiers {
			tier.Name = strings.TrimSpace(tier.Name)
			tier.SoldCount = 0
			if idx := current.TierIndex(tier.Name); idx >= 0 {
				tier.SoldCount = current.TicketTiers[idx].SoldCount
			}
			tiers[i] = tier
		}
		updated.TicketTiers = tiers
	}

	return &updated
}

// droppedImages returns the images in before whose URL is gone from after
func droppedImages(before, after []model.EventImage) []model.EventImage {
	kept := make(map[string]bool, len(after))
	for _, img := range after {
		kept[img.URL] = true
	}
	var dropped []model.EventImage
	for _, img := range before {
		if !kept[img.URL] {
			dropped = append(dropped, img)
		}
	}
	return dropped
}

func imageURLs(images []model.EventImage) []string {
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.URL
	}
	return urls
}

func isEventStatus(status model.EventStatus) bool {
	switch status {
	case model.EventStatusDraft, model.EventStatusPublished, model.EventStatusCancelled, model.EventStatusCompleted:
		return true
	}
	return false
}

func isEventCategory(category model.EventCategory) bool {
	for _, c := range model.EventCategories {
		if c == category {
			return true
		}
	}
	return false
}
