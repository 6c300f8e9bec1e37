package model

import (
	"strconv"
	"strings"
	"time"
)

// EventCategory classifies an event for browsing
type EventCategory string

const (
	EventCategoryMusic      EventCategory = "music"
	EventCategorySports     EventCategory = "sports"
	EventCategoryArts       EventCategory = "arts"
	EventCategoryTechnology EventCategory = "technology"
	EventCategoryFood       EventCategory = "food"
	EventCategoryBusiness   EventCategory = "business"
	EventCategoryOther      EventCategory = "other"
)

// EventCategories lists every category in display order
var EventCategories = []EventCategory{
	EventCategoryMusic,
	EventCategorySports,
	EventCategoryArts,
	EventCategoryTechnology,
	EventCategoryFood,
	EventCategoryBusiness,
	EventCategoryOther,
}

// EventStatus is the lifecycle state of an event
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

// Limits applied to event payloads
const (
	MaxTicketTiers      = 20
	MaxEventImages      = 10
	MaxTicketsPerOrder  = 10
	MaxEventTitleLength = 200
)

// Coordinates is a WGS84 point
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// Location describes where an event takes place
type Location struct {
	Address     string       `json:"address" validate:"required,max=300"`
	City        string       `json:"city,omitempty" validate:"max=100"`
	State       string       `json:"state,omitempty" validate:"max=100"`
	Country     string       `json:"country,omitempty" validate:"max=100"`
	Coordinates *Coordinates `json:"coordinates,omitempty" validate:"omitempty"`
}

// EventImage is an image attached to an event
type EventImage struct {
	URL string `json:"url" validate:"required,max=2048"`
	Alt string `json:"alt,omitempty" validate:"max=200"`
}

// TicketTier is a priced category of tickets with a capacity
type TicketTier struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Price       float64 `json:"price" validate:"gte=0"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
	SoldCount   int     `json:"sold_count"`
	Description string  `json:"description,omitempty" validate:"max=500"`
}

// Remaining returns how many tickets of the tier are still available
func (t TicketTier) Remaining() int {
	if t.SoldCount >= t.Quantity {
		return 0
	}
	return t.Quantity - t.SoldCount
}

// Event represents an organizer's event listing
type Event struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	OrganizerID string        `json:"organizer"`
	Date        time.Time     `json:"date"`
	Location    Location      `json:"location"`
	Category    EventCategory `json:"category"`
	Images      []EventImage  `json:"images"`
	TicketTiers []TicketTier  `json:"ticket_tiers"`
	Status      EventStatus   `json:"status"`
	Tags        []string      `json:"tags"`
	Featured    bool          `json:"featured"`
	Attendees   []string      `json:"attendees"`
	CreatedOn   time.Time     `json:"created_on"`
	UpdatedOn   time.Time     `json:"updated_on"`

	// Populated by fetches that join the organizer and attendee records
	Organizer       *UserSummary   `json:"-"`
	AttendeeDetails []*UserSummary `json:"-"`
}

// IsOwnedBy reports whether userID organizes the event
func (e *Event) IsOwnedBy(userID string) bool {
	return e.OrganizerID == userID
}

// IsUpcoming reports whether the event date is after now
func (e *Event) IsUpcoming(now time.Time) bool {
	return e.Date.After(now)
}

// TierIndex returns the index of the named tier or -1
func (e *Event) TierIndex(name string) int {
	for i, tier := range e.TicketTiers {
		if strings.EqualFold(tier.Name, name) {
			return i
		}
	}
	return -1
}

// TicketsSold sums sold_count across tiers
func (e *Event) TicketsSold() int {
	total := 0
	for _, tier := range e.TicketTiers {
		total += tier.SoldCount
	}
	return total
}

// CreateEventRequest is the payload for POST /api/events
type CreateEventRequest struct {
	Title       string        `json:"title" validate:"required,max=200"`
	Description string        `json:"description" validate:"required,max=5000"`
	Date        time.Time     `json:"date" validate:"required"`
	Location    Location      `json:"location" validate:"required"`
	Category    EventCategory `json:"category" validate:"required,oneof=music sports arts technology food business other"`
	TicketTiers []TicketTier  `json:"ticket_tiers" validate:"required,min=1,max=20,dive"`
	Images      []EventImage  `json:"images,omitempty" validate:"omitempty,max=10,dive"`
	Tags        []string      `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=50"`
	Status      EventStatus   `json:"status,omitempty" validate:"omitempty,oneof=draft published"`
	Featured    bool          `json:"featured,omitempty"`
}

// Validate checks the rules that struct tags cannot express
func (r *CreateEventRequest) Validate(now time.Time) []FieldError {
	var errs []FieldError
	if !r.Date.IsZero() && !r.Date.After(now) {
		errs = append(errs, FieldError{Field: "date", Message: "must be in the future"})
	}
	errs = append(errs, validateTierNames(r.TicketTiers)...)
	return errs
}

// UpdateEventRequest is a partial update; nil fields are left unchanged
type UpdateEventRequest struct {
	Title       *string        `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string        `json:"description,omitempty" validate:"omitempty,min=1,max=5000"`
	Date        *time.Time     `json:"date,omitempty"`
	Location    *Location      `json:"location,omitempty" validate:"omitempty"`
	Category    *EventCategory `json:"category,omitempty" validate:"omitempty,oneof=music sports arts technology food business other"`
	TicketTiers []TicketTier   `json:"ticket_tiers,omitempty" validate:"omitempty,min=1,max=20,dive"`
	Images      []EventImage   `json:"images,omitempty" validate:"omitempty,max=10,dive"`
	Tags        []string       `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=50"`
	Status      *EventStatus   `json:"status,omitempty" validate:"omitempty,oneof=draft published cancelled completed"`
	Featured    *bool          `json:"featured,omitempty"`
}

// Validate checks the rules that struct tags cannot express against the
// current event state
func (r *UpdateEventRequest) Validate(current *Event, now time.Time) []FieldError {
	var errs []FieldError
	if r.Date != nil && !r.Date.Equal(current.Date) && !r.Date.After(now) {
		errs = append(errs, FieldError{Field: "date", Message: "must be in the future"})
	}
	if r.TicketTiers != nil {
		errs = append(errs, validateTierNames(r.TicketTiers)...)
		for i, tier := range r.TicketTiers {
			idx := current.TierIndex(tier.Name)
			if idx >= 0 && tier.Quantity < current.TicketTiers[idx].SoldCount {
				errs = append(errs, FieldError{
					Field:   "ticket_tiers[" + strconv.Itoa(i) + "].quantity",
					Message: "cannot be less than tickets already sold",
				})
			}
		}
		for _, existing := range current.TicketTiers {
			if existing.SoldCount > 0 && !hasTier(r.TicketTiers, existing.Name) {
				errs = append(errs, FieldError{
					Field:   "ticket_tiers",
					Message: "cannot remove tier " + existing.Name + " with tickets sold",
				})
			}
		}
	}
	return errs
}

// IsEmpty reports whether the request changes nothing
func (r *UpdateEventRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.Date == nil && r.Location == nil &&
		r.Category == nil && r.TicketTiers == nil && r.Images == nil && r.Tags == nil &&
		r.Status == nil && r.Featured == nil
}

// UpdateEventStatusRequest is the admin payload for moderating an event
type UpdateEventStatusRequest struct {
	Status EventStatus `json:"status" validate:"required,oneof=draft published cancelled completed"`
}

// EventFilter narrows event listings
type EventFilter struct {
	Category    EventCategory
	Status      EventStatus
	Search      string
	From        *time.Time
	Featured    *bool
	OrganizerID string
	Limit       int
	Offset      int
}

func validateTierNames(tiers []TicketTier) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool, len(tiers))
	for i, tier := range tiers {
		key := strings.ToLower(strings.TrimSpace(tier.Name))
		if key == "" {
			continue
		}
		if seen[key] {
			errs = append(errs, FieldError{
				Field:   "ticket_tiers[" + strconv.Itoa(i) + "].name",
				Message: "must be unique within the event",
			})
		}
		seen[key] = true
	}
	return errs
}

func hasTier(tiers []TicketTier, name string) bool {
	for _, tier := range tiers {
		if strings.EqualFold(tier.Name, name) {
			return true
		}
	}
	return false
}
