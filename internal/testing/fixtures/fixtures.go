package fixtures

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/repository"
)

// DefaultPassword is the plaintext password of every fixture user
const DefaultPassword = "testpass123"

// Factory creates test entities through the repositories
type Factory struct {
	Users   *repository.UserRepository
	Events  *repository.EventRepository
	Tickets *repository.TicketRepository
	faker   *gofakeit.Faker
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{
		Users:   repository.NewUserRepository(db),
		Events:  repository.NewEventRepository(db),
		Tickets: repository.NewTicketRepository(db),
		faker:   gofakeit.New(0),
	}
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ============================================================================
// User Fixtures
// ============================================================================

// UserOpts customizes user creation
type UserOpts struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      model.UserRole
	Status    model.UserStatus
}

// CreateUser creates an attendee with optional customizations
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	o := &UserOpts{
		Email:     fmt.Sprintf("user_%s@test.local", uuid.NewString()[:8]),
		Password:  DefaultPassword,
		FirstName: f.faker.FirstName(),
		LastName:  f.faker.LastName(),
		Role:      model.UserRoleAttendee,
		Status:    model.UserStatusActive,
	}
	for _, fn := range opts {
		fn(o)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("fixtures: failed to hash password: %v", err)
	}
	h := string(hash)

	user := &model.User{
		Email:     o.Email,
		Hash:      &h,
		FirstName: o.FirstName,
		LastName:  o.LastName,
		Role:      o.Role,
		Status:    o.Status,
	}
	if err := f.Users.Create(testCtx(t), user); err != nil {
		t.Fatalf("fixtures: failed to create user: %v", err)
	}
	return user
}

// CreateOrganizer creates an organizer account
func (f *Factory) CreateOrganizer(t *testing.T) *model.User {
	t.Helper()
	return f.CreateUser(t, WithRole(model.UserRoleOrganizer))
}

// CreateAdmin creates an admin account
func (f *Factory) CreateAdmin(t *testing.T) *model.User {
	t.Helper()
	return f.CreateUser(t, WithRole(model.UserRoleAdmin))
}

// WithEmail sets the user email
func WithEmail(email string) func(*UserOpts) {
	return func(o *UserOpts) { o.Email = email }
}

// WithRole sets the user role
func WithRole(role model.UserRole) func(*UserOpts) {
	return func(o *UserOpts) { o.Role = role }
}

// WithStatus sets the account status
func WithStatus(status model.UserStatus) func(*UserOpts) {
	return func(o *UserOpts) { o.Status = status }
}

// ============================================================================
// Event Fixtures
// ============================================================================

// EventOpts customizes event creation
type EventOpts struct {
	Title    string
	Date     time.Time
	Category model.EventCategory
	Status   model.EventStatus
	Tiers    []model.TicketTier
	Featured bool
	Tags     []string
}

// CreateEvent creates a published upcoming event with one tier of 100
// tickets at 25.00, organized by organizer
func (f *Factory) CreateEvent(t *testing.T, organizer *model.User, opts ...func(*EventOpts)) *model.Event {
	t.Helper()

	o := &EventOpts{
		Title:    f.faker.Sentence(3),
		Date:     time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Second),
		Category: model.EventCategoryMusic,
		Status:   model.EventStatusPublished,
		Tiers:    []model.TicketTier{{Name: "General", Price: 25, Quantity: 100}},
	}
	for _, fn := range opts {
		fn(o)
	}

	event := &model.Event{
		Title:       o.Title,
		Description: f.faker.Paragraph(1, 2, 8, " "),
		OrganizerID: organizer.ID,
		Date:        o.Date,
		Location:    model.Location{Address: f.faker.Street(), City: f.faker.City()},
		Category:    o.Category,
		TicketTiers: o.Tiers,
		Status:      o.Status,
		Tags:        o.Tags,
		Featured:    o.Featured,
	}
	if err := f.Events.Create(testCtx(t), event); err != nil {
		t.Fatalf("fixtures: failed to create event: %v", err)
	}
	return event
}

// WithTitle sets the event title
func WithTitle(title string) func(*EventOpts) {
	return func(o *EventOpts) { o.Title = title }
}

// WithDate sets the event date
func WithDate(date time.Time) func(*EventOpts) {
	return func(o *EventOpts) { o.Date = date.UTC().Truncate(time.Second) }
}

// WithCategory sets the event category
func WithCategory(category model.EventCategory) func(*EventOpts) {
	return func(o *EventOpts) { o.Category = category }
}

// WithEventStatus sets the event status
func WithEventStatus(status model.EventStatus) func(*EventOpts) {
	return func(o *EventOpts) { o.Status = status }
}

// WithTiers replaces the ticket tiers
func WithTiers(tiers ...model.TicketTier) func(*EventOpts) {
	return func(o *EventOpts) { o.Tiers = tiers }
}

// Featured marks the event as featured
func Featured() func(*EventOpts) {
	return func(o *EventOpts) { o.Featured = true }
}

// ============================================================================
// Ticket Fixtures
// ============================================================================

// BuyTickets purchases quantity tickets of the named tier for buyer
func (f *Factory) BuyTickets(t *testing.T, event *model.Event, buyer *model.User, tier string, quantity int) []*model.Ticket {
	t.Helper()

	idx := event.TierIndex(tier)
	if idx < 0 {
		t.Fatalf("fixtures: event %s has no tier %q", event.ID, tier)
	}

	tickets, err := f.Tickets.Purchase(testCtx(t), model.TicketPurchase{
		EventID:       event.ID,
		UserID:        buyer.ID,
		TierIndex:     idx,
		Tier:          model.TierSnapshot{Name: tier, Price: event.TicketTiers[idx].Price},
		Quantity:      quantity,
		TransactionID: "tx_" + uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("fixtures: failed to buy tickets: %v", err)
	}
	return tickets
}
