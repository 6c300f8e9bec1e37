package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/model"
)

// SeedPassword is the password of every seeded account
const SeedPassword = "password123"

// Seed limits
const (
	maxSeedUsers  = 200
	maxSeedEvents = 500
)

// SeedRequest configures a seeding run. Zero values fall back to defaults.
type SeedRequest struct {
	Organizers int    `json:"organizers,omitempty"`
	Attendees  int    `json:"attendees,omitempty"`
	Events     int    `json:"events,omitempty"`
	Purchases  int    `json:"purchases_per_event,omitempty"`
	Prefix     string `json:"prefix,omitempty"`
	Seed       uint64 `json:"seed,omitempty"`
}

// SeedResult contains the results of a seeding operation
type SeedResult struct {
	Users    int      `json:"users"`
	Events   int      `json:"events"`
	Tickets  int      `json:"tickets"`
	UserIDs  []string `json:"user_ids"`
	EventIDs []string `json:"event_ids"`
	Password string   `json:"password"`
	Duration int64    `json:"duration_ms"`
}

// SeederService generates mock data for development
type SeederService struct {
	userRepo    UserRepository
	eventRepo   EventRepository
	ticketRepo  TicketRepository
	environment string
	now         func() time.Time
}

// SeederServiceConfig holds configuration for the seeder service
type SeederServiceConfig struct {
	UserRepo    UserRepository
	EventRepo   EventRepository
	TicketRepo  TicketRepository
	Environment string
}

// NewSeederService creates a new seeder service
func NewSeederService(cfg SeederServiceConfig) *SeederService {
	return &SeederService{
		userRepo:    cfg.UserRepo,
		eventRepo:   cfg.EventRepo,
		ticketRepo:  cfg.TicketRepo,
		environment: cfg.Environment,
		now:         time.Now,
	}
}

func (r *SeedRequest) applyDefaults() {
	if r.Organizers <= 0 {
		r.Organizers = 3
	}
	if r.Attendees <= 0 {
		r.Attendees = 10
	}
	if r.Events <= 0 {
		r.Events = 12
	}
	if r.Purchases < 0 {
		r.Purchases = 0
	} else if r.Purchases == 0 {
		r.Purchases = 3
	}
	if r.Organizers+r.Attendees > maxSeedUsers {
		r.Attendees = maxSeedUsers - r.Organizers
	}
	if r.Organizers > maxSeedUsers {
		r.Organizers, r.Attendees = maxSeedUsers, 0
	}
	if r.Events > maxSeedEvents {
		r.Events = maxSeedEvents
	}
	if r.Purchases > model.MaxTicketsPerOrder {
		r.Purchases = model.MaxTicketsPerOrder
	}
	if r.Prefix == "" {
		r.Prefix = "seed_"
	}
}

// Seed creates organizers, attendees, events and ticket purchases. Seeding is
// refused in production.
func (s *SeederService) Seed(ctx context.Context, req SeedRequest) (*SeedResult, error) {
	if s.environment == "production" {
		return nil, ErrSeedingDisabled
	}
	start := time.Now()
	req.applyDefaults()

	faker := gofakeit.New(req.Seed)
	hash, err := hashPassword(SeedPassword)
	if err != nil {
		return nil, err
	}

	result := &SeedResult{Password: SeedPassword}

	organizers, err := s.seedUsers(ctx, faker, req.Prefix, hash, model.UserRoleOrganizer, req.Organizers)
	if err != nil {
		return nil, err
	}
	attendees, err := s.seedUsers(ctx, faker, req.Prefix, hash, model.UserRoleAttendee, req.Attendees)
	if err != nil {
		return nil, err
	}
	result.UserIDs = append(organizers, attendees...)
	result.Users = len(result.UserIDs)

	now := s.now().UTC()
	for i := 0; i < req.Events; i++ {
		event := fakeEvent(faker, organizers[i%len(organizers)], now)
		if err := s.eventRepo.Create(ctx, event); err != nil {
			return nil, fmt.Errorf("failed to seed event: %w", err)
		}
		result.EventIDs = append(result.EventIDs, event.ID)

		if len(attendees) == 0 || event.Status != model.EventStatusPublished || !event.IsUpcoming(now) {
			continue
		}
		for p := 0; p < req.Purchases; p++ {
			sold, err := s.seedPurchase(ctx, faker, event, attendees[faker.IntN(len(attendees))])
			if err != nil {
				return nil, err
			}
			result.Tickets += sold
		}
	}
	result.Events = len(result.EventIDs)
	result.Duration = time.Since(start).Milliseconds()

	slog.Info("seeded data",
		slog.Int("users", result.Users),
		slog.Int("events", result.Events),
		slog.Int("tickets", result.Tickets),
		slog.Int64("duration_ms", result.Duration),
	)
	return result, nil
}

func (s *SeederService) seedUsers(ctx context.Context, faker *gofakeit.Faker, prefix, hash string, role model.UserRole, count int) ([]string, error) {
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		first, last := faker.FirstName(), faker.LastName()
		phone := faker.Phone()
		user := &model.User{
			Email:       strings.ToLower(fmt.Sprintf("%s%s.%s.%s@example.com", prefix, first, last, faker.LetterN(6))),
			Hash:        &hash,
			FirstName:   first,
			LastName:    last,
			PhoneNumber: &phone,
			Role:        role,
			Status:      model.UserStatusActive,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to seed user: %w", err)
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}

func (s *SeederService) seedPurchase(ctx context.Context, faker *gofakeit.Faker, event *model.Event, userID string) (int, error) {
	idx := faker.IntN(len(event.TicketTiers))
	tier := event.TicketTiers[idx]
	quantity := faker.IntRange(1, 3)
	if tier.Remaining() < quantity {
		return 0, nil
	}

	tickets, err := s.ticketRepo.Purchase(ctx, model.TicketPurchase{
		EventID:       event.ID,
		UserID:        userID,
		TierIndex:     idx,
		Tier:          model.TierSnapshot{Name: tier.Name, Price: tier.Price},
		Quantity:      quantity,
		TransactionID: "seed_" + faker.LetterN(16),
	})
	if errors.Is(err, database.ErrCapacityExceeded) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to seed tickets: %w", err)
	}
	event.TicketTiers[idx].SoldCount += len(tickets)
	return len(tickets), nil
}

// fakeEvent builds an event; roughly one in five is in the past and completed
func fakeEvent(faker *gofakeit.Faker, organizerID string, now time.Time) *model.Event {
	category := model.EventCategories[faker.IntN(len(model.EventCategories))]

	date := faker.DateRange(now.Add(24*time.Hour), now.Add(180*24*time.Hour))
	status := model.EventStatusPublished
	switch roll := faker.IntN(10); {
	case roll < 2:
		date = faker.DateRange(now.Add(-90*24*time.Hour), now.Add(-24*time.Hour))
		status = model.EventStatusCompleted
	case roll == 2:
		status = model.EventStatusDraft
	}

	base := faker.Float64Range(10, 80)
	tiers := []model.TicketTier{
		{Name: "General Admission", Price: roundCents(base), Quantity: faker.IntRange(50, 300)},
		{Name: "VIP", Price: roundCents(base * 3), Quantity: faker.IntRange(5, 40), Description: faker.Sentence(8)},
	}

	return &model.Event{
		Title:       fmt.Sprintf("%s %s %s", capitalize(faker.Adjective()), capitalize(faker.Noun()), eventNoun(category)),
		Description: faker.Paragraph(2, 3, 12, "\n\n"),
		OrganizerID: organizerID,
		Date:        date.UTC().Truncate(time.Minute),
		Location: model.Location{
			Address: faker.Street(),
			City:    faker.City(),
			State:   faker.State(),
			Country: faker.Country(),
			Coordinates: &model.Coordinates{
				Lat: faker.Latitude(),
				Lng: faker.Longitude(),
			},
		},
		Category:    category,
		Images:      []model.EventImage{},
		TicketTiers: tiers,
		Status:      status,
		Tags:        []string{string(category), strings.ToLower(faker.Word())},
		Featured:    faker.IntN(5) == 0,
		Attendees:   []string{},
	}
}

func eventNoun(category model.EventCategory) string {
	switch category {
	case model.EventCategoryMusic:
		return "Festival"
	case model.EventCategorySports:
		return "Classic"
	case model.EventCategoryArts:
		return "Exhibition"
	case model.EventCategoryTechnology:
		return "Summit"
	case model.EventCategoryFood:
		return "Tasting"
	case model.EventCategoryBusiness:
		return "Forum"
	}
	return "Meetup"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func roundCents(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
