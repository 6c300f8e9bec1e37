package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/storage"
)

// ============================================================================
// In-memory user repository
// ============================================================================

type memUserRepo struct {
	mu         sync.Mutex
	seq        int
	users      map[string]*model.User
	createErr  error
	touched    map[string]time.Time
	deleted    []string
	lastFilter model.UserFilter
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:   make(map[string]*model.User),
		touched: make(map[string]time.Time),
	}
}

func (m *memUserRepo) add(u *model.User) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		m.seq++
		u.ID = fmt.Sprintf("user:%d", m.seq)
	}
	if u.Status == "" {
		u.Status = model.UserStatusActive
	}
	m.users[u.ID] = u
	return u
}

func (m *memUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	for _, u := range m.users {
		if u.Email == user.Email {
			m.mu.Unlock()
			return database.ErrDuplicate
		}
	}
	m.mu.Unlock()
	user.CreatedOn = time.Now()
	user.UpdatedOn = user.CreatedOn
	m.add(user)
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) UpdateProfile(ctx context.Context, id string, req *model.UpdateProfileRequest) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.PhoneNumber != nil {
		v := *req.PhoneNumber
		u.PhoneNumber = &v
	}
	if req.ProfileImage != nil {
		v := *req.ProfileImage
		u.ProfileImage = &v
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) UpdatePassword(ctx context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Hash = &hash
	}
	return nil
}

func (m *memUserRepo) SetStatus(ctx context.Context, id string, status model.UserStatus) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	u.Status = status
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[userID] = at
	return nil
}

func (m *memUserRepo) List(ctx context.Context, filter model.UserFilter) (*model.UserPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	page := &model.UserPage{}
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		page.Users = append(page.Users, u)
	}
	page.Total = len(page.Users)
	return page, nil
}

func (m *memUserRepo) DeleteCascade(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// ============================================================================
// In-memory event and ticket repositories
// ============================================================================

type memEventRepo struct {
	mu        sync.Mutex
	seq       int
	events    map[string]*model.Event
	deleted   []string
	updates   int
	createErr error
	// beforeUpdate runs inside Update before the sold-count check
	beforeUpdate func(e *model.Event)
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[string]*model.Event)}
}

func copyEvent(e *model.Event) *model.Event {
	cp := *e
	cp.TicketTiers = append([]model.TicketTier(nil), e.TicketTiers...)
	cp.Images = append([]model.EventImage(nil), e.Images...)
	cp.Attendees = append([]string(nil), e.Attendees...)
	cp.Tags = append([]string(nil), e.Tags...)
	return &cp
}

func (m *memEventRepo) add(e *model.Event) *model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		m.seq++
		e.ID = fmt.Sprintf("event:%d", m.seq)
	}
	m.events[e.ID] = copyEvent(e)
	return e
}

func (m *memEventRepo) Create(ctx context.Context, event *model.Event) error {
	if m.createErr != nil {
		return m.createErr
	}
	event.CreatedOn = time.Now()
	event.UpdatedOn = event.CreatedOn
	m.add(event)
	return nil
}

func (m *memEventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		return copyEvent(e), nil
	}
	return nil, nil
}

func (m *memEventRepo) sorted(keep func(*model.Event) bool) []*model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Event
	for _, e := range m.events {
		if keep(e) {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (m *memEventRepo) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return m.sorted(func(e *model.Event) bool {
		if filter.Category != "" && e.Category != filter.Category {
			return false
		}
		if filter.Status != "" && e.Status != filter.Status {
			return false
		}
		return filter.Search == "" || strings.Contains(strings.ToLower(e.Title), strings.ToLower(filter.Search))
	}), nil
}

func (m *memEventRepo) ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error) {
	return m.sorted(func(e *model.Event) bool { return e.OrganizerID == organizerID }), nil
}

func (m *memEventRepo) ListAll(ctx context.Context) ([]*model.Event, error) {
	return m.sorted(func(*model.Event) bool { return true }), nil
}

func (m *memEventRepo) Update(ctx context.Context, event *model.Event, expectedSold []int) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	current, ok := m.events[event.ID]
	if !ok {
		return nil, nil
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(current)
	}
	if len(expectedSold) != len(current.TicketTiers) {
		return nil, database.ErrStateChanged
	}
	for i, sold := range expectedSold {
		if current.TicketTiers[i].SoldCount != sold {
			return nil, database.ErrStateChanged
		}
	}
	m.events[event.ID] = copyEvent(event)
	return copyEvent(event), nil
}

func (m *memEventRepo) SetStatus(ctx context.Context, id string, status model.EventStatus) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	e.Status = status
	return copyEvent(e), nil
}

func (m *memEventRepo) AppendImages(ctx context.Context, id string, images []model.EventImage) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	e.Images = append(e.Images, images...)
	return copyEvent(e), nil
}

func (m *memEventRepo) DeleteCascade(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.events, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memEventRepo) CompletePastEvents(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Status == model.EventStatusPublished && !e.Date.After(now) {
			e.Status = model.EventStatusCompleted
			n++
		}
	}
	return n, nil
}

// memTicketRepo shares state with an event repository so purchases and
// releases move tier sold counts like the database transaction does
type memTicketRepo struct {
	events  *memEventRepo
	mu      sync.Mutex
	seq     int
	tickets map[string]*model.Ticket
}

func newMemTicketRepo(events *memEventRepo) *memTicketRepo {
	return &memTicketRepo{events: events, tickets: make(map[string]*model.Ticket)}
}

func (m *memTicketRepo) Purchase(ctx context.Context, p model.TicketPurchase) ([]*model.Ticket, error) {
	m.events.mu.Lock()
	event, ok := m.events.events[p.EventID]
	if !ok || event.Status != model.EventStatusPublished || !event.Date.After(time.Now()) ||
		p.TierIndex >= len(event.TicketTiers) || event.TicketTiers[p.TierIndex].Name != p.Tier.Name ||
		event.TicketTiers[p.TierIndex].SoldCount+p.Quantity > event.TicketTiers[p.TierIndex].Quantity {
		m.events.mu.Unlock()
		return nil, database.ErrCapacityExceeded
	}
	event.TicketTiers[p.TierIndex].SoldCount += p.Quantity
	event.Attendees = append(event.Attendees, p.UserID)
	m.events.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Ticket, 0, p.Quantity)
	for i := 0; i < p.Quantity; i++ {
		m.seq++
		t := &model.Ticket{
			ID:            fmt.Sprintf("ticket:%d", m.seq),
			EventID:       p.EventID,
			UserID:        p.UserID,
			Tier:          p.Tier,
			PurchaseDate:  time.Now(),
			Status:        model.TicketStatusValid,
			TransactionID: p.TransactionID,
			CreatedOn:     time.Now(),
		}
		m.tickets[t.ID] = t
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memTicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tickets[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *memTicketRepo) ListByUser(ctx context.Context, userID string) ([]*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Ticket
	for _, t := range m.tickets {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTicketRepo) Release(ctx context.Context, ticket *model.Ticket, tierIndex int, status model.TicketStatus) error {
	m.mu.Lock()
	t, ok := m.tickets[ticket.ID]
	if !ok || t.Status != ticket.Status {
		m.mu.Unlock()
		return database.ErrStateChanged
	}
	t.Status = status
	m.mu.Unlock()

	if tierIndex >= 0 {
		m.events.mu.Lock()
		if e, ok := m.events.events[ticket.EventID]; ok && e.TicketTiers[tierIndex].SoldCount > 0 {
			e.TicketTiers[tierIndex].SoldCount--
		}
		m.events.mu.Unlock()
	}
	return nil
}

func (m *memTicketRepo) Reserve(ctx context.Context, ticket *model.Ticket, tierIndex int, status model.TicketStatus) error {
	m.events.mu.Lock()
	defer m.events.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticket.ID]
	if !ok || t.Status != ticket.Status {
		return database.ErrStateChanged
	}
	e, ok := m.events.events[ticket.EventID]
	if !ok || tierIndex >= len(e.TicketTiers) || e.TicketTiers[tierIndex].Name != ticket.Tier.Name ||
		e.TicketTiers[tierIndex].SoldCount+1 > e.TicketTiers[tierIndex].Quantity {
		return database.ErrCapacityExceeded
	}
	e.TicketTiers[tierIndex].SoldCount++
	t.Status = status
	return nil
}

func (m *memTicketRepo) SetStatus(ctx context.Context, id string, from, to model.TicketStatus) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.Status != from {
		return nil, database.ErrStateChanged
	}
	t.Status = to
	cp := *t
	return &cp, nil
}

func (m *memTicketRepo) CountByEvent(ctx context.Context, eventID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickets {
		if t.EventID == eventID {
			n++
		}
	}
	return n, nil
}

// ============================================================================
// Image store, payments and publisher
// ============================================================================

type memImageStore struct {
	mu     sync.Mutex
	images map[string]*model.StoredImage
	putErr error
}

func newMemImageStore() *memImageStore {
	return &memImageStore{images: make(map[string]*model.StoredImage)}
}

func (m *memImageStore) Put(ctx context.Context, img *model.StoredImage) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[img.ID] = img
	return nil
}

func (m *memImageStore) Get(ctx context.Context, id string) (*model.StoredImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if img, ok := m.images[id]; ok {
		return img, nil
	}
	return nil, storage.ErrImageNotFound
}

func (m *memImageStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.images, id)
	return nil
}

func (m *memImageStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}

type mockPayments struct {
	mu       sync.Mutex
	charges  []ChargeRequest
	voided   []string
	chargeFn func(req ChargeRequest) (string, error)
}

func (m *mockPayments) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	m.mu.Lock()
	m.charges = append(m.charges, req)
	n := len(m.charges)
	m.mu.Unlock()
	if m.chargeFn != nil {
		return m.chargeFn(req)
	}
	return fmt.Sprintf("txn_test_%d", n), nil
}

func (m *mockPayments) Void(ctx context.Context, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voided = append(m.voided, txID)
	return nil
}

type published struct {
	topic   string
	payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

// ============================================================================
// Fixtures
// ============================================================================

var (
	organizerActor = Actor{UserID: "user:org", Role: model.UserRoleOrganizer}
	otherOrganizer = Actor{UserID: "user:other", Role: model.UserRoleOrganizer}
	adminActor     = Actor{UserID: "user:admin", Role: model.UserRoleAdmin}
	attendeeActor  = Actor{UserID: "user:fan", Role: model.UserRoleAttendee}
)

// pngBytes is a minimal PNG header; enough for content sniffing
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func publishedEvent(organizerID string) *model.Event {
	return &model.Event{
		Title:       "Summer Jam",
		Description: "Open air concert",
		OrganizerID: organizerID,
		Date:        time.Now().Add(14 * 24 * time.Hour).UTC(),
		Location:    model.Location{Address: "1 Park Ave", City: "Springfield"},
		Category:    model.EventCategoryMusic,
		Images:      []model.EventImage{},
		TicketTiers: []model.TicketTier{
			{Name: "General", Price: 25, Quantity: 100},
			{Name: "VIP", Price: 120, Quantity: 2},
		},
		Status:    model.EventStatusPublished,
		Attendees: []string{},
	}
}
