package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/model"
)

// UserRepository handles user data access
type UserRepository struct {
	db database.Database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user. A taken email returns database.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	role := user.Role
	if role == "" {
		role = model.UserRoleAttendee
	}
	status := user.Status
	if status == "" {
		status = model.UserStatusActive
	}

	query := `
		CREATE user CONTENT {
			email: $email,
			hash: IF $hash != NULL THEN $hash ELSE NONE END,
			first_name: $first_name,
			last_name: $last_name,
			phone_number: IF $phone_number != NULL THEN $phone_number ELSE NONE END,
			profile_image: IF $profile_image != NULL THEN $profile_image ELSE NONE END,
			role: $role,
			status: $status,
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	vars := map[string]interface{}{
		"email":         user.Email,
		"hash":          ptrToNull(user.Hash),
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"phone_number":  ptrToNull(user.PhoneNumber),
		"profile_image": ptrToNull(user.ProfileImage),
		"role":          role,
		"status":        status,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: email already exists", database.ErrDuplicate)
		}
		return err
	}

	rows := resultRecords(result, 0)
	if len(rows) == 0 {
		return fmt.Errorf("%w: create user returned no record", database.ErrQuery)
	}

	created := parseUser(rows[0])
	user.ID = created.ID
	user.Role = created.Role
	user.Status = created.Status
	user.CreatedOn = created.CreatedOn
	user.UpdatedOn = created.UpdatedOn
	return nil
}

// GetByID retrieves a user by ID. Returns nil, nil when not found.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	rid, ok := recordID("user", id)
	if !ok {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": rid})
}

// GetByEmail retrieves a user by email. Returns nil, nil when not found.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT * FROM user WHERE email = $email LIMIT 1`, map[string]interface{}{"email": email})
}

func (r *UserRepository) getOne(ctx context.Context, query string, vars map[string]interface{}) (*model.User, error) {
	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}

	data, err := asRecord(result)
	if err != nil {
		return nil, err
	}
	return parseUser(data), nil
}

// UpdateProfile applies the non-nil fields of req and returns the updated user.
// Returns nil, nil when the user does not exist.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, req *model.UpdateProfileRequest) (*model.User, error) {
	rid, ok := recordID("user", id)
	if !ok {
		return nil, nil
	}

	sets := []string{"updated_on = time::now()"}
	vars := map[string]interface{}{"id": rid}

	if req.FirstName != nil {
		sets = append(sets, "first_name = $first_name")
		vars["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		sets = append(sets, "last_name = $last_name")
		vars["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.PhoneNumber != nil {
		sets = append(sets, "phone_number = IF $phone_number != \"\" THEN $phone_number ELSE NONE END")
		vars["phone_number"] = strings.TrimSpace(*req.PhoneNumber)
	}
	if req.ProfileImage != nil {
		sets = append(sets, "profile_image = IF $profile_image != \"\" THEN $profile_image ELSE NONE END")
		vars["profile_image"] = *req.ProfileImage
	}

	query := fmt.Sprintf("UPDATE type::record($id) SET %s RETURN AFTER", strings.Join(sets, ", "))
	return r.getOne(ctx, query, vars)
}

// UpdatePassword updates a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	query := `UPDATE type::record($id) SET hash = $hash, updated_on = time::now()`
	vars := map[string]interface{}{
		"id":   userID,
		"hash": hash,
	}

	return r.db.Execute(ctx, query, vars)
}

// SetStatus changes the moderation status. Returns nil, nil when not found.
func (r *UserRepository) SetStatus(ctx context.Context, id string, status model.UserStatus) (*model.User, error) {
	rid, ok := recordID("user", id)
	if !ok {
		return nil, nil
	}
	query := `UPDATE type::record($id) SET status = $status, updated_on = time::now() RETURN AFTER`
	return r.getOne(ctx, query, map[string]interface{}{"id": rid, "status": status})
}

// TouchLastActive records the time of the user's latest activity
func (r *UserRepository) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE type::record($id) SET last_active = <datetime>$at`
	vars := map[string]interface{}{
		"id": userID,
		"at": rfc3339(at),
	}

	return r.db.Execute(ctx, query, vars)
}

// List returns users newest first, filtered and paged
func (r *UserRepository) List(ctx context.Context, filter model.UserFilter) (*model.UserPage, error) {
	conditions := []string{"true"}
	vars := map[string]interface{}{
		"limit": filter.PageSize,
		"start": filter.Offset(),
	}

	if s := strings.ToLower(strings.TrimSpace(filter.Search)); s != "" {
		conditions = append(conditions, `(string::lowercase(email) CONTAINS $search
			OR string::lowercase(first_name) CONTAINS $search
			OR string::lowercase(last_name) CONTAINS $search)`)
		vars["search"] = s
	}
	if filter.Role != "" {
		conditions = append(conditions, "role = $role")
		vars["role"] = filter.Role
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = $status")
		vars["status"] = filter.Status
	}

	where := strings.Join(conditions, " AND ")
	query := fmt.Sprintf(`
		SELECT * FROM user WHERE %[1]s ORDER BY created_on DESC LIMIT $limit START $start;
		SELECT count() AS count FROM user WHERE %[1]s GROUP ALL;
	`, where)

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := resultRecords(result, 0)
	page := &model.UserPage{Users: make([]*model.User, 0, len(rows))}
	for _, row := range rows {
		page.Users = append(page.Users, parseUser(row))
	}
	if counts := resultRecords(result, 1); len(counts) > 0 {
		page.Total = getInt(counts[0], "count")
	}
	return page, nil
}

// DeleteCascade removes a user together with their tickets, refresh tokens,
// organized events and the tickets of those events. Seats the user held on
// other organizers' events go back to their tiers and the user leaves those
// attendee lists. All writes run atomically.
func (r *UserRepository) DeleteCascade(ctx context.Context, id string) error {
	rid, ok := recordID("user", id)
	if !ok {
		return database.ErrNotFound
	}
	vars := map[string]interface{}{"user": rid}

	seats, err := r.heldSeats(ctx, rid)
	if err != nil {
		return err
	}

	batch := database.NewAtomicBatch()
	for _, seat := range seats {
		tier := fmt.Sprintf("ticket_tiers[%d]", seat.tierIndex)
		batch.Add(fmt.Sprintf(`
			UPDATE type::record($event) SET %[1]s.sold_count = math::max([%[1]s.sold_count - $seats, 0])
			WHERE %[1]s.name = $tier_name`, tier),
			map[string]interface{}{"event": seat.eventID, "tier_name": seat.tier, "seats": seat.count})
	}

	return batch.
		Add(`DELETE ticket WHERE user = type::record($user) OR event.organizer = type::record($user)`, vars).
		Add(`DELETE event WHERE organizer = type::record($user)`, vars).
		Add(`UPDATE event SET attendees = array::complement(attendees, [type::record($user)]) WHERE attendees CONTAINS type::record($user)`, vars).
		Add(`DELETE refresh_token WHERE user = type::record($user)`, vars).
		Add(`DELETE type::record($user)`, vars).
		Execute(ctx, r.db)
}

// heldSeat is a count of seat-holding tickets in one tier of an event
type heldSeat struct {
	eventID   string
	tier      string
	tierIndex int
	count     int
}

// heldSeats groups the valid and used tickets a user holds on events they
// do not organize by event and tier
func (r *UserRepository) heldSeats(ctx context.Context, rid string) ([]heldSeat, error) {
	query := `
		SELECT event, tier.name AS tier, count() AS seats FROM ticket
		WHERE user = type::record($user) AND status IN $seats AND event.organizer != type::record($user)
		GROUP BY event, tier;
		SELECT id, ticket_tiers.name AS tiers FROM event
		WHERE id IN (SELECT VALUE event FROM ticket WHERE user = type::record($user) AND status IN $seats);
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"user": rid, "seats": seatStatuses})
	if err != nil {
		return nil, err
	}

	tiers := make(map[string][]string)
	for _, row := range resultRecords(result, 1) {
		tiers[convertSurrealID(row["id"])] = getStringSlice(row, "tiers")
	}

	var seats []heldSeat
	for _, row := range resultRecords(result, 0) {
		seat := heldSeat{
			eventID:   convertSurrealID(row["event"]),
			tier:      getString(row, "tier"),
			tierIndex: -1,
			count:     getInt(row, "seats"),
		}
		for i, name := range tiers[seat.eventID] {
			if name == seat.tier {
				seat.tierIndex = i
				break
			}
		}
		if seat.tierIndex >= 0 && seat.count > 0 {
			seats = append(seats, seat)
		}
	}
	return seats, nil
}

func parseUser(data map[string]interface{}) *model.User {
	user := &model.User{
		ID:           convertSurrealID(data["id"]),
		Email:        getString(data, "email"),
		Hash:         getStringPtr(data, "hash"),
		FirstName:    getString(data, "first_name"),
		LastName:     getString(data, "last_name"),
		PhoneNumber:  getStringPtr(data, "phone_number"),
		Role:         model.UserRole(getString(data, "role")),
		Status:       model.UserStatus(getString(data, "status")),
		ProfileImage: getStringPtr(data, "profile_image"),
		LastActive:   getTime(data, "last_active"),
		CreatedOn:    getTimeValue(data, "created_on"),
		UpdatedOn:    getTimeValue(data, "updated_on"),
	}
	if user.Status == "" {
		user.Status = model.UserStatusActive
	}
	return user
}

func parseUserSummary(data map[string]interface{}) *model.UserSummary {
	if data == nil {
		return nil
	}
	return &model.UserSummary{
		ID:           convertSurrealID(data["id"]),
		FirstName:    getString(data, "first_name"),
		LastName:     getString(data, "last_name"),
		Email:        getString(data, "email"),
		ProfileImage: getStringPtr(data, "profile_image"),
	}
}

// isUniqueConstraintError checks if an error is a unique constraint violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), database.ErrDuplicate.Error()) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "unique") ||
		strings.Contains(errStr, "already contains") ||
		strings.Contains(errStr, "already exists")
}

// ptrToNull converts a nil pointer to a NULL variable; queries map NULL to NONE
func ptrToNull(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
