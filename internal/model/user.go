package model

import (
	"strings"
	"time"
)

// UserRole represents the role of a user in the system
type UserRole string

const (
	UserRoleAttendee  UserRole = "attendee"  // Default role, buys tickets
	UserRoleOrganizer UserRole = "organizer" // Creates and manages events
	UserRoleAdmin     UserRole = "admin"     // Moderates users and events
)

// IsValid reports whether r is a known role
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAttendee, UserRoleOrganizer, UserRoleAdmin:
		return true
	}
	return false
}

// UserStatus represents the moderation state of an account
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

// User represents a user account
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Hash         *string    `json:"-"` // Never expose password hash
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	PhoneNumber  *string    `json:"phone_number,omitempty"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	ProfileImage *string    `json:"profile_image,omitempty"`
	LastActive   *time.Time `json:"last_active,omitempty"`
	CreatedOn    time.Time  `json:"created_on"`
	UpdatedOn    time.Time  `json:"updated_on"`
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// CanOrganize returns true if the user may create and manage events
func (u *User) CanOrganize() bool {
	return u.Role == UserRoleOrganizer || u.Role == UserRoleAdmin
}

// IsActive returns true unless the account is suspended or banned.
// Records created before status existed count as active.
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserStatusActive
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Summary returns the public projection embedded in events and tickets
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
	}
}

// UserSummary is the subset of a user shown next to events
type UserSummary struct {
	ID           string  `json:"id"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `json:"email,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// SignupRequest is the payload for POST /api/auth/signup
type SignupRequest struct {
	Email     string   `json:"email" validate:"required,email,max=254"`
	Password  string   `json:"password" validate:"required"`
	FirstName string   `json:"first_name" validate:"required,max=50"`
	LastName  string   `json:"last_name" validate:"required,max=50"`
	Role      UserRole `json:"role,omitempty" validate:"omitempty,oneof=attendee organizer"`
}

// LoginRequest is the payload for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest holds the profile fields a user may change
type UpdateProfileRequest struct {
	FirstName    *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=50"`
	LastName     *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=50"`
	PhoneNumber  *string `json:"phone_number,omitempty" validate:"omitempty,max=32"`
	ProfileImage *string `json:"profile_image,omitempty" validate:"omitempty,url"`
}

// IsEmpty reports whether the request changes nothing
func (r *UpdateProfileRequest) IsEmpty() bool {
	return r.FirstName == nil && r.LastName == nil && r.PhoneNumber == nil && r.ProfileImage == nil
}

// ChangePasswordRequest is the payload for PUT /api/users/change-password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// UpdateUserStatusRequest is the admin payload for moderating an account
type UpdateUserStatusRequest struct {
	Status UserStatus `json:"status" validate:"required,oneof=active suspended banned"`
}

// UserFilter narrows the admin user listing
type UserFilter struct {
	Search   string
	Role     UserRole
	Status   UserStatus
	Page     int
	PageSize int
}

// Admin user listing page sizes
const (
	DefaultUserPageSize = 20
	MaxUserPageSize     = 100
)

// WithPaging returns the filter with page and page size clamped to
// their allowed ranges
func (f UserFilter) WithPaging() UserFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultUserPageSize
	}
	if f.PageSize > MaxUserPageSize {
		f.PageSize = MaxUserPageSize
	}
	return f
}

// Offset returns the row offset for the requested page (pages start at 1)
func (f UserFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// UserPage is a page of users plus the unpaged total
type UserPage struct {
	Users []*User
	Total int
}
