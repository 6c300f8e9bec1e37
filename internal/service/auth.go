package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/validation"
	"github.com/forgo/marquee/api/pkg/jwt"
)

const (
	// bcrypt cost factor (10-14 recommended for production)
	bcryptCost = 12

	// Password constraints
	minPasswordLength = 6
	maxPasswordLength = 128
)

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, req *model.UpdateProfileRequest) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
	SetStatus(ctx context.Context, id string, status model.UserStatus) (*model.User, error)
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
	List(ctx context.Context, filter model.UserFilter) (*model.UserPage, error)
	DeleteCascade(ctx context.Context, id string) error
}

// AuthService handles authentication operations
type AuthService struct {
	userRepo     UserRepository
	tokenService *TokenService
	activity     *ActivityTracker
}

// AuthServiceConfig holds configuration for the auth service
type AuthServiceConfig struct {
	UserRepo     UserRepository
	TokenService *TokenService
	Activity     *ActivityTracker // optional
}

// NewAuthService creates a new auth service
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		userRepo:     cfg.UserRepo,
		tokenService: cfg.TokenService,
		activity:     cfg.Activity,
	}
}

// AuthResult is returned by signup and login
type AuthResult struct {
	User  *model.User `json:"user"`
	Token *TokenPair  `json:"token"`
}

// Signup creates a new attendee or organizer account and signs it in
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (*AuthResult, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = model.UserRoleAttendee
	}
	if req.Role != model.UserRoleAttendee && req.Role != model.UserRoleOrganizer {
		return nil, ErrInvalidRole
	}
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:     req.Email,
		Hash:      &hash,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		Status:    model.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent signup; the unique index decides
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	tokenPair, err := s.tokenService.GenerateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Token: tokenPair}, nil
}

// Login authenticates a user with email/password
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Hash == nil || *user.Hash == "" {
		return nil, ErrInvalidCredentials
	}
	if !checkPassword(req.Password, *user.Hash) {
		return nil, ErrInvalidCredentials
	}

	// Checked after the password so status is never revealed to guessers
	if !user.IsActive() {
		return nil, ErrAccountDisabled
	}

	tokenPair, err := s.tokenService.GenerateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.activity != nil {
		s.activity.Record(ctx, user.ID)
	}

	return &AuthResult{User: user, Token: tokenPair}, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RefreshTokens validates a refresh token and issues new tokens
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := s.tokenService.Lookup(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}
	if !user.IsActive() {
		return nil, ErrAccountDisabled
	}

	return s.tokenService.RefreshTokens(ctx, refreshToken, user)
}

// Logout revokes the user's refresh tokens
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.tokenService.RevokeAllUserTokens(ctx, userID)
}

// ValidateAccessToken validates an access token and returns the claims
func (s *AuthService) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return s.tokenService.ValidateAccessToken(token)
}

// ChangePassword replaces the password after verifying the current one and
// signs the user out everywhere
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req model.ChangePasswordRequest) error {
	if err := validation.Struct(&req); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if user.Hash == nil || !checkPassword(req.CurrentPassword, *user.Hash) {
		return ErrInvalidCurrentPassword
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return err
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	return s.tokenService.RevokeAllUserTokens(ctx, userID)
}

// Helper functions

// HashPassword hashes a password with the service bcrypt cost
func HashPassword(password string) (string, error) {
	return hashPassword(password)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordLength {
		return ErrPasswordTooLong
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		return ErrPasswordNeedsDigit
	}
	return nil
}
