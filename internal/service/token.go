package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/pkg/jwt"
)

// RefreshToken represents a stored refresh token
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `json:"revoked"`
}

// TokenRepository defines the interface for refresh token storage
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, hash string) error
	RevokeAllUserTokens(ctx context.Context, userID string) error
	DeleteExpiredTokens(ctx context.Context) error
	CleanupRevokedTokens(ctx context.Context) error
}

// TokenService handles JWT and refresh token operations
type TokenService struct {
	jwtService      *jwt.Service
	tokenRepo       TokenRepository
	refreshDuration time.Duration
}

// TokenServiceConfig holds configuration for the token service
type TokenServiceConfig struct {
	JWTService      *jwt.Service
	TokenRepo       TokenRepository
	RefreshDuration time.Duration // Default: 30 days
}

// NewTokenService creates a new token service
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	if cfg.RefreshDuration == 0 {
		cfg.RefreshDuration = 30 * 24 * time.Hour
	}

	return &TokenService{
		jwtService:      cfg.JWTService,
		tokenRepo:       cfg.TokenRepo,
		refreshDuration: cfg.RefreshDuration,
	}
}

// TokenPair represents an access token and refresh token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// GenerateTokenPair creates a new access token and refresh token for a user
func (s *TokenService) GenerateTokenPair(ctx context.Context, user *model.User) (*TokenPair, error) {
	accessToken, err := s.jwtService.Sign(jwt.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
	if err != nil {
		return nil, err
	}

	// Refresh tokens are opaque; only their hash is stored
	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	storedToken := &RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: now.Add(s.refreshDuration),
		CreatedAt: now,
	}
	if err := s.tokenRepo.CreateRefreshToken(ctx, storedToken); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwtService.GetExpiration().Seconds()),
	}, nil
}

// Lookup returns the stored record for a presented refresh token
func (s *TokenService) Lookup(ctx context.Context, refreshToken string) (*RefreshToken, error) {
	stored, err := s.tokenRepo.GetRefreshTokenByHash(ctx, hashToken(refreshToken))
	if err != nil || stored == nil {
		return nil, ErrInvalidRefreshToken
	}
	return stored, nil
}

// RefreshTokens validates a refresh token and issues new tokens.
// Tokens are single use: the presented token is revoked and a new pair issued.
func (s *TokenService) RefreshTokens(ctx context.Context, refreshToken string, user *model.User) (*TokenPair, error) {
	stored, err := s.Lookup(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if stored.Revoked {
		// Reuse of a rotated token: revoke the whole family
		_ = s.tokenRepo.RevokeAllUserTokens(ctx, stored.UserID)
		return nil, ErrRefreshTokenRevoked
	}

	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	if err := s.tokenRepo.RevokeRefreshToken(ctx, stored.TokenHash); err != nil {
		return nil, err
	}

	return s.GenerateTokenPair(ctx, user)
}

// ValidateAccessToken validates an access token and returns the claims
func (s *TokenService) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return s.jwtService.Validate(token)
}

// RevokeAllUserTokens revokes all refresh tokens for a user (logout from all devices)
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	return s.tokenRepo.RevokeAllUserTokens(ctx, userID)
}

// Cleanup deletes expired tokens and revoked tokens past their retention
func (s *TokenService) Cleanup(ctx context.Context) error {
	if err := s.tokenRepo.DeleteExpiredTokens(ctx); err != nil {
		return err
	}
	return s.tokenRepo.CleanupRevokedTokens(ctx)
}

// generateRefreshToken creates a cryptographically secure random token
func generateRefreshToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken creates a SHA-256 hash of the token for storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
