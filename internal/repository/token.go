package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/service"
)

// revokedRetention is how long revoked tokens are kept for reuse detection
const revokedRetention = 7 * 24 * time.Hour

// TokenRepository handles refresh token data access
type TokenRepository struct {
	db database.Database
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db database.Database) *TokenRepository {
	return &TokenRepository{db: db}
}

// CreateRefreshToken stores a new refresh token
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token *service.RefreshToken) error {
	query := `
		CREATE refresh_token CONTENT {
			user: type::record($user),
			token_hash: $token_hash,
			expires_at: <datetime>$expires_at,
			created_at: time::now(),
			revoked: false
		}
	`

	vars := map[string]interface{}{
		"user":       token.UserID,
		"token_hash": token.TokenHash,
		"expires_at": rfc3339(token.ExpiresAt),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	rows := resultRecords(result, 0)
	if len(rows) == 0 {
		return fmt.Errorf("%w: create refresh token returned no record", database.ErrQuery)
	}

	created := parseRefreshToken(rows[0])
	token.ID = created.ID
	token.CreatedAt = created.CreatedAt
	return nil
}

// GetRefreshTokenByHash retrieves a refresh token by its hash.
// Returns nil, nil when not found.
func (r *TokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*service.RefreshToken, error) {
	query := `SELECT * FROM refresh_token WHERE token_hash = $hash LIMIT 1`

	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"hash": hash})
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
	return parseRefreshToken(data), nil
}

// RevokeRefreshToken marks a refresh token as revoked
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, hash string) error {
	query := `UPDATE refresh_token SET revoked = true WHERE token_hash = $hash`
	return r.db.Execute(ctx, query, map[string]interface{}{"hash": hash})
}

// RevokeAllUserTokens revokes all refresh tokens for a user
func (r *TokenRepository) RevokeAllUserTokens(ctx context.Context, userID string) error {
	query := `UPDATE refresh_token SET revoked = true WHERE user = type::record($user) AND revoked = false`
	return r.db.Execute(ctx, query, map[string]interface{}{"user": userID})
}

// DeleteExpiredTokens removes all expired refresh tokens
func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context) error {
	return r.db.Execute(ctx, `DELETE refresh_token WHERE expires_at < time::now()`, nil)
}

// CleanupRevokedTokens removes tokens revoked more than a week ago
func (r *TokenRepository) CleanupRevokedTokens(ctx context.Context) error {
	query := `DELETE refresh_token WHERE revoked = true AND created_at < <datetime>$cutoff`
	vars := map[string]interface{}{"cutoff": rfc3339(time.Now().Add(-revokedRetention))}

	return r.db.Execute(ctx, query, vars)
}

func parseRefreshToken(data map[string]interface{}) *service.RefreshToken {
	return &service.RefreshToken{
		ID:        convertSurrealID(data["id"]),
		UserID:    convertSurrealID(data["user"]),
		TokenHash: getString(data, "token_hash"),
		ExpiresAt: getTimeValue(data, "expires_at"),
		CreatedAt: getTimeValue(data, "created_at"),
		Revoked:   getBool(data, "revoked"),
	}
}
