package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Manager issues short-lived signed access tokens and rotates long-lived
// refresh tokens stored in the database.
type Manager struct {
	db     *sql.DB
	secret []byte
}

func NewManager(db *sql.DB, secret string) *Manager {
	return &Manager{db: db, secret: []byte(secret)}
}

// Issue creates a fresh token pair for the user and persists the refresh
// token.
func (m *Manager) Issue(ctx context.Context, userID int64) (*TokenPair, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(accessTokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := uuid.NewString()
	if _, err := m.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		refresh, userID, now.Add(refreshTokenTTL), now,
	); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The used token is
// deleted first, so every refresh token works exactly once.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var userID int64
	var expiresAt time.Time
	err := m.db.QueryRowContext(ctx, `
		SELECT user_id, expires_at FROM refresh_tokens WHERE token = ?`,
		refreshToken,
	).Scan(&userID, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}

	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token = ?`, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	if time.Now().UTC().After(expiresAt) {
		return nil, ErrTokenExpired
	}

	return m.Issue(ctx, userID)
}

// Revoke invalidates all refresh tokens of a user, e.g. on logout.
func (m *Manager) Revoke(ctx context.Context, userID int64) error {
	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}

// Verify parses and validates an access token and returns the user id it
// was issued for.
func (m *Manager) Verify(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return m.secret, nil
		})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	return userID, nil
}
