package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"
)

func newTestManager(t *testing.T) (*Manager, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`
		CREATE TABLE refresh_tokens (
			token      TEXT PRIMARY KEY,
			user_id    INTEGER NOT NULL,
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return NewManager(db, "test-secret"), db
}

func TestIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	pair, err := manager.Issue(ctx, 42)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("Expected both tokens to be set")
	}

	userID, err := manager.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != 42 {
		t.Errorf("Expected user 42, got %d", userID)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	manager, _ := newTestManager(t)
	other := NewManager(nil, "other-secret")

	ctx := context.Background()
	pair, err := manager.Issue(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("WrongSecret", func(t *testing.T) {
		if _, err := other.Verify(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := manager.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("RotatesToken", func(t *testing.T) {
		manager, _ := newTestManager(t)

		pair, err := manager.Issue(ctx, 7)
		if err != nil {
			t.Fatal(err)
		}

		renewed, err := manager.Refresh(ctx, pair.RefreshToken)
		if err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if renewed.RefreshToken == pair.RefreshToken {
			t.Error("Refresh must issue a new refresh token")
		}

		// The old token was consumed.
		if _, err := manager.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken on reuse, got %v", err)
		}
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		manager, db := newTestManager(t)

		if _, err := db.Exec(`
			INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
			VALUES (?, ?, ?, ?)`,
			"stale", 7, time.Now().UTC().Add(-time.Hour), time.Now().UTC(),
		); err != nil {
			t.Fatal(err)
		}

		if _, err := manager.Refresh(ctx, "stale"); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("Expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("UnknownToken", func(t *testing.T) {
		manager, _ := newTestManager(t)
		if _, err := manager.Refresh(ctx, "never-issued"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	manager, db := newTestManager(t)

	if _, err := manager.Issue(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Issue(ctx, 7); err != nil {
		t.Fatal(err)
	}

	if err := manager.Revoke(ctx, 7); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM refresh_tokens WHERE user_id = 7`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Expected no refresh tokens after revoke, got %d", n)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	manager, _ := newTestManager(t)

	pair, err := manager.Issue(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}

	router := gin.New()
	router.GET("/api/users/:userId/ping", Middleware(manager), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserID(c)})
	})

	request := func(target, token string) int {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("ValidTokenMatchingPath", func(t *testing.T) {
		if code := request("/api/users/42/ping", pair.AccessToken); code != http.StatusOK {
			t.Errorf("Expected 200, got %d", code)
		}
	})

	t.Run("MissingToken", func(t *testing.T) {
		if code := request("/api/users/42/ping", ""); code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", code)
		}
	})

	t.Run("PathUserMismatch", func(t *testing.T) {
		if code := request("/api/users/43/ping", pair.AccessToken); code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", code)
		}
	})

	t.Run("MangledToken", func(t *testing.T) {
		if code := request("/api/users/42/ping", "junk"); code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", code)
		}
	})
}
