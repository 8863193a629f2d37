package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret-key-for-tests-only", time.Hour)

	token, err := manager.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected non-empty token")
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
	}
}

func TestJWTValidationFailures(t *testing.T) {
	manager := NewJWTManager("test-secret-key-for-tests-only", time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		if _, err := manager.Validate("not.a.token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("a-completely-different-secret", time.Hour)
		token, err := other.Generate("user-123")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewJWTManager("test-secret-key-for-tests-only", -time.Minute)
		token, err := expired.Generate("user-123")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}
