package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/tepihealth/ucsuploader/internal/auth"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testClaims() *auth.Claims {
	return &auth.Claims{
		Team:             "Ilemela HIV Team",
		TeamID:           "team-uuid-1",
		ProviderID:       "amina",
		LocationID:       "loc-uuid-1",
		Facility:         "Ilemela Health Centre",
		UserBaseEntityID: "be-1",
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, testClaims(), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	got, err := auth.ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.ProviderID != "amina" || got.Team != "Ilemela HIV Team" ||
		got.UserBaseEntityID != "be-1" || got.Facility != "Ilemela Health Centre" {
		t.Errorf("claims did not survive round trip: %+v", got)
	}
	if got.ExpiresAt == nil || got.IssuedAt == nil {
		t.Fatal("registered claims not set")
	}
	if d := got.ExpiresAt.Sub(got.IssuedAt.Time); d != time.Hour {
		t.Errorf("ttl: got %v, want %v", d, time.Hour)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, testClaims(), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := auth.ValidateToken([]byte("another-secret-entirely-32-bytes"), token); err == nil {
		t.Error("expected validation to fail with the wrong secret")
	}
}

func TestValidateToken_Tampered(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, testClaims(), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := auth.ValidateToken(testSecret, tampered); err == nil {
		t.Error("expected validation to fail for tampered payload")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, testClaims(), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := auth.ValidateToken(testSecret, token); err == nil {
		t.Error("expected validation to fail for expired token")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := auth.ValidateToken(testSecret, "not-a-token"); err == nil {
		t.Error("expected validation to fail for malformed input")
	}
}
