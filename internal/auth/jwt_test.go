package auth

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{
		UserID: "user-1",
		Role:   "astrologer",
		Email:  "astro@example.com",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "astrologer" || claims.Email != "astro@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: "user-1", Role: "user"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("other-secret", "issuer", token); err == nil {
		t.Fatalf("expected parse error with wrong secret")
	}
}

func TestParseTokenRejectsWrongIssuer(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: "user-1", Role: "user"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "someone-else", token); err == nil {
		t.Fatalf("expected parse error with wrong issuer")
	}
}

func TestCapabilitiesFor(t *testing.T) {
	if caps := CapabilitiesFor("user"); !caps.StartCalls || caps.ManageUsers {
		t.Fatalf("unexpected user capabilities: %+v", caps)
	}
	if caps := CapabilitiesFor("astrologer"); !caps.TogglePresence || caps.StartCalls {
		t.Fatalf("unexpected astrologer capabilities: %+v", caps)
	}
	if caps := CapabilitiesFor("admin"); !caps.ManageUsers {
		t.Fatalf("unexpected admin capabilities: %+v", caps)
	}
	if caps := CapabilitiesFor(""); caps != (Capabilities{}) {
		t.Fatalf("expected empty capabilities for unknown role")
	}
}
