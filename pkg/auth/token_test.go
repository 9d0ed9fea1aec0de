package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
)

func TestMintAndParseSessionToken(t *testing.T) {
	cfg := config.SessionConfig{Secret: "secret", TTL: time.Hour}
	now := time.Now().UTC()

	token, err := MintSessionToken(cfg, now, "sess-1")
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}

	sid, err := ParseSessionToken(cfg, token)
	if err != nil {
		t.Fatalf("parse session token: %v", err)
	}
	if sid != "sess-1" {
		t.Fatalf("expected sess-1, got %q", sid)
	}
}

func TestParseSessionTokenRejectsOtherSecret(t *testing.T) {
	token, err := MintSessionToken(config.SessionConfig{Secret: "secret"}, time.Now(), "sess-1")
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}
	if _, err := ParseSessionToken(config.SessionConfig{Secret: "other"}, token); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}
}

func TestParseSessionTokenRejectsExpired(t *testing.T) {
	cfg := config.SessionConfig{Secret: "secret", TTL: time.Minute}
	token, err := MintSessionToken(cfg, time.Now().Add(-time.Hour), "sess-1")
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}
	if _, err := ParseSessionToken(cfg, token); err == nil {
		t.Fatal("expected expired session token to fail")
	}
}

func TestMintSessionTokenRequiresSecret(t *testing.T) {
	if _, err := MintSessionToken(config.SessionConfig{}, time.Now(), "sess-1"); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestCustomerTokenExpired(t *testing.T) {
	now := time.Now()
	sign := func(exp time.Time) string {
		claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return token
	}

	if !CustomerTokenExpired(sign(now.Add(-time.Minute)), now) {
		t.Fatal("expected past exp to be expired")
	}
	if CustomerTokenExpired(sign(now.Add(time.Hour)), now) {
		t.Fatal("expected future exp to be valid")
	}
	if CustomerTokenExpired("opaque-token", now) {
		t.Fatal("opaque tokens are not judged locally")
	}
}
