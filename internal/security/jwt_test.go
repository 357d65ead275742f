package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "abcdefghijklmnopqrstuvwxyz123456"

func TestSignAndParseAccessToken(t *testing.T) {
	m := NewJWTManager("iss", "aud", testSecret)
	raw, err := m.SignAccessToken(42, "sess-1", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := m.ParseAccessToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SessionID != "sess-1" {
		t.Fatalf("expected sid sess-1, got %q", claims.SessionID)
	}
	uid, err := claims.UserID()
	if err != nil || uid != 42 {
		t.Fatalf("expected user 42, got %d err=%v", uid, err)
	}
}

func TestParseAccessTokenRejections(t *testing.T) {
	m := NewJWTManager("iss", "aud", testSecret)
	expired, _ := m.SignAccessToken(1, "s", -time.Minute)
	otherAudience, _ := NewJWTManager("iss", "other", testSecret).SignAccessToken(1, "s", time.Minute)
	otherSecret, _ := NewJWTManager("iss", "aud", strings.Repeat("x", 32)).SignAccessToken(1, "s", time.Minute)
	noSID, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "iss",
			Subject:   "1",
			Audience:  []string{"aud"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(testSecret))

	cases := map[string]string{
		"expired":        expired,
		"other audience": otherAudience,
		"other secret":   otherSecret,
		"no session id":  noSID,
		"garbage":        "not.a.token",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := m.ParseAccessToken(raw); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestSignAccessTokenRequiresSession(t *testing.T) {
	if _, err := NewJWTManager("iss", "aud", testSecret).SignAccessToken(1, "", time.Minute); err == nil {
		t.Fatal("expected error without session id")
	}
}

func TestClaimsUserIDRejectsBadSubject(t *testing.T) {
	for _, sub := range []string{"", "0", "abc", "-1"} {
		c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
		if _, err := c.UserID(); err == nil {
			t.Fatalf("expected error for subject %q", sub)
		}
	}
}
