package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/book-delivery/internal/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testUser() model.User {
	return model.User{ID: 7, Email: "reader@example.com", Username: "reader", FullName: "Avid Reader", Role: model.RoleCustomer}
}

func TestIssueAndValidate(t *testing.T) {
	m := NewTokenManager(testSecret, "book-delivery", 15*time.Minute)
	tok, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if strings.Count(tok.Token, ".") != 2 {
		t.Fatalf("not a compact JWS: %q", tok.Token)
	}
	p, err := m.Validate(tok.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if p.ID != 7 || p.Email != "reader@example.com" || p.Role != model.RoleCustomer {
		t.Fatalf("unexpected principal %+v", p)
	}
	if d := time.Until(tok.ExpiresAt); d <= 0 || d > 15*time.Minute {
		t.Fatalf("unexpected expiry %v", tok.ExpiresAt)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	m := NewTokenManager(testSecret, "book-delivery", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	m.now = time.Now
	if _, err := m.Validate(tok.Token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	m := NewTokenManager(testSecret, "book-delivery", time.Minute)

	otherSecret := NewTokenManager("ffffffffffffffffffffffffffffffff", "book-delivery", time.Minute)
	otherIssuer := NewTokenManager(testSecret, "someone-else", time.Minute)

	for name, issuer := range map[string]*TokenManager{"secret": otherSecret, "issuer": otherIssuer} {
		tok, err := issuer.Issue(testUser())
		if err != nil {
			t.Fatalf("%s: issue: %v", name, err)
		}
		if _, err := m.Validate(tok.Token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}

	if _, err := m.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsUnsignedToken(t *testing.T) {
	m := NewTokenManager(testSecret, "book-delivery", time.Minute)
	now := time.Now()
	claims := AccessClaims{
		Type:  accessTokenType,
		Roles: []string{"ADMIN"},
		ID:    1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "book-delivery",
			Subject:   "evil@example.com",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Validate(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsWrongTypeOrRole(t *testing.T) {
	m := NewTokenManager(testSecret, "book-delivery", time.Minute)
	now := time.Now()
	base := jwt.RegisteredClaims{
		Issuer:    "book-delivery",
		Subject:   "reader@example.com",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	cases := map[string]AccessClaims{
		"refresh typ":  {Type: "Refresh", Roles: []string{"CUSTOMER"}, ID: 7, RegisteredClaims: base},
		"unknown role": {Type: accessTokenType, Roles: []string{"OWNER"}, ID: 7, RegisteredClaims: base},
		"two roles":    {Type: accessTokenType, Roles: []string{"ADMIN", "CUSTOMER"}, ID: 7, RegisteredClaims: base},
		"no id":        {Type: accessTokenType, Roles: []string{"CUSTOMER"}, RegisteredClaims: base},
	}
	for name, claims := range cases {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("%s: sign: %v", name, err)
		}
		if _, err := m.Validate(raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}
