package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/book-delivery/internal/model"
	"github.com/iliyamo/book-delivery/internal/utils"
)

func newAuthFixture(t *testing.T) (*AuthService, *memUsers, *memTokens) {
	t.Helper()
	users, tokens := newMemUsers(), newMemTokens()
	jwt := NewTokenManager(testSecret, "book-delivery", 15*time.Minute)
	return NewAuthService(users, tokens, jwt, 24*time.Hour, bcrypt.MinCost, discardLogger()), users, tokens
}

func registerInput(email string) RegisterInput {
	return RegisterInput{Email: email, Username: "reader", FullName: "Avid Reader", Password: "s3cret-pass"}
}

func TestRegisterHashesPasswordAndDefaultsRole(t *testing.T) {
	s, users, _ := newAuthFixture(t)
	u, err := s.Register(context.Background(), registerInput("  Reader@Example.com "))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	stored, _ := users.GetByID(context.Background(), u.ID)
	if stored.Email != "reader@example.com" {
		t.Fatalf("email not normalized: %q", stored.Email)
	}
	if stored.Role != model.RoleCustomer {
		t.Fatalf("role = %s, want CUSTOMER", stored.Role)
	}
	if stored.PasswordHash == "s3cret-pass" || !utils.VerifyPassword(stored.PasswordHash, "s3cret-pass") {
		t.Fatalf("password not hashed correctly")
	}
}

func TestRegisterAcceptsRequestedRole(t *testing.T) {
	s, users, _ := newAuthFixture(t)
	in := registerInput("boss@x.com")
	in.Role = "admin"
	u, err := s.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if stored, _ := users.GetByID(context.Background(), u.ID); stored.Role != model.RoleAdmin {
		t.Fatalf("role = %s, want ADMIN", stored.Role)
	}

	in = registerInput("owner@x.com")
	in.Role = "OWNER"
	if _, err := s.Register(context.Background(), in); KindOf(err) != KindInvalid {
		t.Fatalf("unknown role: err = %v, want invalid", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s, users, _ := newAuthFixture(t)
	first, err := s.Register(context.Background(), registerInput("a@x.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	before, _ := users.GetByID(context.Background(), first.ID)

	in := registerInput("A@X.com")
	in.Password = "another-password"
	if _, err := s.Register(context.Background(), in); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	after, _ := users.GetByID(context.Background(), first.ID)
	if after.PasswordHash != before.PasswordHash {
		t.Fatalf("first registration was modified")
	}
}

func TestRegisterValidation(t *testing.T) {
	s, _, _ := newAuthFixture(t)
	bad := map[string]func(*RegisterInput){
		"email":    func(in *RegisterInput) { in.Email = "not-an-email" },
		"username": func(in *RegisterInput) { in.Username = " " },
		"fullname": func(in *RegisterInput) { in.FullName = "" },
		"password": func(in *RegisterInput) { in.Password = "short" },
		"role":     func(in *RegisterInput) { in.Role = "OWNER" },
	}
	for name, mutate := range bad {
		in := registerInput("v@x.com")
		mutate(&in)
		if _, err := s.Register(context.Background(), in); KindOf(err) != KindInvalid {
			t.Errorf("%s: expected invalid input, got %v", name, err)
		}
	}
}

func TestLoginIssuesTokens(t *testing.T) {
	s, _, tokens := newAuthFixture(t)
	u, err := s.Register(context.Background(), registerInput("a@x.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	pair, err := s.Login(context.Background(), "a@x.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	p, err := s.Validate(pair.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if p.ID != u.ID || p.Email != "a@x.com" || p.Role != model.RoleCustomer {
		t.Fatalf("unexpected principal %+v", p)
	}
	stored, err := tokens.FindByHash(context.Background(), utils.HashRefreshRaw(pair.RefreshToken))
	if err != nil {
		t.Fatalf("refresh token not stored by hash: %v", err)
	}
	if stored.UserID != u.ID {
		t.Fatalf("refresh token owner = %d", stored.UserID)
	}

	// a second login replaces the row instead of adding one
	if _, err := s.Login(context.Background(), "a@x.com", "s3cret-pass"); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if tokens.count() != 1 {
		t.Fatalf("refresh rows = %d, want 1", tokens.count())
	}
}

func TestLoginFailures(t *testing.T) {
	s, _, tokens := newAuthFixture(t)
	if _, err := s.Register(context.Background(), registerInput("a@x.com")); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := s.Login(context.Background(), "a@x.com", "wrongpass"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("wrong password: expected ErrAuthenticationFailed, got %v", err)
	}
	if _, err := s.Login(context.Background(), "nobody@x.com", "s3cret-pass"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("unknown email: expected ErrAuthenticationFailed, got %v", err)
	}
	if tokens.count() != 0 {
		t.Fatalf("failed login stored a refresh token")
	}
}

func TestRefreshTokenReusesRefreshToken(t *testing.T) {
	s, _, _ := newAuthFixture(t)
	if _, err := s.Register(context.Background(), registerInput("a@x.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := s.Login(context.Background(), "a@x.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	next, err := s.RefreshToken(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken != pair.RefreshToken {
		t.Fatalf("refresh token should be reused until expiry")
	}
	if !next.RefreshExpiresAt.Equal(pair.RefreshExpiresAt) {
		t.Fatalf("refresh expiry changed")
	}
	if _, err := s.Validate(next.AccessToken); err != nil {
		t.Fatalf("new access token invalid: %v", err)
	}
}

func TestRefreshTokenExpiredOrUnknown(t *testing.T) {
	s, _, tokens := newAuthFixture(t)
	if _, err := s.Register(context.Background(), registerInput("a@x.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := s.Login(context.Background(), "a@x.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := s.RefreshToken(context.Background(), "deadbeef"); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("unknown: expected ErrRefreshTokenNotFound, got %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, err := s.RefreshToken(context.Background(), pair.RefreshToken); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expired: expected ErrRefreshTokenExpired, got %v", err)
	}
	if tokens.count() != 0 {
		t.Fatalf("expired refresh token was not deleted")
	}
}

func TestLogoutDeletesRefreshToken(t *testing.T) {
	s, _, tokens := newAuthFixture(t)
	if _, err := s.Register(context.Background(), registerInput("a@x.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := s.Login(context.Background(), "a@x.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := s.Logout(context.Background(), "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := s.Logout(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if tokens.count() != 0 {
		t.Fatalf("refresh token survived logout")
	}
	if _, err := s.RefreshToken(context.Background(), pair.RefreshToken); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound after logout, got %v", err)
	}
	// access tokens are stateless and stay valid until they expire
	if _, err := s.Validate(pair.AccessToken); err != nil {
		t.Fatalf("access token rejected after logout: %v", err)
	}
}

func TestCreateCustomerRequiresAdmin(t *testing.T) {
	s, _, _ := newAuthFixture(t)

	if _, err := s.CreateCustomer(context.Background(), customer(1), registerInput("c@x.com")); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	in := registerInput("c@x.com")
	in.Role = model.RoleAdmin
	u, err := s.CreateCustomer(context.Background(), admin(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != model.RoleCustomer {
		t.Fatalf("role = %s, want CUSTOMER", u.Role)
	}
}
