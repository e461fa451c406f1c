package service

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/book-delivery/internal/model"
)

// accessTokenType is the "typ" claim carried by access tokens.
const accessTokenType = "Bearer"

// AccessClaims is the payload of an access token.  It never carries the
// password hash or any other secret.
type AccessClaims struct {
	Type         string   `json:"typ"`
	Roles        []string `json:"roles"`
	ID           uint64   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	UserFullName string   `json:"userFullName"`
	jwt.RegisteredClaims
}

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenManager signs and verifies HS256 access tokens.  It is built once
// from configuration and is safe for concurrent use.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenManager returns a TokenManager for the given secret, issuer and TTL.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	m := &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	return m
}

// Issue mints an access token for u.
func (m *TokenManager) Issue(u model.User) (AccessToken, error) {
	now := m.now().UTC()
	exp := now.Add(m.ttl)
	claims := AccessClaims{
		Type:         accessTokenType,
		Roles:        []string{string(u.Role)},
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		UserFullName: u.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ExpiresAt: exp}, nil
}

// Validate verifies signature, algorithm, issuer and expiry and rebuilds the
// principal.  An expired token yields ErrExpiredToken; every other failure
// yields ErrInvalidToken.
func (m *TokenManager) Validate(raw string) (model.Principal, error) {
	var claims AccessClaims
	tok, err := m.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Principal{}, ErrExpiredToken
		}
		return model.Principal{}, ErrInvalidToken
	}
	if !tok.Valid || claims.Type != accessTokenType || claims.ID == 0 || claims.Subject == "" || len(claims.Roles) != 1 {
		return model.Principal{}, ErrInvalidToken
	}
	role := model.Role(claims.Roles[0])
	if !role.Valid() {
		return model.Principal{}, ErrInvalidToken
	}
	return model.Principal{ID: claims.ID, Email: claims.Subject, Role: role}, nil
}

// TTL returns the configured access token lifetime.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }
