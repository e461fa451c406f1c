package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/iliyamo/book-delivery/internal/model"
	"github.com/iliyamo/book-delivery/internal/repository"
	"github.com/iliyamo/book-delivery/internal/utils"
)

// UserStore is the user persistence the identity component needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// RefreshTokenStore keeps at most one refresh token per user.
type RefreshTokenStore interface {
	Replace(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteByUserID(ctx context.Context, userID uint64) error
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email    string
	Username string
	FullName string
	Password string
	Role     model.Role
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	User             model.UserSummary `json:"user"`
	AccessToken      string            `json:"access_token"`
	AccessExpiresAt  time.Time         `json:"access_expires_at"`
	RefreshToken     string            `json:"refresh_token"`
	RefreshExpiresAt time.Time         `json:"refresh_expires_at"`
}

// AuthService registers users, authenticates credentials and manages the
// access/refresh token lifecycle.
type AuthService struct {
	users      UserStore
	tokens     RefreshTokenStore
	jwt        *TokenManager
	refreshTTL time.Duration
	bcryptCost int
	log        *slog.Logger
	now        func() time.Time
}

// NewAuthService wires the identity component.
func NewAuthService(users UserStore, tokens RefreshTokenStore, jwt *TokenManager, refreshTTL time.Duration, bcryptCost int, log *slog.Logger) *AuthService {
	if users == nil || tokens == nil || jwt == nil {
		panic("nil dependency passed to NewAuthService")
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		jwt:        jwt,
		refreshTTL: refreshTTL,
		bcryptCost: bcryptCost,
		log:        log,
		now:        time.Now,
	}
}

// Register creates a user with a bcrypt-hashed password.  An empty role
// defaults to CUSTOMER; ADMIN may be requested by any caller.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	if in.Role == "" {
		in.Role = model.RoleCustomer
	}
	in.Role = model.Role(strings.ToUpper(string(in.Role)))
	if err := validateRegistration(&in); err != nil {
		return model.User{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return model.User{}, invalidf("password must be at most 72 bytes")
		}
		return model.User{}, err
	}
	u := model.User{
		Email:        in.Email,
		Username:     in.Username,
		FullName:     in.FullName,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	s.log.Info("user registered", slog.Uint64("user_id", u.ID), slog.String("role", string(u.Role)))
	return u, nil
}

// CreateCustomer lets an admin create a CUSTOMER account.
func (s *AuthService) CreateCustomer(ctx context.Context, p model.Principal, in RegisterInput) (model.User, error) {
	if !p.IsAdmin() {
		return model.User{}, ErrAccessDenied
	}
	in.Role = model.RoleCustomer
	return s.Register(ctx, in)
}

// Login verifies the password and issues an access token plus a refresh
// token that replaces any previous one for the user.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return TokenPair{}, ErrAuthenticationFailed
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrAuthenticationFailed
		}
		return TokenPair{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return TokenPair{}, ErrAuthenticationFailed
	}
	access, err := s.jwt.Issue(u)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.NewRefreshToken(s.now(), s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Replace(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		User:             u.Summary(),
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}

// RefreshToken exchanges a stored, unexpired refresh token for a new access
// token.  The refresh token itself is reused until it expires.
func (s *AuthService) RefreshToken(ctx context.Context, raw string) (TokenPair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPair{}, ErrRefreshTokenNotFound
	}
	hash := utils.HashRefreshRaw(raw)
	rt, err := s.tokens.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrRefreshTokenNotFound
		}
		return TokenPair{}, err
	}
	if rt.Expired(s.now()) {
		if err := s.tokens.DeleteByHash(ctx, hash); err != nil {
			s.log.Warn("delete expired refresh token", slog.Uint64("user_id", rt.UserID), slog.String("error", err.Error()))
		}
		return TokenPair{}, ErrRefreshTokenExpired
	}
	u, err := s.users.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, &NotFoundError{Resource: ResourceUser, ID: formatID(rt.UserID)}
		}
		return TokenPair{}, err
	}
	access, err := s.jwt.Issue(u)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		User:             u.Summary(),
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     raw,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

// Logout validates the access token and deletes the caller's refresh token.
// The access token itself stays valid until it expires.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	p, err := s.jwt.Validate(accessToken)
	if err != nil {
		return ErrInvalidToken
	}
	return s.tokens.DeleteByUserID(ctx, p.ID)
}

// Validate resolves an access token to a principal.
func (s *AuthService) Validate(accessToken string) (model.Principal, error) {
	return s.jwt.Validate(accessToken)
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func validateRegistration(in *RegisterInput) error {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		return invalidf("email is not a valid address")
	}
	if in.Username == "" {
		return invalidf("username is required")
	}
	if in.FullName == "" {
		return invalidf("full name is required")
	}
	if len(in.Password) < 8 {
		return invalidf("password must be at least 8 characters")
	}
	if !in.Role.Valid() {
		return invalidf("role must be ADMIN or CUSTOMER")
	}
	return nil
}
