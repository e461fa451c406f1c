package model

import "time"

// Role is the authorization role assigned to a user at creation time.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleCustomer }

// User represents an application user record as stored in the `users`
// table.  The role is fixed at registration.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, lower-cased email address.
//  Username     – display handle.
//  FullName     – full name used in token claims and order summaries.
//  PasswordHash – bcrypt hashed password; never serialized.
//  Role         – ADMIN or CUSTOMER.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Username     string    // users.username
	FullName     string    // users.full_name
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
}

// Summary returns the public view of the user embedded in order responses.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Username: u.Username, FullName: u.FullName}
}

// UserSummary is the owner information attached to an order.
type UserSummary struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// RefreshToken models the single row in `refresh_tokens` a user may hold.
// Only the SHA-256 hash of the opaque token is stored.
type RefreshToken struct {
	UserID    uint64    // refresh_tokens.user_id (unique)
	TokenHash string    // refresh_tokens.token_hash
	ExpiresAt time.Time // refresh_tokens.expires_at
}

// Expired reports whether the token is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// Principal is the authenticated identity reconstructed from a validated
// access token.  It is passed explicitly to every protected operation.
type Principal struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// IsCustomer reports whether the principal holds the CUSTOMER role.
func (p Principal) IsCustomer() bool { return p.Role == RoleCustomer }
