package entity

import (
	"context"
	"strings"
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleCustomer Role = "Customer"
	RoleAdmin    Role = "Admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleCustomer || r == RoleAdmin }

// User is the aggregate root for user domain
// Passwords are stored as bcrypt hashes in Password field. Opaque tokens are
// stored as SHA-256 digests, never in the clear.
type User struct {
	ID                     string
	Email                  string
	Password               string
	Name                   string
	Role                   Role
	IsEmailVerified        bool
	RefreshTokenHash       string
	PasswordResetTokenHash string
	PasswordResetExpiresAt *time.Time
	LastLoginAt            *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// PublicUser is the outward view of a user. Secrets never leave the service.
type PublicUser struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Role            Role       `json:"role"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// UserPatch is a partial update. Nil fields are left untouched.
type UserPatch struct {
	Name            *string
	Email           *string
	Password        *string // plain text, hashed by BeforeSaveUser
	Role            *Role
	IsEmailVerified *bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil && p.Role == nil && p.IsEmailVerified == nil
}

// Apply merges p into u and returns the new plain password, if any.
func (p UserPatch) Apply(u *User) (newPassword string) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsEmailVerified != nil {
		u.IsEmailVerified = *p.IsEmailVerified
	}
	if p.Password != nil {
		return *p.Password
	}
	return ""
}

// PasswordHasher hashes plain passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BeforeSaveUser runs on every create and update, before persisting.
// newPassword is the plain password when one was supplied, empty otherwise.
func BeforeSaveUser(ctx context.Context, u *User, newPassword string, hasher PasswordHasher) error {
	u.Email = NormalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	if newPassword != "" {
		hash, err := hasher.Hash(ctx, newPassword)
		if err != nil {
			return err
		}
		u.Password = hash
	}
	return nil
}
