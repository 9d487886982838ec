package application

import (
	"context"
	"io"
	"time"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/search"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	entity.PasswordHasher
	Compare(ctx context.Context, hash, plain string) error
}

// TokenIssuer signs and parses the access/refresh pair.
type TokenIssuer interface {
	GeneratePair(userID, role string) (helpers.TokenPair, error)
	ParseRefreshToken(token string) (*helpers.Claims, error)
}

// LoginGuard tracks failed logins per email.
type LoginGuard interface {
	Locked(ctx context.Context, email string) (time.Duration, error)
	// Fail records a failed attempt and reports whether the email is now locked.
	Fail(ctx context.Context, email string) (bool, error)
	Reset(ctx context.Context, email string) error
}

// TokenStore holds single-use tokens keyed by digest.
type TokenStore interface {
	Put(ctx context.Context, digest, userID string, ttl time.Duration) error
	Take(ctx context.Context, digest string) (userID string, ok bool, err error)
}

// Publisher puts a JSON message on a queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// UserIndexer is the searchable projection of users.
type UserIndexer interface {
	Index(ctx context.Context, u entity.PublicUser) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, q string, page, limit int) (search.SearchResult, error)
}

// AvatarUploader stores an avatar image and returns its public URL.
type AvatarUploader interface {
	Upload(ctx context.Context, userID, filename, contentType string, r io.Reader) (string, error)
}

// RequestMeta is client information echoed into security emails.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}
