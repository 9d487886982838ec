package helpers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
)

func testJWT() *JWTManager {
	return NewJWTManager(strings.Repeat("a", 32), strings.Repeat("r", 32), 15*time.Minute, 24*time.Hour)
}

func TestJWTPair(t *testing.T) {
	m := testJWT()
	p, err := m.GeneratePair("u-1", "Admin")
	require.NoError(t, err)
	assert.True(t, p.RefreshExpiresAt.After(p.AccessExpiresAt))

	c, err := m.ParseAccessToken(p.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UserID)
	assert.Equal(t, "u-1", c.Subject)
	assert.Equal(t, "Admin", c.Role)

	c, err = m.ParseRefreshToken(p.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UserID)

	again, err := m.GeneratePair("u-1", "Admin")
	require.NoError(t, err)
	assert.NotEqual(t, p.RefreshToken, again.RefreshToken)
}

func TestJWTRejects(t *testing.T) {
	m := testJWT()
	p, err := m.GeneratePair("u-1", "Customer")
	require.NoError(t, err)

	expired := NewJWTManager(strings.Repeat("a", 32), strings.Repeat("r", 32), -time.Minute, -time.Minute)
	old, _, err := expired.GenerateAccessToken("u-1", "Customer")
	require.NoError(t, err)

	other := NewJWTManager(strings.Repeat("x", 32), strings.Repeat("y", 32), time.Minute, time.Minute)
	forged, _, err := other.GenerateAccessToken("u-1", "Admin")
	require.NoError(t, err)

	tests := []struct {
		name  string
		parse func(string) (*Claims, error)
		token string
	}{
		{"refresh as access", m.ParseAccessToken, p.RefreshToken},
		{"access as refresh", m.ParseRefreshToken, p.AccessToken},
		{"expired", m.ParseAccessToken, old},
		{"foreign secret", m.ParseAccessToken, forged},
		{"garbage", m.ParseAccessToken, "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parse(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 2)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "Secret123!")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123!", hash)

	assert.NoError(t, h.Compare(ctx, hash, "Secret123!"))
	assert.ErrorIs(t, h.Compare(ctx, hash, "secret123!"), ErrPasswordMismatch)
	assert.Error(t, h.Compare(ctx, "not-a-hash", "Secret123!"))
}

func TestHasherRejectsOverlongPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 1)
	_, err := h.Hash(context.Background(), strings.Repeat("😀", 20))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	ae, ok := apperror.As(err)
	require.True(t, ok)
	require.Len(t, ae.Fields, 1)
	assert.Equal(t, "password", ae.Fields[0].Field)
}

func TestNewHasherBounds(t *testing.T) {
	h := NewHasher(99, 0)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
	assert.True(t, h.sem.TryAcquire(1))
	assert.False(t, h.sem.TryAcquire(1))
}

func TestTokens(t *testing.T) {
	a, err := GenToken(32)
	require.NoError(t, err)
	b, err := GenToken(32)
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)

	assert.Equal(t, HashToken(a), HashToken(a))
	assert.NotEqual(t, HashToken(a), HashToken(b))
	assert.Len(t, HashToken(a), 64)

	assert.Equal(t, "verify:email:abc", KeyEmailVerify("abc"))
	assert.Equal(t, "login:attempts:ann@example.com", KeyLoginAttempts("ann@example.com"))
	assert.Equal(t, "login:lock:ann@example.com", KeyLoginLock("ann@example.com"))
}

func TestCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewCookie("example.com", true)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	m.SetPair(c, TokenPair{
		AccessToken:      "at",
		AccessExpiresAt:  time.Now().Add(15 * time.Minute),
		RefreshToken:     "rt",
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
	})
	set := w.Result().Header.Values("Set-Cookie")
	require.Len(t, set, 2)
	assert.True(t, strings.HasPrefix(set[0], AccessCookie+"=at"))
	assert.True(t, strings.HasPrefix(set[1], RefreshCookie+"=rt"))
	for _, s := range set {
		assert.Contains(t, s, "HttpOnly")
		assert.Contains(t, s, "Secure")
		assert.Contains(t, s, "SameSite=Lax")
		assert.Contains(t, s, "Domain=example.com")
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	m.Clear(c)
	for _, s := range w.Result().Header.Values("Set-Cookie") {
		assert.Contains(t, s, "Max-Age=0")
	}
	assert.Equal(t, 0, maxAgeFrom(time.Now().Add(-time.Hour)))
}
