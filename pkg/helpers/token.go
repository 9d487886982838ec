package helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// Redis keys

// KeyEmailVerify is the Redis key holding the user id for an email verification token digest.
func KeyEmailVerify(digest string) string {
	return "verify:email:" + digest
}

// KeyLoginAttempts counts failed logins for an email.
func KeyLoginAttempts(email string) string {
	return "login:attempts:" + email
}

// KeyLoginLock marks an email as locked out.
func KeyLoginLock(email string) string {
	return "login:lock:" + email
}

// GenToken returns a random URL-safe hex token of n bytes of entropy.
func GenToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the SHA-256 hex digest under which opaque tokens are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
