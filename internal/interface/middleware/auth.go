package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

// Gateway headers trusted when token auth is disabled.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// AccessTokenParser validates access tokens.
type AccessTokenParser interface {
	ParseAccessToken(token string) (*helpers.Claims, error)
}

// Auth resolves the caller and sets userID and userRole in the Gin context.
// The access token is read from the Authorization bearer header, then from
// the access_token cookie. With a nil parser the service sits behind an
// authenticating gateway and trusts X-User-ID / X-User-Role instead.
func Auth(tokens AccessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
			if uid == "" {
				Fail(c, apperror.Unauthorized("Missing user identity"))
				return
			}
			role := strings.TrimSpace(c.GetHeader(HeaderUserRole))
			if role == "" {
				role = "Customer"
			}
			c.Set(CtxUserID, uid)
			c.Set(CtxUserRole, role)
			c.Next()
			return
		}

		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(helpers.AccessCookie)
		}
		if token == "" {
			Fail(c, apperror.Unauthorized("Missing access token"))
			return
		}
		claims, err := tokens.ParseAccessToken(token)
		if err != nil {
			Fail(c, apperror.Unauthorized("Invalid access token"))
			return
		}
		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUserRole, claims.Role)
		c.Next()
	}
}

func bearer(h string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireRole lets through callers whose role is one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		Fail(c, apperror.Forbidden("Insufficient permissions"))
	}
}
