package middleware

import "github.com/gin-gonic/gin"

// Gin context keys shared by middleware and handlers.
const (
	CtxRequestID = "request_id"
	CtxRealIP    = "real_ip"
	CtxUserID    = "userID"
	CtxUserRole  = "userRole"
)

// UserID is the authenticated caller, empty on public routes.
func UserID(c *gin.Context) string { return c.GetString(CtxUserID) }

// Role is the authenticated caller's role.
func Role(c *gin.Context) string { return c.GetString(CtxUserRole) }

// ClientIP prefers the address resolved by RealIP.
func ClientIP(c *gin.Context) string {
	if ip := c.GetString(CtxRealIP); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
