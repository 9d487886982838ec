package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/response"
)

const internalMessage = "Internal server error"

// ErrorHandler is the single exit point for failed requests. Handlers and
// middleware report failures with c.Error; this middleware logs every one
// and writes the last as the response. Panics are recovered and answered as
// non-operational errors.
func ErrorHandler(log logrus.FieldLogger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := apperror.Internal(fmt.Errorf("panic: %v", r))
				err.Stack = string(debug.Stack())
				c.Errors = c.Errors[:0]
				_ = c.Error(err)
				respond(c, log, production)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 {
			respond(c, log, production)
		}
	}
}

func respond(c *gin.Context, log logrus.FieldLogger, production bool) {
	ae := apperror.From(c.Errors.Last().Err)

	fields := logrus.Fields{
		"kind":       ae.Kind.String(),
		"status":     ae.StatusCode,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"request_id": c.GetString(CtxRequestID),
	}
	if ae.Cause != nil {
		fields["cause"] = ae.Cause.Error()
	}
	if len(ae.Context) > 0 {
		fields["context"] = ae.Context
	}
	entry := log.WithFields(fields)
	if ae.Operational {
		entry.Warn(ae.Message)
	} else {
		entry.WithField("stack", ae.Stack).Error(ae.Message)
	}

	if c.Writer.Written() {
		return
	}

	body := response.ErrorBody{Message: ae.Message, Errors: ae.Fields, Context: ae.Context}
	if !ae.Operational {
		body.Context = nil
		if production {
			body.Message = internalMessage
		}
	}
	if !production {
		body.Stack = ae.Stack
	}
	response.Error(c, ae.StatusCode, body)
}

// NoRoute answers unknown routes with a NotFound error.
func NoRoute(c *gin.Context) {
	_ = c.Error(apperror.New(apperror.KindNotFound, fmt.Sprintf("Route %s %s not found", c.Request.Method, c.Request.URL.Path)))
	c.Abort()
}

// Fail reports err through the error middleware and stops the chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
