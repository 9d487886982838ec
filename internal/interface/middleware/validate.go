package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/validation"
)

const (
	ctxBody   = "validated.body"
	ctxQuery  = "validated.query"
	ctxParams = "validated.params"
)

// Shapes names the request structs a route expects. Each constructor returns
// a fresh pointer to a struct with binding tags.
type Shapes struct {
	Body   func() any
	Query  func() any
	Params func() any
}

// Shape returns a constructor for *T.
func Shape[T any]() func() any {
	return func() any { return new(T) }
}

// Normalizer is implemented by shapes that coerce their values after
// validation (trimming, defaults, clamping).
type Normalizer interface {
	Normalize()
}

// Validate binds and validates body, query then params. The first failing
// shape aborts with a ValidationError listing all of its violations. Valid
// shapes are normalized and stored for Body, Query and Params.
func Validate(s Shapes) gin.HandlerFunc {
	return func(c *gin.Context) {
		steps := []struct {
			key  string
			mk   func() any
			bind func(any) error
		}{
			{ctxBody, s.Body, c.ShouldBindJSON},
			{ctxQuery, s.Query, c.ShouldBindQuery},
			{ctxParams, s.Params, c.ShouldBindUri},
		}
		for _, st := range steps {
			if st.mk == nil {
				continue
			}
			v := st.mk()
			if err := st.bind(v); err != nil {
				Fail(c, apperror.Validation("Validation failed", validation.ToDetails(err)...))
				return
			}
			if n, ok := v.(Normalizer); ok {
				n.Normalize()
			}
			c.Set(st.key, v)
		}
		c.Next()
	}
}

func Body[T any](c *gin.Context) *T   { return validated[T](c, ctxBody) }
func Query[T any](c *gin.Context) *T  { return validated[T](c, ctxQuery) }
func Params[T any](c *gin.Context) *T { return validated[T](c, ctxParams) }

// validated returns the stored shape, or a zero value when the route did not
// declare one.
func validated[T any](c *gin.Context, key string) *T {
	if v, ok := c.Get(key); ok {
		if t, ok := v.(*T); ok {
			return t
		}
	}
	return new(T)
}

// PageQuery is the common pagination query. Out-of-range values are clamped,
// not rejected.
type PageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func (q *PageQuery) Normalize() {
	if q.Limit == 0 {
		q.Limit = validation.DefaultLimit
	}
	q.Page, q.Limit = validation.NormalizePage(q.Page, q.Limit)
}
