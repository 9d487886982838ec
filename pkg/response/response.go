package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/anaqa-user-service/pkg/validation"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the success envelope.
type APIResponse[T any] struct {
	Status   string `json:"status"`
	Data     T      `json:"data"`
	Metadata any    `json:"metadata,omitempty"`
}

// ListMetadata accompanies paginated data.
type ListMetadata struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ErrorBody is the single error envelope written by the error middleware.
type ErrorBody struct {
	Status    string                  `json:"status"`
	Message   string                  `json:"message"`
	Errors    []validation.FieldError `json:"errors,omitempty"`
	Context   map[string]any          `json:"context,omitempty"`
	Stack     string                  `json:"stack,omitempty"`
	RequestID string                  `json:"requestId,omitempty"`
}

// Success writes data in the success envelope.
func Success[T any](c *gin.Context, status int, data T, metadata any) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, APIResponse[T]{Status: StatusSuccess, Data: data, Metadata: metadata})
}

func OK[T any](c *gin.Context, data T) { Success(c, http.StatusOK, data, nil) }

func Created[T any](c *gin.Context, data T) { Success(c, http.StatusCreated, data, nil) }

// List writes one page of items with its pagination metadata.
func List[T any](c *gin.Context, items []T, meta ListMetadata) {
	if items == nil {
		items = []T{}
	}
	Success(c, http.StatusOK, items, meta)
}

// Error aborts the request with an error envelope.
func Error(c *gin.Context, status int, body ErrorBody) {
	body.Status = StatusError
	if body.RequestID == "" {
		body.RequestID = c.GetString("request_id")
	}
	c.AbortWithStatusJSON(status, body)
}
