package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
	"github.com/noah-isme/seatwatch/pkg/middleware/requestid"
)

// Envelope is the body of every JSON ops API response.
type Envelope struct {
	Data       interface{}        `json:"data,omitempty"`
	Error      *appErrors.Error   `json:"error,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Meta       *Meta              `json:"meta,omitempty"`
}

// Meta carries request correlation so operators can match a response to
// the access log line.
type Meta struct {
	RequestID string `json:"request_id"`
}

func meta(c *gin.Context) *Meta {
	id := requestid.Value(c)
	if id == "" {
		return nil
	}
	return &Meta{RequestID: id}
}

// JSON sends a success response. Catalog state changes every cycle, so
// nothing is cacheable.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{Data: data, Pagination: pagination, Meta: meta(c)})
}

// Accepted acknowledges work handed to the scheduler.
func Accepted(c *gin.Context, data interface{}) {
	JSON(c, http.StatusAccepted, data, nil)
}

// Error sends an error response. Untyped errors surface as internal errors
// and their cause stays out of the body.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(appErr.Status, Envelope{Error: appErr, Meta: meta(c)})
}
