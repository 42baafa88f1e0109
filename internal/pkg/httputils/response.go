// Package httputils provides HTTP response helpers.
package httputils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/pkg/errors"
)

// ErrResponse is the error body returned to clients.
type ErrResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WriteResponse writes the response to the client.
// Errors are mapped through the error code system so clients always see a
// stable {code, message} body; success writes the data as-is.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		errno := errors.FromError(err)
		c.JSON(errno.HTTPStatus(), ErrResponse{
			Code:    errno.Code,
			Message: errno.MessageEN,
		})
		return
	}

	c.JSON(http.StatusOK, data)
}
