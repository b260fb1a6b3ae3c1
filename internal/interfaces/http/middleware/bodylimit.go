package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestock/backend/internal/interfaces/http/dto"
)

// BodyLimit caps the request body at maxBytes. Requests that declare a larger
// Content-Length are refused up front; chunked bodies are cut off by a
// MaxBytesReader so oversized item lists fail during binding instead of
// buffering in memory.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodePayloadTooLarge, "Request body exceeds maximum allowed size"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
