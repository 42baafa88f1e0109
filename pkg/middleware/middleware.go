// Package middleware provides Gin middleware shared by all HTTP handlers.
package middleware

import (
	"fmt"
	"math/rand"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/docqa/pkg/errors"
)

// HeaderXRequestID is the request ID header name.
const HeaderXRequestID = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID returns a middleware that assigns a ULID to each request.
// An incoming X-Request-ID is preserved; otherwise a new one is generated.
func RequestID() gin.HandlerFunc {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)

	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
		}

		c.Header(HeaderXRequestID, requestID)
		c.Set(requestIDKey, requestID)
		c.Next()
	}
}

// GetRequestID returns the request ID stored by RequestID middleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger returns a middleware that logs each HTTP request with latency and
// status. Health probe paths are skipped to keep the logs readable.
func Logger(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip[path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"remote_addr", c.ClientIP(),
			"latency_ms", latency.Milliseconds(),
		}
		if requestID := GetRequestID(c); requestID != "" {
			fields = append(fields, "request_id", requestID)
		}

		logger.Infow("HTTP Request", fields...)
	}
}

// Recovery returns a middleware that recovers from panics and converts them
// to JSON error responses. The stack trace is logged, never returned.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("Panic recovered",
					"panic", fmt.Sprintf("%v", r),
					"path", c.Request.URL.Path,
					"request_id", GetRequestID(c),
					"stack", string(debug.Stack()),
				)

				errno := errors.ErrPanic
				c.AbortWithStatusJSON(errno.HTTPStatus(), gin.H{
					"code":    errno.Code,
					"message": errno.MessageEN,
				})
			}
		}()
		c.Next()
	}
}
