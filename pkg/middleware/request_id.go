// Package middleware provides HTTP middleware for gin-based services.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID header names.
const (
	HeaderXRequestID = "X-Request-ID"
)

// RequestIDConfig defines the config for RequestID middleware.
type RequestIDConfig struct {
	// Header is the header name to use for request ID.
	// Default: "X-Request-ID"
	Header string

	// Generator is the function to generate request IDs.
	// Default: UUID v4
	Generator func() string
}

// DefaultRequestIDConfig is the default RequestID middleware config.
var DefaultRequestIDConfig = RequestIDConfig{
	Header:    HeaderXRequestID,
	Generator: generateRequestID,
}

// requestIDKey is the context key for request ID.
type requestIDKey struct{}

// RequestID returns a middleware that adds a unique request ID to each request.
// The request ID is added to:
//   - Response header (X-Request-ID)
//   - Request context (can be retrieved with GetRequestID)
func RequestID() gin.HandlerFunc {
	return RequestIDWithConfig(DefaultRequestIDConfig)
}

// RequestIDWithConfig returns a RequestID middleware with custom config.
func RequestIDWithConfig(config RequestIDConfig) gin.HandlerFunc {
	// Set defaults
	if config.Header == "" {
		config.Header = HeaderXRequestID
	}
	if config.Generator == nil {
		config.Generator = generateRequestID
	}

	return func(c *gin.Context) {
		// Check if request ID already exists in header
		requestID := c.GetHeader(config.Header)
		if requestID == "" {
			requestID = config.Generator()
		}

		// Set request ID in response header
		c.Writer.Header().Set(config.Header, requestID)

		// Store request ID in context
		ctx := context.WithValue(c.Request.Context(), requestIDKey{}, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID returns the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// generateRequestID generates a random request ID.
func generateRequestID() string {
	return uuid.NewString()
}
