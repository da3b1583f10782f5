package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

// maxRequestIDLen caps the client-supplied X-Request-ID. The play endpoints
// are anonymous, so the header cannot be trusted to stay log-sized.
const maxRequestIDLen = 64

// RequestIDMiddleware attaches a request ID to every request. A well-formed
// client-supplied X-Request-ID is echoed back; anything missing or oversized
// is replaced with a fresh uuid.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}
