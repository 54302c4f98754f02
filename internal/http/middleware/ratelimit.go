package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DTADMI/gamehub-api/internal/ratelimit"
)

// Paths never throttled: health probes must stay green during incidents and
// the error page must render for already-rejected requests.
var rateLimitExempt = []string{"/healthz", "/error"}

// RateLimit enforces per-caller admission before any handler runs. The class
// is chosen from the presence of an Authorization header; identity resolution
// has not happened yet at this point in the chain, and a forged header only
// buys the caller the stricter scrutiny of the user tier's shared counter.
func RateLimit(admitter ratelimit.Admitter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range rateLimitExempt {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		class := ratelimit.ClassGuest
		if c.GetHeader("Authorization") != "" {
			class = ratelimit.ClassUser
		}

		decision := admitter.Check(c.Request.Context(), class, c.ClientIP())
		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if decision.Allowed {
			c.Next()
			return
		}

		logger.Warn("rate limit exceeded",
			zap.String("client_ip", c.ClientIP()),
			zap.String("path", path),
			zap.String("class", string(class)),
		)
		c.Writer.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "Too many requests",
			"message": "Rate limit exceeded. Please try again later.",
		})
	}
}
