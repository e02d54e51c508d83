package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReadinessMiddleware answers /healthz directly and returns 503 for every
// other path until ready reports true.
func ReadinessMiddleware(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if !ready() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}
