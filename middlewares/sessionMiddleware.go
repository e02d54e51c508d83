package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/gelato_backoffice/utils"
)

// SessionMiddleware attaches a correlation id (generated when the caller sent
// none) and the operator name from the x-operator header to the request context.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		if operator := strings.TrimSpace(c.GetHeader("x-operator")); operator != "" {
			ctx = utils.SetUserNameInContext(ctx, operator)
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
