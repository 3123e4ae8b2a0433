package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"clinix-backend/internal/shared/server/respond"
	"clinix-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. Patient form values
// are never logged, only the route and the panic value.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.ErrorCtx(c.Request.Context(), "http.panic", map[string]any{
				"panic":  fmt.Sprint(rec),
				"stack":  string(debug.Stack()),
				"route":  c.FullPath(),
				"method": c.Request.Method,
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Unexpected server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}
