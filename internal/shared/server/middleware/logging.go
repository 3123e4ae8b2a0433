package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"clinix-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request. 5xx responses log at error
// level and 4xx at warn; preflights and metrics scrapes are skipped.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		log := telemetry.InfoCtx
		switch {
		case status >= 500:
			log = telemetry.ErrorCtx
		case status >= 400:
			log = telemetry.WarnCtx
		}
		log(c.Request.Context(), "request.complete", map[string]any{
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"route":          c.FullPath(),
			"status":         status,
			"duration_ms":    float64(latency.Microseconds()) / 1000.0,
			"clinic_id":      c.GetString("clinicId"),
			"appointment_id": c.GetString("appointmentId"),
			"intake_source":  c.GetString("intakeSource"),
			"client_ip":      c.ClientIP(),
			"user_agent":     c.Request.UserAgent(),
		})
	}
}
