package respond

import (
	"github.com/gin-gonic/gin"

	"clinix-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response and logs it at warn, or at error
// for 5xx statuses.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":  status,
		"code":    code,
		"message": message,
		"route":   c.FullPath(),
		"method":  c.Request.Method,
	}
	if clinicID := c.GetString("clinicId"); clinicID != "" {
		fields["clinic_id"] = clinicID
	}
	if appointmentID := c.GetString("appointmentId"); appointmentID != "" {
		fields["appointment_id"] = appointmentID
	}
	if status >= 500 {
		telemetry.ErrorCtx(c.Request.Context(), "http.error", fields)
	} else {
		telemetry.WarnCtx(c.Request.Context(), "http.error", fields)
	}

	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
