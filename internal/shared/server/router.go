package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinix-backend/internal/appointments"
	"clinix-backend/internal/intake"
	"clinix-backend/internal/services/health"
	"clinix-backend/internal/shared/config"
	"clinix-backend/internal/shared/metrics"
	"clinix-backend/internal/shared/server/middleware"
	"clinix-backend/internal/shared/server/respond"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupIntake  = "INTAKE"
	rateGroupBooking = "BOOKING"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config             config.Config
	IntakeHandler      *intake.Handler
	AppointmentHandler *appointments.Handler
	Health             *health.Service
	RateLimiter        *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env != "dev" && deps.Config.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		DefaultGroup: rateGroupDefault,
		GroupFor:     rateGroupFor,
		Limiter:      deps.RateLimiter,
		Rules: map[string]middleware.RateLimitRule{
			rateGroupDefault: {Rate: 10, Burst: 30},
			// provider calls are the expensive path
			rateGroupIntake:  {Rate: 0.5, Burst: 5},
			rateGroupBooking: {Rate: 1, Burst: 10},
		},
	}))

	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		payload, ok := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, payload)
	})
	if deps.IntakeHandler != nil {
		deps.IntakeHandler.RegisterRoutes(api)
	}
	if deps.AppointmentHandler != nil {
		deps.AppointmentHandler.RegisterRoutes(api)
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return rateGroupDefault
	}
	switch c.FullPath() {
	case "/api/v1/ai/intake":
		return rateGroupIntake
	case "/api/v1/appointments":
		return rateGroupBooking
	default:
		return rateGroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
