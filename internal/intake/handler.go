package intake

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"clinix-backend/internal/shared/server/respond"
)

// Handler exposes the analyzer over HTTP.
type Handler struct {
	Analyzer *Analyzer
}

// NewHandler constructs a Handler.
func NewHandler(a *Analyzer) *Handler {
	return &Handler{Analyzer: a}
}

// RegisterRoutes attaches intake routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ai/intake", h.analyze)
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Source string `json:"source"`
	Data   Result `json:"data"`
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "text is required", nil)
		return
	}

	res, err := h.Analyzer.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "intake failed", nil)
		}
		return
	}

	c.Set("intakeSource", res.Source)
	respond.OK(c, analyzeResponse{Source: res.Source, Data: res})
}
