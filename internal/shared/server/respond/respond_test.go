package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/appointments/:id", func(c *gin.Context) {
		c.Set("appointmentId", c.Param("id"))
		Error(c, http.StatusConflict, "slot_conflict", "taken", []map[string]string{{"field": "slotTime"}})
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/appointments/a-1", nil))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if resp.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store header")
	}
	var body ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "slot_conflict" || body.Error.Message != "taken" || body.Error.Details == nil {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestCreatedSetsStatusAndCacheHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/x", func(c *gin.Context) { Created(c, gin.H{"id": "a-1"}) })

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/x", nil))

	if resp.Code != http.StatusCreated || resp.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("unexpected response %d %v", resp.Code, resp.Header())
	}
}
