package intake

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestRouter(a *Analyzer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(a).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestIntakeHandlerReturnsSourceAndData(t *testing.T) {
	r := newTestRouter(NewAnalyzer(time.Second, 3, failing(SourceProviderA), failing(SourceProviderB)))

	body := bytes.NewBufferString(`{"text":"mild headache since aaj"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/intake", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload struct {
		Source string `json:"source"`
		Data   Result `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Source != SourceFallback || payload.Data.Source != SourceFallback {
		t.Fatalf("unexpected source %+v", payload)
	}
	if payload.Data.Urgency != UrgencyMedium {
		t.Fatalf("unexpected urgency %q", payload.Data.Urgency)
	}
	if payload.Data.PreferredDateTime == nil || *payload.Data.PreferredDateTime != "today" {
		t.Fatalf("unexpected preference %v", payload.Data.PreferredDateTime)
	}
}

func TestIntakeHandlerRejectsMissingOrShortText(t *testing.T) {
	r := newTestRouter(NewAnalyzer(time.Second, 3))

	for _, raw := range []string{`{}`, `{"text":"hi"}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/intake", bytes.NewBufferString(raw))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", raw, resp.Code)
		}
	}
}
