package bootstrap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinix-backend/internal/appointments"
	"clinix-backend/internal/shared/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:                "dev",
		ObjectStoreType:    "local",
		LocalStoreDir:      t.TempDir(),
		GeminiModel:        "gemini-2.0-flash-lite",
		GroqModel:          "openai/gpt-oss-120b",
		SummaryModel:       "openai/gpt-oss-120b",
		ProviderTimeout:    time.Second,
		MinIntakeLength:    3,
		ConflictWindow:     10 * time.Minute,
		MinExtractedChars:  50,
		DocumentProcessing: config.ProcessingSync,
		MaxUploadBytes:     5 << 20,
	}
}

func TestBuildDevUsesMemoryAndServesHealth(t *testing.T) {
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if app.DB != nil || app.Redis != nil || app.Queue != nil {
		t.Fatalf("expected no external clients in bare dev config")
	}
	if _, ok := app.AppointmentsRepo.(*appointments.MemoryRepo); !ok {
		t.Fatalf("expected memory repo, got %T", app.AppointmentsRepo)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if payload["database"] != "memory" || payload["lock"] != "disabled" {
		t.Fatalf("unexpected health payload %v", payload)
	}
}

func TestBuildIntakeFallsBackWithoutKeys(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/intake", strings.NewReader(`{"text":"bahut tez bukhar since kal"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload struct {
		Source string `json:"source"`
		Data   struct {
			Urgency string `json:"urgency"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode intake: %v", err)
	}
	if payload.Source != "fallback" || payload.Data.Urgency != "high" {
		t.Fatalf("unexpected intake response %+v", payload)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestBuildQueueModeRequiresURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.DocumentProcessing = config.ProcessingQueue
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected error without SQS_QUEUE_URL")
	}
}
