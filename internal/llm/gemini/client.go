package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"clinix-backend/internal/llm"
)

// ProviderName labels errors and logs produced by this client.
const ProviderName = "gemini"

const defaultModel = "gemini-2.0-flash-lite"

// Client implements llm.Client using Google's Gemini API.
type Client struct {
	key      llm.KeyFunc
	modelID  string
	disabled func() bool

	mu      sync.Mutex
	client  *genai.Client
	lastKey string
	// clients replaced after a key change; calls may still be using them
	retired []*genai.Client
}

// NewClient constructs a Gemini client. The key is resolved on every call and
// the underlying SDK client is rebuilt when it changes.
func NewClient(key llm.KeyFunc, modelID string) *Client {
	if key == nil {
		key = llm.EnvKey("GEMINI_API_KEY")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultModel
	}
	return &Client{
		key:      key,
		modelID:  modelID,
		disabled: disabledFromEnv,
	}
}

// WithDisabled overrides the kill switch check.
func (c *Client) WithDisabled(fn func() bool) *Client {
	c.disabled = fn
	return c
}

func disabledFromEnv() bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("GEMINI_DISABLED")))
	return err == nil && v
}

// Complete sends the prompt as a single user turn and returns the concatenated text parts.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	out, err := c.complete(ctx, req)
	if err != nil {
		return "", llm.NewProviderError(ProviderName, err)
	}
	return out, nil
}

func (c *Client) complete(ctx context.Context, req llm.Request) (string, error) {
	if c.disabled != nil && c.disabled() {
		return "", llm.ErrDisabled
	}
	client, err := c.sdkClient(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(c.modelID)
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if strings.TrimSpace(req.System) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("gemini returned empty content")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", errors.New("gemini returned empty content")
	}
	return out, nil
}

func (c *Client) sdkClient(ctx context.Context) (*genai.Client, error) {
	apiKey := c.key()
	if apiKey == "" {
		return nil, llm.ErrMissingAPIKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.lastKey == apiKey {
		return c.client, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if c.client != nil {
		c.retired = append(c.retired, c.client)
	}
	c.client = client
	c.lastKey = apiKey
	return client, nil
}

// Close releases the current SDK client and any replaced by key rotation.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, old := range c.retired {
		errs = append(errs, old.Close())
	}
	c.retired = nil
	if c.client != nil {
		errs = append(errs, c.client.Close())
		c.client = nil
	}
	return errors.Join(errs...)
}

var _ llm.Client = (*Client)(nil)
