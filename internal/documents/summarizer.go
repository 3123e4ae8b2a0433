package documents

import (
	"context"
	"errors"
	"strings"

	"clinix-backend/internal/llm"
)

// Summary values recorded when no narrative summary could be produced.
const (
	SummaryUnavailable   = "AI summary not available"
	SummaryEmptyDocument = "AI summary not available (empty document)"
)

const summaryPrompt = "Summarize this medical document:\n\n"

// Summarizer produces a narrative summary of extracted document text.
type Summarizer struct {
	Name        string
	Client      llm.Client
	Temperature *float32
}

// NewSummarizer constructs a Summarizer over client.
func NewSummarizer(name string, client llm.Client) *Summarizer {
	return &Summarizer{Name: name, Client: client, Temperature: llm.Float32(0.2)}
}

// Summarize returns the model's summary of text. Failures are *llm.ProviderError;
// there is no local fallback.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if s == nil || s.Client == nil {
		return "", &llm.ProviderError{Provider: "summarizer", Err: errors.New("client not configured")}
	}
	out, err := s.Client.Complete(ctx, llm.Request{
		Prompt:      summaryPrompt + text,
		Temperature: s.Temperature,
	})
	if err != nil {
		return "", llm.NewProviderError(s.Name, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &llm.ProviderError{Provider: s.Name, Err: errors.New("empty summary")}
	}
	return out, nil
}
