package intake

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"clinix-backend/internal/llm"
)

// Provider turns free text into a Result or fails with a *llm.ProviderError.
type Provider interface {
	Source() string
	Extract(ctx context.Context, text string) (Result, error)
}

// LLMProvider adapts an llm.Client to the Provider contract.
type LLMProvider struct {
	Name        string
	Stage       string
	Client      llm.Client
	Temperature *float32
}

// NewLLMProvider builds a provider for the given stage.
func NewLLMProvider(name, stage string, client llm.Client, temperature *float32) *LLMProvider {
	return &LLMProvider{Name: name, Stage: stage, Client: client, Temperature: temperature}
}

// Source returns the stage tag recorded on results from this provider.
func (p *LLMProvider) Source() string { return p.Stage }

// Extract asks the model for a structured record and validates it.
func (p *LLMProvider) Extract(ctx context.Context, text string) (Result, error) {
	if p.Client == nil {
		return Result{}, &llm.ProviderError{Provider: p.Name, Err: errors.New("client not configured")}
	}
	raw, err := p.Client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      userPrompt(text),
		Temperature: p.Temperature,
		JSON:        true,
	})
	if err != nil {
		return Result{}, llm.NewProviderError(p.Name, err)
	}
	res, err := ParseProviderReply(raw, p.Stage)
	if err != nil {
		return Result{}, &llm.ProviderError{Provider: p.Name, Err: err}
	}
	return res, nil
}

// providerReply accepts every key layout the models have been observed to use.
type providerReply struct {
	Summary           *string         `json:"summary"`
	Symptoms          *string         `json:"symptoms"`
	AISummary         *string         `json:"aiSummary"`
	Urgency           *string         `json:"urgency"`
	PreferredDateTime json.RawMessage `json:"preferredDateTime"`
}

// ParseProviderReply extracts and validates the JSON object embedded in raw.
func ParseProviderReply(raw, stage string) (Result, error) {
	block, err := ExtractJSONObject(raw)
	if err != nil {
		return Result{}, err
	}
	var reply providerReply
	if err := json.Unmarshal(block, &reply); err != nil {
		return Result{}, schemaErrorf("decode: %v", err)
	}

	if reply.Urgency == nil {
		return Result{}, schemaErrorf("urgency missing")
	}
	urgency := strings.ToLower(strings.TrimSpace(*reply.Urgency))
	if !ValidUrgency(urgency) {
		return Result{}, schemaErrorf("urgency %q outside low|medium|high", *reply.Urgency)
	}

	summary := firstNonEmpty(reply.Summary, reply.Symptoms, reply.AISummary)
	if summary == "" {
		return Result{}, schemaErrorf("summary missing")
	}

	return Result{
		Summary:           summary,
		Urgency:           urgency,
		PreferredDateTime: preferredFrom(reply.PreferredDateTime),
		Source:            stage,
	}, nil
}

func firstNonEmpty(vals ...*string) string {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(*v); s != "" {
			return s
		}
	}
	return ""
}

// preferredFrom keeps string preferences verbatim and drops anything else.
func preferredFrom(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}
