package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"clinix-backend/internal/llm"
	"clinix-backend/internal/shared/metrics"
	"clinix-backend/internal/shared/telemetry"
)

const (
	DefaultMinLength       = 3
	DefaultProviderTimeout = 10 * time.Second
)

var tracer = otel.Tracer("clinix-backend/intake")

// Analyzer runs providers in order and falls back to Normalize.
type Analyzer struct {
	Providers []Provider
	Timeout   time.Duration
	MinLength int
}

// NewAnalyzer constructs an Analyzer. Providers are tried in the given order.
func NewAnalyzer(timeout time.Duration, minLength int, providers ...Provider) *Analyzer {
	return &Analyzer{Providers: providers, Timeout: timeout, MinLength: minLength}
}

// CheckText rejects text that is absent or shorter than the configured minimum.
func (a *Analyzer) CheckText(text string) error {
	minLen := a.MinLength
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minLen {
		return fmt.Errorf("%w: text must be at least %d characters", ErrInvalidInput, minLen)
	}
	return nil
}

// Analyze returns a structured intake record for text. The only error it
// returns is ErrInvalidInput; provider failures degrade to the normalizer.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Result, error) {
	if err := a.CheckText(text); err != nil {
		return Result{}, err
	}
	text = strings.TrimSpace(text)

	ctx, span := tracer.Start(ctx, "intake.Analyze")
	defer span.End()

	for _, p := range a.Providers {
		if p == nil {
			continue
		}
		res, err := a.attempt(ctx, p, text)
		if err == nil {
			span.SetAttributes(attribute.String("intake.source", res.Source))
			metrics.IncIntakeResult(res.Source)
			return res, nil
		}
		metrics.IncProviderFailure(p.Source())
		telemetry.WarnCtx(ctx, "intake.provider_failed", map[string]any{
			"source":   p.Source(),
			"provider": providerName(err),
			"error":    err.Error(),
		})
	}

	res := Normalize(text)
	span.SetAttributes(attribute.String("intake.source", res.Source))
	metrics.IncIntakeResult(res.Source)
	telemetry.InfoCtx(ctx, "intake.fallback", map[string]any{"urgency": res.Urgency})
	return res, nil
}

func (a *Analyzer) attempt(ctx context.Context, p Provider, text string) (res Result, err error) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attemptCtx, span := tracer.Start(attemptCtx, "intake.provider")
	span.SetAttributes(attribute.String("intake.source", p.Source()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider failed")
		}
		span.End()
	}()

	defer func() {
		if rec := recover(); rec != nil {
			err = &llm.ProviderError{Provider: p.Source(), Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	res, err = p.Extract(attemptCtx, text)
	if err != nil {
		return Result{}, err
	}
	res.Source = p.Source()
	if vErr := res.Validate(); vErr != nil {
		return Result{}, &llm.ProviderError{Provider: p.Source(), Err: vErr}
	}
	return res, nil
}

func providerName(err error) string {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return pe.Provider
	}
	return ""
}
