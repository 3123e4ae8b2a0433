package intake

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAnalyzeRejectsShortTextWithoutCallingProviders(t *testing.T) {
	a := &fakeProvider{stage: SourceProviderA, res: Result{Summary: "x", Urgency: UrgencyLow}}
	b := &fakeProvider{stage: SourceProviderB, res: Result{Summary: "x", Urgency: UrgencyLow}}
	analyzer := NewAnalyzer(time.Second, 3, a, b)

	for _, text := range []string{"", "  ", "ab", "  ab  "} {
		if _, err := analyzer.Analyze(context.Background(), text); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Analyze(%q) err = %v, want ErrInvalidInput", text, err)
		}
	}
	if a.calls.Load() != 0 || b.calls.Load() != 0 {
		t.Fatalf("expected zero provider calls, got %d and %d", a.calls.Load(), b.calls.Load())
	}
}

func TestAnalyzeUsesFirstSuccessfulProvider(t *testing.T) {
	a := &fakeProvider{stage: SourceProviderA, res: Result{Summary: "Fever", Urgency: UrgencyMedium}}
	b := &fakeProvider{stage: SourceProviderB}
	analyzer := NewAnalyzer(time.Second, 3, a, b)

	got, err := analyzer.Analyze(context.Background(), "bukhar hai")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Source != SourceProviderA {
		t.Fatalf("expected provider_a, got %q", got.Source)
	}
	if b.calls.Load() != 0 {
		t.Fatalf("expected provider B untouched")
	}
}

func TestAnalyzeFallsThroughToProviderB(t *testing.T) {
	a := failing(SourceProviderA)
	b := &fakeProvider{stage: SourceProviderB, res: Result{Summary: "Headache", Urgency: UrgencyMedium}}
	analyzer := NewAnalyzer(time.Second, 3, a, b)

	got, err := analyzer.Analyze(context.Background(), "sar dard")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Source != SourceProviderB {
		t.Fatalf("expected provider_b, got %q", got.Source)
	}
	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Fatalf("expected one call each, got %d and %d", a.calls.Load(), b.calls.Load())
	}
}

func TestAnalyzeAllProvidersFailReturnsFallback(t *testing.T) {
	analyzer := NewAnalyzer(time.Second, 3, failing(SourceProviderA), failing(SourceProviderB))

	got, err := analyzer.Analyze(context.Background(), "feeling okay")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Source != SourceFallback || got.Urgency != UrgencyLow {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestAnalyzeNoProvidersConfigured(t *testing.T) {
	analyzer := NewAnalyzer(time.Second, 3)

	got, err := analyzer.Analyze(context.Background(), "bahut zyada fever, bahut dard")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Source != SourceFallback || got.Urgency != UrgencyHigh {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestAnalyzeTimesOutHungProvider(t *testing.T) {
	hung := &fakeProvider{stage: SourceProviderA, wait: true}
	b := &fakeProvider{stage: SourceProviderB, res: Result{Summary: "Cough", Urgency: UrgencyLow}}
	analyzer := NewAnalyzer(20*time.Millisecond, 3, hung, b)

	start := time.Now()
	got, err := analyzer.Analyze(context.Background(), "khansi hai")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Source != SourceProviderB {
		t.Fatalf("expected provider_b after timeout, got %q", got.Source)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not applied, took %s", elapsed)
	}
}

func TestAnalyzeRejectsInvalidProviderResult(t *testing.T) {
	bad := &fakeProvider{stage: SourceProviderA, res: Result{Summary: "x", Urgency: "critical"}}
	analyzer := NewAnalyzer(time.Second, 3, bad)

	got, err := analyzer.Analyze(context.Background(), "urgent help")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Source != SourceFallback || got.Urgency != UrgencyHigh {
		t.Fatalf("expected fallback result, got %+v", got)
	}
}

func TestAnalyzeResultAlwaysHasValidUrgency(t *testing.T) {
	analyzer := NewAnalyzer(time.Second, 3, failing(SourceProviderA), failing(SourceProviderB))
	inputs := []string{"abc", "pain", "EMERGENCY", "kuch nahi", "bukhar aur dard", "123 456"}
	for _, in := range inputs {
		got, err := analyzer.Analyze(context.Background(), in)
		if err != nil {
			t.Fatalf("Analyze(%q): %v", in, err)
		}
		if !ValidUrgency(got.Urgency) {
			t.Fatalf("Analyze(%q) urgency %q invalid", in, got.Urgency)
		}
	}
}
