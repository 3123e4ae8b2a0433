package intake

import "strings"

// Urgency tiers.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Stages that can produce a Result.
const (
	SourceProviderA = "provider_a"
	SourceProviderB = "provider_b"
	SourceFallback  = "fallback"
)

// Result is the structured intake record derived from free-text symptoms.
type Result struct {
	Summary           string  `json:"summary"`
	Urgency           string  `json:"urgency"`
	PreferredDateTime *string `json:"preferredDateTime"`
	Source            string  `json:"source"`
}

// ValidUrgency reports whether u is one of the known tiers.
func ValidUrgency(u string) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	default:
		return false
	}
}

// ValidSource reports whether s is one of the known stages.
func ValidSource(s string) bool {
	switch s {
	case SourceProviderA, SourceProviderB, SourceFallback:
		return true
	default:
		return false
	}
}

// Validate checks the invariants a persisted Result must hold.
func (r Result) Validate() error {
	if !ValidUrgency(r.Urgency) {
		return schemaErrorf("urgency %q outside low|medium|high", r.Urgency)
	}
	if !ValidSource(r.Source) {
		return schemaErrorf("source %q unknown", r.Source)
	}
	if strings.TrimSpace(r.Summary) == "" {
		return schemaErrorf("summary is empty")
	}
	return nil
}
