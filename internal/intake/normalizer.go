package intake

import (
	"strings"
	"unicode"
)

var highMarkers = []string{
	"urgent",
	"emergency",
	"serious",
	"severe",
	"bahut",
	"zyada",
	"turant",
	"gambhir",
}

var mediumMarkers = []string{
	"fever",
	"bukhar",
	"pain",
	"dard",
	"headache",
}

// Day markers are matched as whole words; "kal" as a substring is too common.
var dayMarkers = []struct {
	word string
	day  string
}{
	{"today", "today"},
	{"aaj", "today"},
	{"tomorrow", "tomorrow"},
	{"kal", "tomorrow"},
}

// Normalize classifies text with fixed keyword rules. It never fails.
func Normalize(text string) Result {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	return Result{
		Summary:           trimmed,
		Urgency:           classifyUrgency(lower),
		PreferredDateTime: detectDay(lower),
		Source:            SourceFallback,
	}
}

func classifyUrgency(lower string) string {
	if containsAny(lower, highMarkers) {
		return UrgencyHigh
	}
	if containsAny(lower, mediumMarkers) {
		return UrgencyMedium
	}
	return UrgencyLow
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func detectDay(lower string) *string {
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, m := range dayMarkers {
		for _, w := range words {
			if w == m.word {
				day := m.day
				return &day
			}
		}
	}
	return nil
}
