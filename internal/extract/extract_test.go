package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type countingOCR struct {
	text  string
	err   error
	calls int
}

func (c *countingOCR) Recognize(ctx context.Context, pdfPath string) (string, error) {
	c.calls++
	return c.text, c.err
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "record.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp pdf: %v", err)
	}
	return path
}

func TestExtractTextFallsBackToOCRForUnreadablePDF(t *testing.T) {
	ocr := &countingOCR{text: "  Patient: R. Sharma. Hb 11.2 g/dL  "}
	e := New(ocr, 50)

	got := e.ExtractText(context.Background(), writeTemp(t, []byte("not a pdf")))
	if got != "Patient: R. Sharma. Hb 11.2 g/dL" {
		t.Fatalf("unexpected text %q", got)
	}
	if ocr.calls != 1 {
		t.Fatalf("expected one OCR call, got %d", ocr.calls)
	}
}

func TestExtractTextOCRFailureReturnsEmpty(t *testing.T) {
	ocr := &countingOCR{err: errors.New("tesseract missing")}
	e := New(ocr, 50)

	if got := e.ExtractText(context.Background(), writeTemp(t, []byte("%PDF-1.4 broken"))); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestExtractTextMissingFile(t *testing.T) {
	ocr := &countingOCR{text: "never"}
	e := New(ocr, 50)

	if got := e.ExtractText(context.Background(), filepath.Join(t.TempDir(), "nope.pdf")); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
	if ocr.calls != 0 {
		t.Fatalf("expected no OCR for unreadable path")
	}
}

func TestExtractTextSkipsOCRWhenTextLayerSufficient(t *testing.T) {
	body := strings.Repeat("Haemoglobin within normal range. ", 4)
	path := writeTemp(t, minimalPDF(body))
	ocr := &countingOCR{text: "ocr"}
	e := New(ocr, 50)

	got := e.ExtractText(context.Background(), path)
	if ocr.calls != 0 {
		t.Fatalf("expected OCR to be skipped, got %d calls (text %q)", ocr.calls, got)
	}
	if !strings.Contains(got, "Haemoglobin") {
		t.Fatalf("expected text layer content, got %q", got)
	}
}

func TestExtractTextShortTextLayerUsesOCR(t *testing.T) {
	path := writeTemp(t, minimalPDF("Scan"))
	ocr := &countingOCR{text: "Recognized scanned report text"}
	e := New(ocr, 50)

	if got := e.ExtractText(context.Background(), path); got != "Recognized scanned report text" {
		t.Fatalf("unexpected text %q", got)
	}
	if ocr.calls != 1 {
		t.Fatalf("expected OCR call, got %d", ocr.calls)
	}
}

func TestExtractPDFTextEmpty(t *testing.T) {
	if _, err := ExtractPDFText(nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
}

func TestHasTextCountsCharactersNotBytes(t *testing.T) {
	// 23 characters, 63 bytes
	devanagari := strings.Repeat("बुखार ", 4)
	if HasText(devanagari, 50) {
		t.Fatalf("expected %d characters to be below the threshold", len([]rune(strings.TrimSpace(devanagari))))
	}
	if !HasText(strings.Repeat("बुखार ", 12), 50) {
		t.Fatalf("expected longer Devanagari text to pass the threshold")
	}
	if HasText(strings.Repeat("x", 50), 50) {
		t.Fatalf("threshold is exclusive")
	}
	if !HasText("  "+strings.Repeat("x", 51)+"  ", 50) {
		t.Fatalf("expected surrounding whitespace to be ignored")
	}
}
