package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"clinix-backend/internal/shared/metrics"
	"clinix-backend/internal/shared/telemetry"
)

// DefaultMinChars is the structural-text length above which OCR is skipped.
const DefaultMinChars = 50

// HasText reports whether text holds more than minChars characters once
// trimmed. Characters are runes, so Devanagari counts the same as Latin.
func HasText(text string, minChars int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > minChars
}

// OCR recognizes text in a rendered PDF.
type OCR interface {
	Recognize(ctx context.Context, pdfPath string) (string, error)
}

// Extractor pulls text out of PDF documents, using OCR when the PDF has no usable text layer.
type Extractor struct {
	OCR      OCR
	MinChars int
}

// New constructs an Extractor.
func New(ocr OCR, minChars int) *Extractor {
	return &Extractor{OCR: ocr, MinChars: minChars}
}

// ExtractText returns the document text or "" when nothing could be recovered.
// It never returns an error; failures are logged.
// Library used: github.com/ledongthuc/pdf.
func (e *Extractor) ExtractText(ctx context.Context, path string) string {
	minChars := e.MinChars
	if minChars <= 0 {
		minChars = DefaultMinChars
	}

	data, err := os.ReadFile(path)
	if err != nil {
		telemetry.ErrorCtx(ctx, "extract.read_failed", map[string]any{"path": path, "error": err.Error()})
		return ""
	}

	text, err := ExtractPDFText(data)
	if err != nil {
		telemetry.WarnCtx(ctx, "extract.pdf_failed", map[string]any{"path": path, "error": err.Error()})
	}
	if HasText(text, minChars) {
		return strings.TrimSpace(text)
	}

	if e.OCR == nil {
		return strings.TrimSpace(text)
	}
	metrics.IncOCRFallback()
	ocrText, err := e.OCR.Recognize(ctx, path)
	if err != nil {
		telemetry.ErrorCtx(ctx, "extract.ocr_failed", map[string]any{"path": path, "error": err.Error()})
		return ""
	}
	return strings.TrimSpace(ocrText)
}

// ExtractPDFText reads the text layer of an in-memory PDF.
func ExtractPDFText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty pdf data")
	}
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("pdf parse panic: %v", rec)
		}
	}()

	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
