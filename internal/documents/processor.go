package documents

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"clinix-backend/internal/extract"
	"clinix-backend/internal/shared/metrics"
	"clinix-backend/internal/shared/storage/object"
	"clinix-backend/internal/shared/telemetry"
)

// TextExtractor returns the text of a PDF on disk, or "" when none could be recovered.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) string
}

// RecordPatcher attaches document results to a persisted appointment.
type RecordPatcher interface {
	UpdateDocument(ctx context.Context, appointmentID, documentPath, summary string) error
}

// Processor stores uploaded records and produces their summaries.
type Processor struct {
	Store      object.ObjectStore
	Extractor  TextExtractor
	Summarizer *Summarizer
	Records    RecordPatcher
	MinChars   int
}

// Namespace returns the storage namespace for an appointment's documents.
func Namespace(appointmentID string) string {
	return path.Join("appointments", appointmentID)
}

// Save stores the uploaded document under the appointment's namespace.
func (p *Processor) Save(ctx context.Context, appointmentID, fileName string, r io.Reader) (string, error) {
	obj, err := p.Store.Save(ctx, Namespace(appointmentID), fileName, r)
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	telemetry.InfoCtx(ctx, "document.stored", map[string]any{
		"appointment_id": appointmentID,
		"storage_key":    obj.Key,
		"size_bytes":     obj.Size,
		"mime_type":      obj.MimeType,
	})
	return obj.Key, nil
}

// Summarize extracts and summarizes the stored document. It always returns a
// summary value, substituting the unavailable sentinels on failure.
func (p *Processor) Summarize(ctx context.Context, appointmentID, storageKey string) string {
	fields := map[string]any{"appointment_id": appointmentID, "storage_key": storageKey}

	tmpPath, err := p.download(ctx, storageKey)
	if err != nil {
		fields["error"] = err.Error()
		telemetry.ErrorCtx(ctx, "document.download_failed", fields)
		metrics.IncDocumentSummary("unavailable")
		return SummaryUnavailable
	}
	defer os.Remove(tmpPath)

	text := p.Extractor.ExtractText(ctx, tmpPath)
	minChars := p.MinChars
	if minChars <= 0 {
		minChars = extract.DefaultMinChars
	}
	if !extract.HasText(text, minChars) {
		telemetry.InfoCtx(ctx, "document.empty", fields)
		metrics.IncDocumentSummary("empty")
		return SummaryEmptyDocument
	}
	p.saveExtracted(ctx, storageKey, text)

	summary, err := p.Summarizer.Summarize(ctx, text)
	if err != nil {
		fields["error"] = err.Error()
		telemetry.ErrorCtx(ctx, "document.summary_failed", fields)
		metrics.IncDocumentSummary("unavailable")
		return SummaryUnavailable
	}
	metrics.IncDocumentSummary("summarized")
	return summary
}

// Process summarizes the stored document and patches the appointment record.
func (p *Processor) Process(ctx context.Context, appointmentID, storageKey string) error {
	summary := p.Summarize(ctx, appointmentID, storageKey)
	if err := p.Records.UpdateDocument(ctx, appointmentID, storageKey, summary); err != nil {
		return fmt.Errorf("attach summary: %w", err)
	}
	telemetry.InfoCtx(ctx, "document.processed", map[string]any{
		"appointment_id": appointmentID,
		"storage_key":    storageKey,
		"summary_len":    len(summary),
	})
	return nil
}

func (p *Processor) download(ctx context.Context, storageKey string) (string, error) {
	rc, err := p.Store.Open(ctx, storageKey)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	f, err := os.CreateTemp("", "clinix-doc-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// saveExtracted keeps a plain-text copy next to the document; failures are only logged.
func (p *Processor) saveExtracted(ctx context.Context, storageKey, text string) {
	if _, err := p.Store.Put(ctx, storageKey+".extracted.txt", "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		telemetry.WarnCtx(ctx, "document.extracted_copy_failed", map[string]any{
			"storage_key": storageKey,
			"error":       err.Error(),
		})
	}
}

// Open streams a stored document.
func (p *Processor) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	return p.Store.Open(ctx, storageKey)
}
