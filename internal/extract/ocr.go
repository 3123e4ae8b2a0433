package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// TesseractCLI rasterizes pages with pdftoppm and runs tesseract on each one.
type TesseractCLI struct {
	Language     string
	PdftoppmPath string
	TesseractBin string
	DPI          int
}

// NewTesseractCLI returns an OCR backed by the poppler and tesseract binaries on PATH.
func NewTesseractCLI(language string) *TesseractCLI {
	if strings.TrimSpace(language) == "" {
		language = "eng"
	}
	return &TesseractCLI{
		Language:     language,
		PdftoppmPath: "pdftoppm",
		TesseractBin: "tesseract",
		DPI:          200,
	}
}

// Recognize implements OCR.
func (t *TesseractCLI) Recognize(ctx context.Context, pdfPath string) (string, error) {
	dir, err := os.MkdirTemp("", "clinix-ocr-")
	if err != nil {
		return "", fmt.Errorf("ocr temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	if err := run(ctx, t.PdftoppmPath, "-r", fmt.Sprint(t.DPI), "-png", pdfPath, prefix); err != nil {
		return "", fmt.Errorf("rasterize: %w", err)
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("rasterize produced no pages")
	}
	sort.Strings(pages)

	var out strings.Builder
	for _, page := range pages {
		var stdout bytes.Buffer
		cmd := exec.CommandContext(ctx, t.TesseractBin, page, "stdout", "-l", t.Language)
		cmd.Stdout = &stdout
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("tesseract %s: %w", filepath.Base(page), err)
		}
		out.Write(stdout.Bytes())
		out.WriteString("\n")
	}
	return out.String(), nil
}

func run(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
