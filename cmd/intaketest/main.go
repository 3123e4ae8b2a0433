package main

// Try the intake chain or the document summarizer against real providers:
//   go run ./cmd/intaketest -text "sir dard since kal"
//   go run ./cmd/intaketest -pdf ./report.pdf

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"clinix-backend/internal/documents"
	"clinix-backend/internal/extract"
	"clinix-backend/internal/intake"
	"clinix-backend/internal/llm"
	"clinix-backend/internal/llm/gemini"
	"clinix-backend/internal/llm/groq"
	"clinix-backend/internal/shared/config"
	"clinix-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init("clinix-intaketest", cfg.Env, "warn")

	text := flag.String("text", "", "Symptom text to analyze")
	textFile := flag.String("text-file", "", "Path to a file holding symptom text")
	pdfPath := flag.String("pdf", "", "Path to a PDF to extract and summarize")
	provider := flag.String("provider", "chain", "chain, gemini, groq or normalizer")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	flag.Parse()

	ctx := context.Background()

	var out any
	switch {
	case strings.TrimSpace(*pdfPath) != "":
		out = summarizePDF(ctx, cfg, *pdfPath)
	default:
		input := *text
		if strings.TrimSpace(*textFile) != "" {
			raw, err := os.ReadFile(*textFile)
			if err != nil {
				exitErr(fmt.Sprintf("read text file: %v", err))
			}
			input = string(raw)
		}
		if strings.TrimSpace(input) == "" {
			exitErr("text or text-file is required")
		}
		res, err := analyze(ctx, cfg, *provider, input)
		if err != nil {
			exitErr(err.Error())
		}
		out = res
	}

	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	pretty = append(pretty, '\n')

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func analyze(ctx context.Context, cfg config.Config, provider, text string) (intake.Result, error) {
	geminiProvider := intake.NewLLMProvider(gemini.ProviderName, intake.SourceProviderA,
		gemini.NewClient(llm.EnvKey("GEMINI_API_KEY"), cfg.GeminiModel), nil)
	groqClient, err := groq.NewClient(llm.EnvKey("GROQ_API_KEY"), cfg.GroqModel, cfg.ProviderTimeout)
	if err != nil {
		return intake.Result{}, err
	}
	groqProvider := intake.NewLLMProvider(groq.ProviderName, intake.SourceProviderB, groqClient, llm.Float32(0.2))

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "chain":
		return intake.NewAnalyzer(cfg.ProviderTimeout, cfg.MinIntakeLength, geminiProvider, groqProvider).Analyze(ctx, text)
	case "gemini":
		return geminiProvider.Extract(ctx, text)
	case "groq":
		return groqProvider.Extract(ctx, text)
	case "normalizer":
		return intake.Normalize(text), nil
	default:
		return intake.Result{}, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type pdfReport struct {
	Chars   int    `json:"chars"`
	Text    string `json:"text"`
	Summary string `json:"summary"`
	Error   string `json:"error,omitempty"`
}

func summarizePDF(ctx context.Context, cfg config.Config, path string) pdfReport {
	extractor := extract.New(extract.NewTesseractCLI(cfg.OCRLanguage), cfg.MinExtractedChars)
	text := extractor.ExtractText(ctx, path)
	report := pdfReport{Chars: len(text), Text: text}
	if len(strings.TrimSpace(text)) < cfg.MinExtractedChars {
		report.Error = "not enough text extracted to summarize"
		return report
	}

	client, err := groq.NewClient(llm.EnvKey("GROQ_API_KEY"), cfg.SummaryModel, cfg.ProviderTimeout)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	summary, err := documents.NewSummarizer(groq.ProviderName, client).Summarize(ctx, text)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Summary = summary
	return report
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
