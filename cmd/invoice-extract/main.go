package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoice-review/internal/extraction"
	"github.com/zombor/invoice-review/internal/ingest"
	"github.com/zombor/invoice-review/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type output struct {
	File          string            `json:"file"`
	Fields        extraction.Fields `json:"fields"`
	MissingFields []string          `json:"missing_fields"`
	Rules         map[string]string `json:"rules,omitempty"`
	Confidence    float64           `json:"confidence"`
	Method        string            `json:"method"`
	Pages         int               `json:"pages"`
	Seconds       float64           `json:"seconds"`
	Text          string            `json:"text,omitempty"`
	Error         string            `json:"error,omitempty"`
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("invoice-extract")
	var (
		scannerType   = fs.StringLong("scanner", "tesseract", "OCR backend: 'tesseract', 'gemini' or 'ollama'")
		tesseractBin  = fs.StringLong("tesseract-bin", "tesseract", "Tesseract binary")
		tesseractLang = fs.StringLong("tesseract-lang", "eng", "Tesseract language pack(s)")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		timeout       = fs.DurationLong("timeout", 3*time.Minute, "Maximum time to process one file")
		raw           = fs.BoolLong("raw", "Include the recognized text in the output")
		listRules     = fs.BoolLong("rules", "Print the extraction rules of each field and exit")
		_             = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_EXTRACT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *listRules {
		if err := enc.Encode(extraction.NewExtractor().Rules()); err != nil {
			slog.Error("Failed to write rules", "error", err)
			os.Exit(1)
		}
		return
	}

	files := fs.GetArgs()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs, "invoice-extract [flags] FILE..."))
		os.Exit(1)
	}

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	scanner, err := scanning.Open(scanning.Config{
		Backend:       *scannerType,
		TesseractBin:  *tesseractBin,
		TesseractLang: *tesseractLang,
		GeminiKey:     apiKey,
		GeminiModel:   *geminiModel,
		OllamaURL:     *ollamaURL,
		OllamaModel:   *ollamaModel,
	})
	if err != nil {
		slog.Error("Failed to initialize scanner", "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	proc := ingest.NewProcessor(scanner)
	failed := 0
	for _, file := range files {
		out := extract(proc, file, *timeout)
		if out.Error != "" {
			failed++
		}
		if !*raw {
			out.Text = ""
		}
		if err := enc.Encode(out); err != nil {
			slog.Error("Failed to write result", "file", file, "error", err)
			os.Exit(1)
		}
	}

	if failed > 0 {
		os.Exit(2)
	}
}

func extract(proc *ingest.Processor, file string, timeout time.Duration) output {
	out := output{File: file}

	data, err := os.ReadFile(file)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ex, err := proc.Process(ctx, data, scanning.ContentTypeFor(filepath.Base(file), ""))
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.Fields = ex.Result.Fields
	out.MissingFields = ex.Result.MissingFields
	out.Rules = ex.Result.Rules
	out.Confidence = ex.Confidence
	out.Method = ex.Method
	out.Pages = ex.Pages
	out.Seconds = ex.Duration.Seconds()
	out.Text = ex.Text
	return out
}
