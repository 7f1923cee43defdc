package scanning

import (
	"fmt"
	"log/slog"
)

// Backend names accepted by Config.Backend
const (
	BackendTesseract = "tesseract"
	BackendGemini    = "gemini"
	BackendOllama    = "ollama"
)

// Config selects and configures the OCR backend
type Config struct {
	Backend string

	TesseractBin  string
	TesseractLang string
	TesseractPSM  int

	GeminiKey   string
	GeminiModel string

	OllamaURL   string
	OllamaModel string

	// PDFConfidence is reported for PDFs read from their text layer
	PDFConfidence float64
}

// Open builds the scanner used for ingest: the configured OCR backend for
// images, and the PDF text-layer reader (falling back to that OCR backend)
// for PDFs.
func Open(cfg Config) (*Router, error) {
	var (
		ocr Scanner
		err error
	)

	switch cfg.Backend {
	case BackendTesseract, "":
		slog.Info("Initializing Tesseract scanner...", "bin", cfg.TesseractBin, "lang", cfg.TesseractLang)
		opts := []TesseractOption{}
		if cfg.TesseractLang != "" {
			opts = append(opts, WithLanguage(cfg.TesseractLang))
		}
		if cfg.TesseractPSM > 0 {
			opts = append(opts, WithPageSegmentation(cfg.TesseractPSM))
		}
		ocr = NewTesseract(cfg.TesseractBin, opts...)
	case BackendGemini:
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.GeminiModel)
		ocr, err = NewGemini(cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
	case BackendOllama:
		slog.Info("Initializing Ollama scanner...", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		ocr, err = NewOllama(cfg.OllamaURL, cfg.OllamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid scanner backend %q (valid: tesseract, gemini, ollama)", cfg.Backend)
	}

	return NewRouter(ocr, NewPDFText(ocr, cfg.PDFConfidence)), nil
}
