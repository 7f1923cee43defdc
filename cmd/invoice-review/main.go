package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/invoice-review/internal/ingest"
	"github.com/zombor/invoice-review/internal/invoice"
	"github.com/zombor/invoice-review/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("invoice-review")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "invoice-review.db", "Database file path")
		storagePath     = fs.StringLong("storage", "./uploads", "Upload storage directory path")
		scannerType     = fs.StringLong("scanner", "tesseract", "OCR backend: 'tesseract', 'gemini' or 'ollama'")
		tesseractBin    = fs.StringLong("tesseract-bin", "tesseract", "Tesseract binary")
		tesseractLang   = fs.StringLong("tesseract-lang", "eng", "Tesseract language pack(s), e.g. eng+deu")
		tesseractPSM    = fs.IntLong("tesseract-psm", 0, "Tesseract page segmentation mode (0 = tesseract default)")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, qwen2-vl, llama3.2-vision)")
		pdfConfidence   = fs.Float64Long("pdf-confidence", scanning.DefaultPDFConfidence, "Confidence reported for PDF text layers")
		processTimeout  = fs.DurationLong("process-timeout", 3*time.Minute, "Maximum time to process one upload")
		shutdownTimeout = fs.DurationLong("shutdown-timeout", 30*time.Second, "Time allowed to drain the queue on shutdown")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_REVIEW"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := invoice.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Get Gemini API key from flag or environment
	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	scanner, err := scanning.Open(scanning.Config{
		Backend:       *scannerType,
		TesseractBin:  *tesseractBin,
		TesseractLang: *tesseractLang,
		TesseractPSM:  *tesseractPSM,
		GeminiKey:     apiKey,
		GeminiModel:   *geminiModel,
		OllamaURL:     *ollamaURL,
		OllamaModel:   *ollamaModel,
		PDFConfidence: *pdfConfidence,
	})
	if err != nil {
		slog.Error("Failed to initialize scanner", "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := invoice.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := invoice.NewService(db, store)
	queue := ingest.NewQueue(
		ingest.NewProcessor(scanner),
		service,
		ingest.WithProcessTimeout(*processTimeout),
		ingest.WithLogger(slog.Default().With("component", "ingest")),
	)

	basicAuth := invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           invoice.NewServer(service, queue, basicAuth),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
		if *authUser != "" || *authPass != "" {
			slog.Info("Basic auth enabled", "user", *authUser)
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()

		// Stop taking uploads before draining what is already queued
		httpErr := srv.Shutdown(shutdownCtx)
		queueErr := queue.Shutdown(shutdownCtx)
		return errors.Join(httpErr, queueErr)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Shutdown with error", "error", err)
		os.Exit(1)
	}
}
