// Package ingest turns stored uploads into invoice documents in the background.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zombor/invoice-review/internal/extraction"
	"github.com/zombor/invoice-review/internal/invoice"
	"github.com/zombor/invoice-review/internal/scanning"
)

// Publisher reads uploads and records what became of them
type Publisher interface {
	ReadUpload(up invoice.Upload) ([]byte, error)
	PublishDocument(up invoice.Upload, ex invoice.Extraction) (*invoice.Document, error)
	PublishFailure(up invoice.Upload, kind invoice.FailureKind, cause error) error
}

// Processor runs one file through text recognition and field extraction.
type Processor struct {
	scanner   scanning.Scanner
	extractor *extraction.Extractor
}

// NewProcessor returns a Processor using the built-in extraction rules.
func NewProcessor(scanner scanning.Scanner) *Processor {
	return &Processor{
		scanner:   scanner,
		extractor: extraction.NewExtractor(),
	}
}

// Process scans data and extracts the invoice fields from the recognized text.
func (p *Processor) Process(ctx context.Context, data []byte, contentType string) (*invoice.Extraction, error) {
	start := time.Now()

	res, err := p.scanner.Scan(ctx, data, contentType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("text recognition timed out: %w", err)
		}
		return nil, fmt.Errorf("text recognition: %w", err)
	}

	return &invoice.Extraction{
		Text:       res.Text,
		Confidence: res.Confidence,
		Method:     res.Method,
		Pages:      res.Pages,
		Result:     p.extractor.Extract(res.Text),
		Duration:   time.Since(start),
	}, nil
}

// failureKind classifies a processing error for the failure record.
func failureKind(err error) invoice.FailureKind {
	if errors.Is(err, scanning.ErrUnsupportedFileType) {
		return invoice.FailureUnsupportedFileType
	}
	return invoice.FailureExtraction
}
