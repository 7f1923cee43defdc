package invoice

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-review/internal/extraction"
)

// IDGenerator generates unique IDs for uploads
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates time-ordered UUIDv7 IDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles document operations
type Service struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage) *Service {
	return NewServiceWithDeps(db, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	reFilenameChars  = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	reFilenameSpaces = regexp.MustCompile(`\s+`)
	reExtension      = regexp.MustCompile(`[^a-zA-Z0-9.]`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	ext = reExtension.ReplaceAllString(ext, "")

	base = reFilenameChars.ReplaceAllString(base, "")
	base = reFilenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "invoice"
	}

	return base + ext
}

// StoreUpload saves an uploaded file and returns the upload to queue for
// extraction
func (s *Service) StoreUpload(name string, data []byte, contentType string) (*Upload, error) {
	id := s.idGenerator.Generate()

	key, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(name)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	return &Upload{
		ID:          id,
		Name:        name,
		Filename:    key,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  s.timeSource.Now(),
	}, nil
}

// ReadUpload returns the stored bytes of an upload
func (s *Service) ReadUpload(up Upload) ([]byte, error) {
	data, err := s.storage.Get(up.Filename)
	if err != nil {
		return nil, fmt.Errorf("reading upload %s: %w", up.ID, err)
	}
	return data, nil
}

// PublishDocument stores a newly extracted document
func (s *Service) PublishDocument(up Upload, ex Extraction) (*Document, error) {
	doc := NewDocument(up, ex, s.timeSource.Now())
	if err := s.db.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	return doc, nil
}

// PublishFailure records an upload that produced no document
func (s *Service) PublishFailure(up Upload, kind FailureKind, cause error) error {
	failure := &Failure{
		UploadID: up.ID,
		Name:     up.Name,
		Kind:     kind,
		Message:  cause.Error(),
		At:       s.timeSource.Now(),
	}
	if err := s.db.SaveFailure(failure); err != nil {
		return fmt.Errorf("saving failure: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID
func (s *Service) GetDocument(id string) (*Document, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents
func (s *Service) ListDocuments() ([]*Document, error) {
	docs, err := s.db.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and its file
func (s *Service) DeleteDocument(id string) error {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return fmt.Errorf("getting document for deletion: %w", err)
	}

	if err := s.storage.Delete(doc.Filename); err != nil {
		slog.Warn("Failed to delete file", "filename", doc.Filename, "error", err)
	}

	if err := s.db.DeleteDocument(id); err != nil {
		return fmt.Errorf("deleting document from database: %w", err)
	}
	return nil
}

// GetDocumentFile retrieves the uploaded file for a document
func (s *Service) GetDocumentFile(id string) ([]byte, string, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting document: %w", err)
	}

	data, err := s.storage.Get(doc.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting document file: %w", err)
	}

	return data, doc.ContentType, nil
}

// AcceptDocument confirms a document's extraction without changes
func (s *Service) AcceptDocument(id string) (*Document, error) {
	return s.review(id, "accept", func(doc *Document, now time.Time) error {
		return doc.Accept(now)
	})
}

// EditDocument saves the reviewer's corrected fields
func (s *Service) EditDocument(id string, fields extraction.Fields) (*Document, error) {
	return s.review(id, "edit", func(doc *Document, now time.Time) error {
		return doc.Edit(fields, now)
	})
}

// RejectDocument marks a document's extraction as unusable
func (s *Service) RejectDocument(id string) (*Document, error) {
	return s.review(id, "reject", func(doc *Document, now time.Time) error {
		return doc.Reject(now)
	})
}

func (s *Service) review(id, action string, transition func(*Document, time.Time) error) (*Document, error) {
	now := s.timeSource.Now()
	doc, err := s.db.UpdateDocument(id, func(doc *Document) error {
		return transition(doc, now)
	})
	if err != nil {
		return nil, fmt.Errorf("%s document %s: %w", action, id, err)
	}

	slog.Info("Document reviewed",
		"id", id,
		"action", action,
		"status", doc.Status,
		"accuracy", doc.Accuracy,
	)
	return doc, nil
}

// Stats computes the dashboard summary from the stored documents
func (s *Service) Stats() (Stats, error) {
	docs, err := s.db.ListDocuments()
	if err != nil {
		return Stats{}, fmt.Errorf("listing documents: %w", err)
	}
	return ComputeStats(docs), nil
}

// ListFailures returns all recorded ingest failures
func (s *Service) ListFailures() ([]*Failure, error) {
	failures, err := s.db.ListFailures()
	if err != nil {
		return nil, fmt.Errorf("listing failures: %w", err)
	}
	return failures, nil
}

// ExportWorkbook writes every document as an XLSX workbook to w
func (s *Service) ExportWorkbook(w io.Writer) error {
	docs, err := s.db.ListDocuments()
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	return WriteWorkbook(w, docs)
}
