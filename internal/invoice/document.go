package invoice

import (
	"time"

	"github.com/zombor/invoice-review/internal/extraction"
)

// Status is the review state of a document
type Status string

const (
	StatusNeedsReview Status = "needs_review"
	StatusProcessed   Status = "processed"
	StatusRejected    Status = "rejected"
)

// Valid reports whether s is one of the known states
func (s Status) Valid() bool {
	switch s {
	case StatusNeedsReview, StatusProcessed, StatusRejected:
		return true
	}
	return false
}

// Upload is a file accepted for processing but not yet extracted
type Upload struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`     // name as uploaded
	Filename    string    `json:"filename"` // storage key
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Extraction is what the ingest worker learned about one upload
type Extraction struct {
	Text       string
	Confidence float64
	Method     string
	Pages      int
	Result     extraction.Result
	Duration   time.Duration
}

// Document is one uploaded invoice after extraction
type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	FileURL     string `json:"file_url"`

	RawText string            `json:"raw_text"`
	Fields  extraction.Fields `json:"fields"`
	// Original is the first extraction, frozen at creation. Nil only in
	// records written before snapshots existed.
	Original      *extraction.Fields `json:"original_values,omitempty"`
	MissingFields []string           `json:"missing_fields"`
	Rules         map[string]string  `json:"rules,omitempty"`

	Confidence   float64 `json:"confidence"`
	Accuracy     float64 `json:"accuracy"`
	ChangesCount *int    `json:"changes_count,omitempty"`

	Status   Status `json:"status"`
	Reviewed bool   `json:"reviewed"`
	Rejected bool   `json:"rejected"`

	ScanMethod        string  `json:"scan_method"`
	Pages             int     `json:"pages"`
	ProcessingSeconds float64 `json:"processing_seconds"`

	UploadedAt time.Time  `json:"uploaded_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewDocument builds the needs_review record for an extracted upload.
func NewDocument(up Upload, ex Extraction, now time.Time) *Document {
	original := ex.Result.Fields

	return &Document{
		ID:                up.ID,
		Name:              up.Name,
		Filename:          up.Filename,
		ContentType:       up.ContentType,
		Size:              up.Size,
		FileURL:           "/api/documents/" + up.ID + "/file",
		RawText:           ex.Text,
		Fields:            ex.Result.Fields,
		Original:          &original,
		MissingFields:     ex.Result.Fields.Missing(),
		Rules:             ex.Result.Rules,
		Confidence:        ex.Confidence,
		Status:            StatusNeedsReview,
		ScanMethod:        ex.Method,
		Pages:             ex.Pages,
		ProcessingSeconds: ex.Duration.Seconds(),
		UploadedAt:        up.UploadedAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Failure records an upload that could not be turned into a document
type Failure struct {
	UploadID string      `json:"upload_id"`
	Name     string      `json:"name"`
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
	At       time.Time   `json:"at"`
}

// FailureKind classifies ingest failures
type FailureKind string

const (
	FailureUnsupportedFileType FailureKind = "unsupported_file_type"
	FailureExtraction          FailureKind = "extraction_failure"
)
