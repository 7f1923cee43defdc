package scanning

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFileType is returned for content types no backend can read.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Result is the text recovered from one document
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0-100
	Method     string  `json:"method"`
	Pages      int     `json:"pages"`
}

// Scanner defines the interface for text recognition over an uploaded file
type Scanner interface {
	// Scan returns the text found in data along with a confidence score
	Scan(ctx context.Context, data []byte, contentType string) (*Result, error)
	// Close closes the scanner and releases resources
	Close() error
}

// Content types accepted by the router.
const (
	TypeJPEG = "image/jpeg"
	TypePNG  = "image/png"
	TypeHEIC = "image/heic"
	TypeHEIF = "image/heif"
	TypePDF  = "application/pdf"
)

// NormalizeContentType lowercases a MIME type and drops any parameters.
func NormalizeContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return contentType
}

// ContentTypeFor returns the declared type of an upload, falling back to the
// file extension when the client sent nothing useful.
func ContentTypeFor(filename, declared string) string {
	ct := NormalizeContentType(declared)
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return TypeJPEG
	case ".png":
		return TypePNG
	case ".pdf":
		return TypePDF
	case ".heic":
		return TypeHEIC
	case ".heif":
		return TypeHEIF
	default:
		return "application/octet-stream"
	}
}
