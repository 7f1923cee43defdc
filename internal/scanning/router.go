package scanning

import (
	"context"
	"errors"
	"fmt"
)

// Router picks a backend by content type: images go to the OCR backend and
// PDFs to the text-layer reader.
type Router struct {
	image Scanner
	pdf   Scanner
}

// NewRouter creates a Router. Either backend may be nil, in which case the
// matching content types are rejected as unsupported.
func NewRouter(image, pdf Scanner) *Router {
	return &Router{image: image, pdf: pdf}
}

// Scan dispatches data to the backend for contentType
func (r *Router) Scan(ctx context.Context, data []byte, contentType string) (*Result, error) {
	ct := NormalizeContentType(contentType)

	var backend Scanner
	switch ct {
	case TypeJPEG, "image/jpg", TypePNG, TypeHEIC, TypeHEIF:
		backend = r.image
	case TypePDF:
		backend = r.pdf
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: %q (supported: PDF, JPG, PNG, HEIC)", ErrUnsupportedFileType, contentType)
	}

	return backend.Scan(ctx, data, ct)
}

// Close closes both backends
func (r *Router) Close() error {
	var errs []error
	if r.image != nil {
		errs = append(errs, r.image.Close())
	}
	if r.pdf != nil && r.pdf != r.image {
		errs = append(errs, r.pdf.Close())
	}
	return errors.Join(errs...)
}
