package invoice

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/invoice-review/internal/extraction"
)

// ErrInvalidTransition is returned when a review action is applied to a
// document that has already left needs_review.
var ErrInvalidTransition = errors.New("invalid status transition")

// Accept confirms the extraction as-is.
func (d *Document) Accept(now time.Time) error {
	if err := d.requireReview("accept"); err != nil {
		return err
	}
	d.finish(StatusProcessed, extraction.FieldCount, now)
	return nil
}

// Edit stores the reviewer's final values and scores them against the
// original extraction. Blank values count as absent.
func (d *Document) Edit(final extraction.Fields, now time.Time) error {
	if err := d.requireReview("edit"); err != nil {
		return err
	}

	final = extraction.Fields{
		InvoiceNumber: strings.TrimSpace(final.InvoiceNumber),
		InvoiceDate:   strings.TrimSpace(final.InvoiceDate),
		Amount:        strings.TrimSpace(final.Amount),
		Vendor:        strings.TrimSpace(final.Vendor),
	}
	correct := final.Matching(d.baseline())

	d.Fields = final
	d.finish(StatusProcessed, correct, now)
	return nil
}

// Reject marks the extraction as unusable.
func (d *Document) Reject(now time.Time) error {
	if err := d.requireReview("reject"); err != nil {
		return err
	}
	d.finish(StatusRejected, 0, now)
	d.Rejected = true
	return nil
}

func (d *Document) requireReview(action string) error {
	if d.Status != StatusNeedsReview {
		return fmt.Errorf("%w: cannot %s a document in status %q", ErrInvalidTransition, action, d.Status)
	}
	return nil
}

// baseline is what review edits are compared with.
func (d *Document) baseline() extraction.Fields {
	if d.Original != nil {
		return *d.Original
	}
	return d.Fields
}

func (d *Document) finish(status Status, correct int, now time.Time) {
	changes := extraction.FieldCount - correct

	d.Status = status
	d.Reviewed = true
	d.Accuracy = float64(correct) / extraction.FieldCount * 100
	d.ChangesCount = &changes
	d.ReviewedAt = &now
	d.UpdatedAt = now
}
