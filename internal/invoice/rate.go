package invoice

import (
	"fmt"
	"log/slog"

	"github.com/zombor/invoice-review/internal/extraction"
)

// RecognitionRate is the share of fields, over all reviewed documents, that
// the extractor got right.
type RecognitionRate struct {
	Reviewed int `json:"reviewed"`
	Correct  int `json:"correct_fields"`
	Total    int `json:"total_fields"`
	// PresenceOnly counts legacy documents scored by field presence because
	// they carry neither a change count nor an original snapshot.
	PresenceOnly int `json:"presence_only"`
}

// Percent returns the rate on a 0-100 scale
func (r RecognitionRate) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total) * 100
}

// String formats the rate with one decimal, e.g. "87.5%"
func (r RecognitionRate) String() string {
	return fmt.Sprintf("%.1f%%", r.Percent())
}

// ComputeRecognitionRate folds every reviewed document into one rate.
func ComputeRecognitionRate(docs []*Document) RecognitionRate {
	var rate RecognitionRate

	for _, d := range docs {
		if !d.Reviewed {
			continue
		}
		rate.Reviewed++
		rate.Total += extraction.FieldCount

		switch {
		case d.Rejected:
		case d.ChangesCount != nil:
			rate.Correct += extraction.FieldCount - min(max(*d.ChangesCount, 0), extraction.FieldCount)
		case d.Original != nil:
			rate.Correct += d.Fields.Matching(*d.Original)
		default:
			rate.Correct += d.Fields.Present()
			rate.PresenceOnly++
		}
	}

	if rate.PresenceOnly > 0 {
		slog.Warn("Recognition rate used presence-only scoring",
			"documents", rate.PresenceOnly,
			"reviewed", rate.Reviewed,
		)
	}

	return rate
}
