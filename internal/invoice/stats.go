package invoice

import (
	"fmt"
	"regexp"
	"strconv"
)

// Stats is the dashboard summary over every stored document
type Stats struct {
	Documents         int     `json:"documents"`
	NeedsReview       int     `json:"needs_review"`
	Processed         int     `json:"processed"`
	Rejected          int     `json:"rejected"`
	ProcessingSeconds float64 `json:"processing_seconds"`
	ProcessingTime    string  `json:"processing_time"`
	AverageConfidence float64 `json:"average_confidence"`
	TotalAmount       float64 `json:"total_amount"`
	TotalIncome       string  `json:"total_income"`

	RecognitionRate      string          `json:"recognition_rate"`
	RecognitionBreakdown RecognitionRate `json:"recognition_breakdown"`
}

var leadingNumber = regexp.MustCompile(`^\d*\.?\d+`)

// parseAmount reads the leading number of an amount; unparseable amounts are 0.
func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(leadingNumber.FindString(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// ComputeStats summarizes docs. It is a pure function of its input.
func ComputeStats(docs []*Document) Stats {
	var s Stats
	var confidence float64

	for _, d := range docs {
		s.Documents++
		switch d.Status {
		case StatusNeedsReview:
			s.NeedsReview++
		case StatusProcessed:
			s.Processed++
		case StatusRejected:
			s.Rejected++
		}
		s.ProcessingSeconds += d.ProcessingSeconds
		s.TotalAmount += parseAmount(d.Fields.Amount)
		confidence += d.Confidence
	}

	if s.Documents > 0 {
		s.AverageConfidence = confidence / float64(s.Documents)
	}
	s.ProcessingTime = fmt.Sprintf("%.1fs", s.ProcessingSeconds)
	s.TotalIncome = fmt.Sprintf("$%.2f", s.TotalAmount)

	s.RecognitionBreakdown = ComputeRecognitionRate(docs)
	s.RecognitionRate = s.RecognitionBreakdown.String()

	return s
}
