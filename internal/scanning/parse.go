package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// transcriptionPrompt is the shared prompt used by the LLM backends. They are
// used as OCR engines only; field extraction happens downstream.
const transcriptionPrompt = `You are an OCR engine. Transcribe ALL text visible in this invoice image exactly as printed.

Rules:
- Keep the original line breaks: one printed line per output line.
- Keep labels, punctuation, currency symbols and number formatting unchanged (e.g. "Invoice # AB-123", "Total: $1,234.56").
- Do not summarize, translate, reorder or correct anything.
- Estimate how confident you are in the transcription as a number from 0 to 100.

Return ONLY valid JSON in this exact format:
{
  "text": "full transcription with \n line breaks",
  "confidence": 0
}

Do not include any text before or after the JSON and do not use markdown code blocks.`

type transcription struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// parseTranscriptionJSON parses the JSON response of an LLM backend
func parseTranscriptionJSON(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data transcription
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	return &Result{
		Text:       strings.TrimSpace(data.Text),
		Confidence: normalizeConfidence(data.Confidence),
		Pages:      1,
	}, nil
}

// normalizeConfidence maps a model-reported score onto 0-100. Scores in (0, 1]
// are treated as fractions. A missing score is 0.
func normalizeConfidence(c *float64) float64 {
	if c == nil {
		return 0
	}
	v := *c
	if v > 0 && v <= 1 {
		v *= 100
	}
	return max(0, min(100, v))
}
