package scanning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultPDFConfidence is reported for text read from a PDF text layer.
const DefaultPDFConfidence = 95

// PDFText reads the text layer of a PDF page by page. PDFs without a text
// layer (scans) are rendered and passed to the OCR backend, when one is set.
type PDFText struct {
	ocr        Scanner
	confidence float64

	read   func(data []byte) ([]string, error)
	render func(data []byte) ([][]byte, error)
}

// NewPDFText creates a PDF reader. ocr may be nil.
func NewPDFText(ocr Scanner, confidence float64) *PDFText {
	if confidence <= 0 {
		confidence = DefaultPDFConfidence
	}
	return &PDFText{
		ocr:        ocr,
		confidence: confidence,
		read:       readPDFText,
		render:     renderPDFPages,
	}
}

// Scan extracts the text of every page, joined by newlines
func (p *PDFText) Scan(ctx context.Context, data []byte, _ string) (*Result, error) {
	pages, err := p.read(data)
	if err != nil {
		return nil, fmt.Errorf("reading PDF text layer: %w", err)
	}

	text := strings.TrimSpace(strings.Join(pages, "\n"))
	if text != "" {
		return &Result{
			Text:       text,
			Confidence: p.confidence,
			Method:     "pdf-text",
			Pages:      len(pages),
		}, nil
	}

	if p.ocr == nil {
		return nil, fmt.Errorf("PDF has no text layer and no OCR backend is configured")
	}
	return p.ocrPages(ctx, data)
}

func (p *PDFText) ocrPages(ctx context.Context, data []byte) (*Result, error) {
	images, err := p.render(data)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	texts := make([]string, 0, len(images))
	var conf float64
	for i, img := range images {
		res, err := p.ocr.Scan(ctx, img, TypePNG)
		if err != nil {
			return nil, fmt.Errorf("OCR of page %d: %w", i+1, err)
		}
		texts = append(texts, res.Text)
		conf += res.Confidence
	}

	return &Result{
		Text:       strings.TrimSpace(strings.Join(texts, "\n")),
		Confidence: conf / float64(len(images)),
		Method:     "pdf-ocr",
		Pages:      len(images),
	}, nil
}

// Close is a no-op; the OCR backend is owned by the caller
func (p *PDFText) Close() error {
	return nil
}

// readPDFText returns the text of each page via pdfcpu
func readPDFText(data []byte) ([]string, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	pages := make([]string, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d: %w", pageNr, err)
		}
		if r == nil {
			pages = append(pages, "")
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", pageNr, err)
		}
		pages = append(pages, contentText(content))
	}
	return pages, nil
}

// contentText walks a page content stream and returns the shown text. A change
// of baseline starts a new line and a horizontal move on the same baseline
// inserts a space, so labels stay on the line of their values.
func contentText(data []byte) string {
	var (
		out      strings.Builder
		numbers  []float64
		strs     []string
		y        float64
		lineY    float64
		haveLine bool
	)

	lineBreak := func() {
		if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
			out.WriteByte('\n')
		}
	}
	space := func() {
		s := out.String()
		if s != "" && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
			out.WriteByte(' ')
		}
	}
	moveTo := func(newY float64) {
		y = newY
		if haveLine && y == lineY {
			space()
		} else {
			lineBreak()
		}
		lineY, haveLine = y, true
	}
	show := func() {
		for _, s := range strs {
			out.WriteString(s)
		}
	}
	lastNumbers := func(n int) []float64 {
		if len(numbers) < n {
			return nil
		}
		return numbers[len(numbers)-n:]
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, n := readLiteral(data[i:])
			strs = append(strs, s)
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] == '<',
			c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			s, n := readHexString(data[i:])
			strs = append(strs, s)
			i += n
		case c == '[' || c == ']' || c == '{' || c == '}' || c == '>':
			i++
		case c == '/':
			_, n := readToken(data[i+1:])
			i += n + 1
		default:
			tok, n := readToken(data[i:])
			if n == 0 {
				i++
				continue
			}
			i += n
			if f, err := strconv.ParseFloat(tok, 64); err == nil {
				numbers = append(numbers, f)
				continue
			}

			switch tok {
			case "BT":
				y = 0
			case "Td", "TD":
				if v := lastNumbers(2); v != nil {
					if v[1] != 0 {
						moveTo(y + v[1])
					} else if v[0] != 0 {
						space()
					}
				}
			case "Tm":
				if v := lastNumbers(6); v != nil {
					moveTo(v[5])
				}
			case "T*":
				lineBreak()
				haveLine = false
			case "Tj", "TJ":
				show()
			case "'", "\"":
				lineBreak()
				haveLine = false
				show()
			case "ID":
				i += skipInlineImage(data[i:])
			}
			numbers = numbers[:0]
			strs = strs[:0]
		}
	}

	return strings.TrimSpace(out.String())
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func readToken(data []byte) (string, int) {
	n := 0
	for n < len(data) && !isPDFSpace(data[n]) && !isPDFDelimiter(data[n]) {
		n++
	}
	return string(data[:n]), n
}

// readLiteral decodes a (string) including nested parentheses and escapes.
// data starts at the opening parenthesis.
func readLiteral(data []byte) (string, int) {
	var sb strings.Builder
	depth := 0
	i := 0
	for ; i < len(data); i++ {
		c := data[i]
		switch c {
		case '(':
			depth++
			if depth == 1 {
				continue
			}
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
		case '\\':
			if i+1 >= len(data) {
				continue
			}
			i++
			switch e := data[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(e)
				}
			}
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String(), i
}

// readHexString decodes a <hex> string. Strings that do not decode to
// printable text (glyph ids of composite fonts) are dropped.
func readHexString(data []byte) (string, int) {
	end := bytes.IndexByte(data, '>')
	if end == -1 {
		return "", len(data)
	}
	var digits []byte
	for _, c := range data[1:end] {
		if !isPDFSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	decoded := make([]byte, 0, len(digits)/2)
	for k := 0; k < len(digits); k += 2 {
		v, err := strconv.ParseUint(string(digits[k:k+2]), 16, 8)
		if err != nil {
			return "", end + 1
		}
		decoded = append(decoded, byte(v))
	}
	for _, r := range string(decoded) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return "", end + 1
		}
	}
	return string(decoded), end + 1
}

// skipInlineImage skips binary inline image data up to the EI operator.
func skipInlineImage(data []byte) int {
	for k := 0; k+2 < len(data); k++ {
		if isPDFSpace(data[k]) && data[k+1] == 'E' && data[k+2] == 'I' &&
			(k+3 == len(data) || isPDFSpace(data[k+3])) {
			return k + 3
		}
	}
	return len(data)
}
