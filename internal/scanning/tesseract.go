package scanning

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		slog.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		slog.Debug("exec ok",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// Tesseract implements the Scanner interface with the tesseract CLI. One run
// in TSV mode yields both the words and their per-word confidence.
type Tesseract struct {
	bin     string
	lang    string
	psm     int
	runner  Runner
	tempDir string
}

// TesseractOption configures a Tesseract scanner.
type TesseractOption func(*Tesseract)

// WithRunner replaces the command runner.
func WithRunner(r Runner) TesseractOption {
	return func(t *Tesseract) { t.runner = r }
}

// WithLanguage sets the tesseract language pack, e.g. "eng+fra".
func WithLanguage(lang string) TesseractOption {
	return func(t *Tesseract) { t.lang = lang }
}

// WithPageSegmentation sets tesseract's --psm mode.
func WithPageSegmentation(psm int) TesseractOption {
	return func(t *Tesseract) { t.psm = psm }
}

// WithTempDir sets where images are staged for the CLI.
func WithTempDir(dir string) TesseractOption {
	return func(t *Tesseract) { t.tempDir = dir }
}

// NewTesseract creates a Tesseract scanner. bin defaults to "tesseract" on PATH.
func NewTesseract(bin string, opts ...TesseractOption) *Tesseract {
	if bin == "" {
		bin = "tesseract"
	}
	t := &Tesseract{
		bin:    bin,
		lang:   "eng",
		runner: execRunner{},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Scan runs tesseract over an image
func (t *Tesseract) Scan(ctx context.Context, data []byte, contentType string) (*Result, error) {
	pngData, _, err := prepareImageData(data, contentType)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(t.tempDir, "invoice-*.png")
	if err != nil {
		return nil, fmt.Errorf("creating temp image: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(pngData); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing temp image: %w", err)
	}

	// tesseract <file> stdout -l <lang> [--psm N] tsv
	args := []string{f.Name(), "stdout", "-l", t.lang}
	if t.psm > 0 {
		args = append(args, "--psm", strconv.Itoa(t.psm))
	}
	args = append(args, "tsv")

	out, stderr, err := t.runner.Run(ctx, t.bin, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(stderr)), 512))
	}

	text, conf := parseTSV(string(out))
	return &Result{
		Text:       text,
		Confidence: conf,
		Method:     "tesseract",
		Pages:      1,
	}, nil
}

// Close is a no-op
func (t *Tesseract) Close() error {
	return nil
}

// TSV columns: level page_num block_num par_num line_num word_num left top
// width height conf text
const (
	tsvColumns = 12
	tsvConf    = 10
	tsvText    = 11
)

// parseTSV rebuilds the page text from tesseract TSV output, one output line
// per recognized line, and returns the mean word confidence (0-100).
func parseTSV(out string) (string, float64) {
	var (
		sb       strings.Builder
		lastLine string
		sum      float64
		n        int
	)

	for i, ln := range strings.Split(out, "\n") {
		if i == 0 && strings.HasPrefix(ln, "level") {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < tsvColumns {
			continue
		}
		word := strings.TrimSpace(cols[tsvText])
		if word == "" || cols[tsvConf] == "-1" {
			continue
		}

		key := strings.Join(cols[1:5], ".")
		switch {
		case sb.Len() == 0:
		case key != lastLine:
			sb.WriteByte('\n')
		default:
			sb.WriteByte(' ')
		}
		lastLine = key
		sb.WriteString(word)

		if v, err := strconv.ParseFloat(cols[tsvConf], 64); err == nil {
			sum += v
			n++
		}
	}

	if n == 0 {
		return sb.String(), 0
	}
	return sb.String(), sum / float64(n)
}
