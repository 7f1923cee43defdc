package extraction

import (
	"regexp"
	"strings"
)

var (
	reCRLF          = regexp.MustCompile(`\r\n?`)
	reTabs          = regexp.MustCompile(`\t+`)
	reInvoiceNumber = regexp.MustCompile(`[^A-Za-z0-9-]`)
	reAmount        = regexp.MustCompile(`[^0-9.]`)
	reDateSep       = regexp.MustCompile(`[-/.]`)
)

// CleanText unifies line endings and strips trailing spaces so the line
// oriented heuristics see one logical line per physical line. Line breaks are
// kept as-is.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.Join(lines, "\n")
}

// NormalizeInvoiceNumber trims the value and drops everything that is not
// alphanumeric or a hyphen.
func NormalizeInvoiceNumber(v string) string {
	return reInvoiceNumber.ReplaceAllString(strings.TrimSpace(v), "")
}

// NormalizeDate rejoins a three part date with "/". Day/month order is left as
// found. Anything that does not split into exactly three parts is returned
// unchanged.
func NormalizeDate(v string) string {
	parts := reDateSep.Split(v, -1)
	if len(parts) != 3 {
		return v
	}
	return strings.Join(parts, "/")
}

// NormalizeAmount keeps only digits and the decimal point.
func NormalizeAmount(v string) string {
	return reAmount.ReplaceAllString(v, "")
}

// NormalizeVendor is the identity; the extractor already trimmed it.
func NormalizeVendor(v string) string {
	return v
}

// Normalize applies the per-field normalizers. Absent fields stay absent.
func Normalize(f Fields) Fields {
	if f.InvoiceNumber != "" {
		f.InvoiceNumber = NormalizeInvoiceNumber(f.InvoiceNumber)
	}
	if f.InvoiceDate != "" {
		f.InvoiceDate = NormalizeDate(f.InvoiceDate)
	}
	if f.Amount != "" {
		f.Amount = NormalizeAmount(f.Amount)
	}
	if f.Vendor != "" {
		f.Vendor = NormalizeVendor(f.Vendor)
	}
	return f
}
