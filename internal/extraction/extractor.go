package extraction

import (
	"regexp"
	"strings"
)

const (
	dateToken   = `\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}`
	amountToken = `[$£€]?\s*(\d[\d,]*(?:\.\d+)?)`
)

// vendorHeaderLines bounds the company-suffix search; vendor identity is
// printed near the top of an invoice.
const vendorHeaderLines = 5

var invoiceNumberRules = cascade{
	pattern("invoice-hash", `(?i)invoice\s*#\s*:?\s*([A-Z0-9][A-Z0-9-]*)`),
	pattern("invoice-number-label", `(?i)invoice\s*(?:number\b|no\b\.?|n[°º]\.?)\s*[:#]?\s*([A-Z0-9-]*\d[A-Z0-9-]*)`),
	pattern("inv-token", `(?i)\b(INV[-#]?\d[A-Z0-9-]*)`),
	pattern("inv-label", `(?i)\bINV\b\.?\s*[#:]?\s*([A-Z0-9-]*\d[A-Z0-9-]*)`),
	pattern("number-sign", `(?i)\bN[o°º]\.?\s*[:#]?\s*(\d[A-Z0-9-]*)`),
	pattern("us-reference", `(?i)\bUS-\d+`),
	nearKeyword("invoice-line", keywordScan{
		keywords: []string{"invoice"},
		exclude:  []string{"date", "total", "due"},
		tokens: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:invoice|number)\D*?(\d[\w-]*)`),
			regexp.MustCompile(`(\d[\w-]*)`),
		},
		label: regexp.MustCompile(`(?i)^\s*invoice\s*(?:#|no\.?|number|n[°º])?\s*:?\s*$`),
	}),
	pattern("digit-run", `\d{5,7}`),
}

var invoiceDateRules = cascade{
	pattern("invoice-date-label", `(?i)invoice\s*date\s*:?\s*(`+dateToken+`)\b`),
	pattern("date-label", `(?i)date\s*:?\s*(`+dateToken+`)\b`),
	pattern("dotted", `\b(\d{2}\.\d{2}\.\d{4})\b`),
	pattern("slashed", `\b(\d{2}/\d{2}/\d{4})\b`),
	pattern("dashed", `\b(\d{2}-\d{2}-\d{4})\b`),
	pattern("short-year", `\b(\d{2}[-/.]\d{2}[-/.]\d{2})\b`),
	nearKeyword("date-line", keywordScan{
		keywords: []string{"date"},
		tokens: []*regexp.Regexp{
			regexp.MustCompile(`(?i)date.*?(` + dateToken + `)`),
			regexp.MustCompile(`(` + dateToken + `)`),
		},
		label: regexp.MustCompile(`(?i)^\s*(?:invoice\s*)?date\s*:?\s*$`),
	}),
	pattern("bare-date", `\b(`+dateToken+`)\b`),
}

var amountRules = cascade{
	onLines("total-usd", `(?i)total\s*\(usd\)\s*:?\s*`+amountToken, isSubtotalLine),
	onLines("grand-total", `(?i)grand\s*total\s*:?\s*`+amountToken, isSubtotalLine),
	onLines("amount-due", `(?i)amount\s*due\s*:?\s*`+amountToken, isSubtotalLine),
	onLines("total-amount", `(?i)total\s*amount\s*:?\s*`+amountToken, isSubtotalLine),
	onLines("total", `(?i)\btotal\s*:?\s*`+amountToken, isSubtotalLine),
	pattern("subtotal", `(?i)sub[\s-]*total\s*:?\s*`+amountToken),
	pattern("currency", `[$£€]\s*(\d[\d,]*(?:\.\d+)?)`),
	nearKeyword("total-line", keywordScan{
		keywords: []string{"total"},
		exclude:  []string{"subtotal", "sub total", "sub-total"},
		tokens:   []*regexp.Regexp{regexp.MustCompile(amountToken)},
		label:    regexp.MustCompile(`(?i)^\s*(?:grand\s*)?total(?:\s*due)?\s*:?\s*$`),
		reverse:  true,
	}),
}

var vendorRules = cascade{
	pattern("bill-from-block", `(?im)^[ \t]*bill[ \t]*from[ \t]*:?[ \t]*\n[ \t]*([^\n]*\S)`),
	pattern("from-block", `(?im)^[ \t]*from[ \t]*:?[ \t]*\n[ \t]*([^\n]*\S)`),
	pattern("bill-from-inline", `(?i)bill[ \t]*from[ \t]*:?[ \t]*([A-Za-z0-9][^\n]*)`),
	pattern("from-inline", `(?im)(?:^|[ \t])from[ \t]*:[ \t]*([A-Za-z0-9][^\n]*)`),
	pattern("from-caps", `(?m)\bFROM[ \t]+([A-Za-z0-9][^\n]*)`),
	leadingLine("company-suffix", vendorHeaderLines, "Inc.", "Ltd", "LLC", "Company"),
}

func isSubtotalLine(line string) bool {
	l := strings.ToLower(line)
	l = strings.NewReplacer(" ", "", "-", "").Replace(l)
	return strings.Contains(l, "subtotal")
}

// Extractor turns raw invoice text into Fields using one cascade per field.
type Extractor struct {
	invoiceNumber cascade
	invoiceDate   cascade
	amount        cascade
	vendor        cascade
}

// NewExtractor returns an Extractor with the built-in cascades.
func NewExtractor() *Extractor {
	return &Extractor{
		invoiceNumber: invoiceNumberRules,
		invoiceDate:   invoiceDateRules,
		amount:        amountRules,
		vendor:        vendorRules,
	}
}

// Extract runs every cascade over text and normalizes the results. Fields that
// no rule finds, or that normalize to nothing, are reported as missing.
func (e *Extractor) Extract(text string) Result {
	text = CleanText(text)

	var raw Fields
	rules := make(map[string]string, FieldCount)
	var name string

	raw.InvoiceNumber, name = e.invoiceNumber.run(text)
	rules[FieldInvoiceNumber] = name
	raw.InvoiceDate, name = e.invoiceDate.run(text)
	rules[FieldInvoiceDate] = name
	raw.Amount, name = e.amount.run(text)
	rules[FieldAmount] = name
	raw.Vendor, name = e.vendor.run(text)
	rules[FieldVendor] = name

	fields := Normalize(raw)
	for i, v := range fields.Values() {
		if v == "" {
			delete(rules, FieldNames[i])
		}
	}

	return Result{
		Fields:        fields,
		MissingFields: fields.Missing(),
		Rules:         rules,
	}
}

// Rules lists the rule names of each cascade in evaluation order, keyed by
// field name.
func (e *Extractor) Rules() map[string][]string {
	return map[string][]string{
		FieldInvoiceNumber: e.invoiceNumber.names(),
		FieldInvoiceDate:   e.invoiceDate.names(),
		FieldAmount:        e.amount.names(),
		FieldVendor:        e.vendor.names(),
	}
}

var defaultExtractor = NewExtractor()

// Extract runs the default Extractor.
func Extract(text string) Result {
	return defaultExtractor.Extract(text)
}
