package extraction

// Field names, in the fixed order used for missing-field reports.
const (
	FieldInvoiceNumber = "Invoice Number"
	FieldInvoiceDate   = "Invoice Date"
	FieldAmount        = "Amount"
	FieldVendor        = "Vendor"
)

// FieldCount is the number of fields tracked per invoice.
const FieldCount = 4

// FieldNames lists every field in report order.
var FieldNames = [FieldCount]string{
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldAmount,
	FieldVendor,
}

// Fields holds the four structured values pulled from an invoice.
// An empty string means the value is absent.
type Fields struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	Amount        string `json:"amount"`
	Vendor        string `json:"vendor"`
}

// Values returns the field values in FieldNames order.
func (f Fields) Values() [FieldCount]string {
	return [FieldCount]string{f.InvoiceNumber, f.InvoiceDate, f.Amount, f.Vendor}
}

// Missing lists the names of absent fields in FieldNames order.
func (f Fields) Missing() []string {
	missing := make([]string, 0, FieldCount)
	for i, v := range f.Values() {
		if v == "" {
			missing = append(missing, FieldNames[i])
		}
	}
	return missing
}

// Present counts non-empty fields.
func (f Fields) Present() int {
	n := 0
	for _, v := range f.Values() {
		if v != "" {
			n++
		}
	}
	return n
}

// Matching counts the fields whose values are equal in f and other.
func (f Fields) Matching(other Fields) int {
	a, b := f.Values(), other.Values()
	n := 0
	for i := range a {
		if a[i] == b[i] {
			n++
		}
	}
	return n
}

// Result is the output of one extraction run.
type Result struct {
	Fields
	MissingFields []string `json:"missing_fields"`

	// Rules names the cascade rule that produced each present field.
	Rules map[string]string `json:"rules,omitempty"`
}
