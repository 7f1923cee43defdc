package invoice

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	documentsSheet = "Documents"
	summarySheet   = "Summary"
)

var documentHeaders = []any{
	"ID",
	"File",
	"Status",
	"Invoice Number",
	"Invoice Date",
	"Amount",
	"Vendor",
	"Original Invoice Number",
	"Original Invoice Date",
	"Original Amount",
	"Original Vendor",
	"Missing Fields",
	"Confidence",
	"Accuracy",
	"Changes",
	"Scan Method",
	"Uploaded At",
	"Reviewed At",
}

// WriteWorkbook writes docs and their summary statistics as XLSX to w
func WriteWorkbook(w io.Writer, docs []*Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", documentsSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if err := f.SetSheetRow(documentsSheet, "A1", &documentHeaders); err != nil {
		return fmt.Errorf("writing headers: %w", err)
	}

	for i, d := range docs {
		var original [4]string
		if d.Original != nil {
			original = d.Original.Values()
		}
		changes := ""
		if d.ChangesCount != nil {
			changes = fmt.Sprint(*d.ChangesCount)
		}
		reviewedAt := ""
		if d.ReviewedAt != nil {
			reviewedAt = d.ReviewedAt.Format("2006-01-02 15:04:05")
		}

		row := []any{
			d.ID,
			d.Name,
			string(d.Status),
			d.Fields.InvoiceNumber,
			d.Fields.InvoiceDate,
			d.Fields.Amount,
			d.Fields.Vendor,
			original[0],
			original[1],
			original[2],
			original[3],
			strings.Join(d.MissingFields, ", "),
			d.Confidence,
			d.Accuracy,
			changes,
			d.ScanMethod,
			d.UploadedAt.Format("2006-01-02 15:04:05"),
			reviewedAt,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(documentsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(documentsSheet, "A", "A", 38)
	_ = f.SetColWidth(documentsSheet, "B", "B", 32)
	_ = f.SetColWidth(documentsSheet, "D", "K", 20)
	_ = f.SetColWidth(documentsSheet, "L", "L", 40)

	if err := writeSummary(f, ComputeStats(docs)); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, stats Stats) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}

	rows := [][]any{
		{"Documents", stats.Documents},
		{"Needs Review", stats.NeedsReview},
		{"Processed", stats.Processed},
		{"Rejected", stats.Rejected},
		{"Processing Time", stats.ProcessingTime},
		{"Recognition Rate", stats.RecognitionRate},
		{"Total Income", stats.TotalIncome},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)
	return nil
}
