// Package spreadsheet merges uploaded workbooks into one.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the single sheet in a combined workbook.
const SheetName = "Combined Data"

// ErrNoData is returned when none of the inputs could be read.
var ErrNoData = errors.New("no readable spreadsheets")

// Input is one workbook to combine
type Input struct {
	Name string
	Data io.Reader
}

// Skipped names an input that could not be read
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report describes a combine run
type Report struct {
	Files   int       `json:"files"`
	Rows    int       `json:"rows"`
	Columns []string  `json:"columns"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

type table struct {
	header []string
	rows   [][]string
}

// Combine reads the first sheet of every input, treating its first row as
// the header, and writes all rows to one sheet. Columns are matched by header
// name and ordered by first appearance; cells missing from an input stay empty.
// Unreadable inputs are skipped and reported.
func Combine(w io.Writer, inputs []Input) (*Report, error) {
	report := &Report{}
	var tables []table

	for _, in := range inputs {
		t, err := readTable(in.Data)
		if err != nil {
			slog.Warn("Skipping spreadsheet", "name", in.Name, "error", err)
			report.Skipped = append(report.Skipped, Skipped{Name: in.Name, Reason: err.Error()})
			continue
		}
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return report, ErrNoData
	}

	index := make(map[string]int)
	for _, t := range tables {
		for _, h := range t.header {
			if _, ok := index[h]; !ok {
				index[h] = len(report.Columns)
				report.Columns = append(report.Columns, h)
			}
		}
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}

	header := make([]any, len(report.Columns))
	for i, c := range report.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	rowNum := 2
	for _, t := range tables {
		for _, r := range t.rows {
			out := make([]any, len(report.Columns))
			for i, v := range r {
				if i < len(t.header) {
					out[index[t.header[i]]] = cellValue(v)
				}
			}
			cell, _ := excelize.CoordinatesToCellName(1, rowNum)
			if err := f.SetSheetRow(SheetName, cell, &out); err != nil {
				return nil, fmt.Errorf("writing row %d: %w", rowNum, err)
			}
			rowNum++
		}
	}
	report.Files = len(tables)
	report.Rows = rowNum - 2

	if err := f.Write(w); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return report, nil
}

func readTable(r io.Reader) (table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return table{}, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return table{}, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return table{}, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return table{}, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	t := table{header: headerNames(rows[0])}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		if len(row) > len(t.header) {
			t.header = headerNames(append(rows[0], make([]string, len(row)-len(rows[0]))...))
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// headerNames names blank header cells "Unnamed: N" and suffixes repeated
// names with ".1", ".2", ...
func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := make(map[string]int)
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = h + "." + strconv.Itoa(n)
		} else {
			seen[h] = 1
		}
		names[i] = h
	}
	return names
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cellValue keeps numbers numeric in the output workbook.
func cellValue(v string) any {
	if v == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}

var reUnsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// OutputFilename returns a safe .xlsx file name for the combined workbook.
// An empty name becomes "combined_<id>.xlsx".
func OutputFilename(name, id string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.Trim(reUnsafeFilename.ReplaceAllString(name, ""), "._")
	if name == "" {
		name = "combined_" + id
	}
	if !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		name += ".xlsx"
	}
	return name
}
