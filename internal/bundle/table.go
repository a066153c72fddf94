package bundle

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a decoded sheet: a header row plus data rows padded to the
// header width. Row numbers used in reports are 1-based with the header as 1.
type Table struct {
	Source  string
	Headers []string
	Rows    [][]string
}

// IsSpreadsheet reports whether name has an extension ReadTable understands.
func IsSpreadsheet(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	default:
		return false
	}
}

// ReadTable decodes an .xlsx/.xlsm workbook (active sheet) or a .csv file.
func ReadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, &MalformedError{Source: path, Err: err}
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, path)
	case ".csv":
		return ReadCSV(f, path)
	default:
		return Table{}, &MalformedError{Source: path, Err: fmt.Errorf("unsupported table format %q", filepath.Ext(path))}
	}
}

// ReadXLSX reads the active sheet of a workbook, falling back to the first.
func ReadXLSX(r io.Reader, source string) (Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, &MalformedError{Source: source, Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, &MalformedError{Source: source, Err: errors.New("no sheets in workbook")}
	}
	sheet := wb.GetSheetName(wb.GetActiveSheetIndex())
	if sheet == "" {
		sheet = sheets[0]
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return Table{}, &MalformedError{Source: source, Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}
	return newTable(source, rows)
}

// ReadCSV reads a comma separated table with a header line.
func ReadCSV(r io.Reader, source string) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return Table{}, &MalformedError{Source: source, Err: fmt.Errorf("read csv: %w", err)}
	}
	return newTable(source, rows)
}

func newTable(source string, rows [][]string) (Table, error) {
	if len(rows) == 0 {
		return Table{}, &MalformedError{Source: source, Err: errors.New("table has no header row")}
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		for len(row) < len(headers) {
			row = append(row, "")
		}
		data = append(data, row)
	}
	return Table{Source: source, Headers: headers, Rows: data}, nil
}
