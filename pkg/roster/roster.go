// Package roster inspects uploaded employee roster files.
package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("roster must be a .csv or .xlsx file")
	ErrMissingColumns    = errors.New("roster header must include name and email columns")
	ErrNoRows            = errors.New("roster has no employee rows")
	ErrTooLarge          = errors.New("roster file is too large")
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RequiredColumns must appear in the header row, in any order and case.
var RequiredColumns = []string{"name", "email"}

type Summary struct {
	Format      string
	ContentType string
	Columns     []string
	Rows        int
}

// Parse validates a roster and counts its non-empty data rows. maxBytes of
// zero disables the size check.
func Parse(filename string, data []byte, maxBytes int) (*Summary, error) {
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), maxBytes)
	}

	var (
		rows [][]string
		sum  Summary
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		sum.Format, sum.ContentType = FormatCSV, ContentTypeCSV
		rows, err = readCSV(data)
	case ".xlsx":
		sum.Format, sum.ContentType = FormatXLSX, ContentTypeXLSX
		rows, err = readXLSX(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrMissingColumns
	}

	for _, h := range rows[0] {
		sum.Columns = append(sum.Columns, strings.ToLower(strings.TrimSpace(h)))
	}
	for _, col := range RequiredColumns {
		if !slices.Contains(sum.Columns, col) {
			return nil, fmt.Errorf("%w: missing %q", ErrMissingColumns, col)
		}
	}

	for _, row := range rows[1:] {
		if !blankRow(row) {
			sum.Rows++
		}
	}
	if sum.Rows == 0 {
		return nil, ErrNoRows
	}
	return &sum, nil
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv roster: %w", err)
		}
		rows = append(rows, rec)
	}
}

// readXLSX reads the first sheet of the workbook.
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx roster: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx roster: %w", err)
	}
	return rows, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
