// Package sheet reads uploaded recipient lists. The first row is the header; every
// following non-blank row becomes a Row keyed by header name.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	ColumnName   = "Name"
	ColumnNumber = "WhatsAppNumber"

	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeZip  = "application/zip"
	mimeText = "text/plain"
)

var (
	ErrEmptyInput     = errors.New("sheet has no data rows")
	ErrMalformedInput = errors.New("sheet is not readable tabular data")
)

// Row maps a header name to the cell value of one data row.
type Row map[string]string

// Record projects the row onto the columns this service needs.
func (r Row) Record() model.RecipientRecord {
	return model.RecipientRecord{Name: r[ColumnName], RawNumber: r[ColumnNumber]}
}

// Extract reads the file at path and returns its data rows in file order.
func Extract(path string) ([]Row, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}
	if st.Size() == 0 {
		return nil, ErrEmptyInput
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect type: %w", err)
	}

	var table [][]string
	switch kindOf(mt) {
	case mimeXLSX:
		table, err = readWorkbook(path)
	case mimeText:
		table, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrMalformedInput, mt.String())
	}
	if err != nil {
		return nil, err
	}

	return toRows(table)
}

// Records converts rows into recipient records, keeping order.
func Records(rows []Row) []model.RecipientRecord {
	out := make([]model.RecipientRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Record())
	}
	return out
}

func kindOf(mt *mimetype.MIME) string {
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is(mimeXLSX), m.Is(mimeZip):
			return mimeXLSX
		case m.Is(mimeText):
			return mimeText
		}
	}
	return ""
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedInput)
	}

	// raw values keep long phone numbers out of scientific notation
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		rows = append(rows, rec)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func toRows(table [][]string) ([]Row, error) {
	if len(table) == 0 {
		return nil, ErrEmptyInput
	}

	header := make([]string, len(table[0]))
	seen := make(map[string]bool, len(header))
	for i, h := range table[0] {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		header[i] = h
	}
	for _, col := range []string{ColumnName, ColumnNumber} {
		if !seen[col] {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedInput, col)
		}
	}

	rows := make([]Row, 0, len(table)-1)
	for _, cells := range table[1:] {
		row := make(Row, len(header))
		for i, v := range cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				row[header[i]] = v
			}
		}
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	return rows, nil
}
