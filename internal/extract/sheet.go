package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSX emits one line per non-empty row across all sheets. Workbooks with
// more than one sheet prefix each row with its sheet name.
func XLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", unparseable("xlsx", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var lines []string
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", unparseable("xlsx", err)
		}
		for _, row := range rows {
			line := joinRow(row)
			if line == "" {
				continue
			}
			if len(sheets) > 1 {
				line = sheet + ": " + line
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// CSV emits one line per non-empty record. Ragged rows are accepted.
func CSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\uFEFF"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var lines []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", unparseable("csv", err)
		}
		if line := joinRow(record); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func joinRow(cells []string) string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		c = strings.Join(strings.Fields(c), " ")
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, ", ")
}
