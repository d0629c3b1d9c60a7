package extract

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// DefaultTabularMIMETypes is the tabular allow-list applied when none
// is configured. Entries are matched as prefixes of the file MIME type.
var DefaultTabularMIMETypes = []string{
	"csv",
	"xlsx",
	"text/csv",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// IsTabular reports whether the MIME type identifies a tabular file that
// should be stored as schema plus rows in addition to chunked text. An
// empty types list falls back to DefaultTabularMIMETypes.
func IsTabular(mimeType string, types []string) bool {
	if len(types) == 0 {
		types = DefaultTabularMIMETypes
	}
	for _, t := range types {
		if strings.HasPrefix(mimeType, t) {
			return true
		}
	}
	return false
}

// Schema returns the header row of a CSV file. Malformed input yields an
// empty slice; a file with a broken header is still chunked as text.
func Schema(raw []byte) []string {
	r := newCSVReader(raw)
	header, err := r.Read()
	if err != nil {
		if err != io.EOF {
			logger.Warn("extract: failed to read CSV header: %v", err)
		}
		return nil
	}
	return header
}

// Rows returns the data rows of a CSV file as maps keyed by column name.
// Rows with fewer fields than the header omit the missing columns; extra
// fields are dropped. Malformed input yields an empty slice.
func Rows(raw []byte) []map[string]any {
	r := newCSVReader(raw)
	header, err := r.Read()
	if err != nil {
		if err != io.EOF {
			logger.Warn("extract: failed to read CSV header: %v", err)
		}
		return nil
	}

	var rows []map[string]any
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("extract: failed to read CSV row: %v", err)
			return nil
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func newCSVReader(raw []byte) *csv.Reader {
	r := csv.NewReader(strings.NewReader(decodeLossy(raw)))
	r.FieldsPerRecord = -1
	return r
}
