package spreadsheet

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/logging"
)

const (
	// Title, subtitle and header rows precede the data
	headerRows = 3
	codeColumn = 3
	nameColumn = 4
)

// Reader extracts hospital records from the ODS files matching a glob pattern
type Reader struct {
	Pattern string
}

// NewReader creates a reader for the given glob pattern
func NewReader(pattern string) *Reader {
	return &Reader{Pattern: pattern}
}

// ReadRecords implements interfaces.RecordReader
func (r *Reader) ReadRecords() ([]entities.HospitalRecord, error) {
	return ExtractRecords(r.Pattern)
}

// ExtractRecords reads every file matching pattern in sorted order. A hospital seen in
// several files keeps the code from the last file; records keep first-seen order.
// Files that cannot be read are logged and skipped.
func ExtractRecords(pattern string) ([]entities.HospitalRecord, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid source pattern %q: %w", pattern, err)
	}
	slices.Sort(files)

	index := make(map[string]int)
	var records []entities.HospitalRecord

	for _, file := range files {
		rows, err := ReadODS(file)
		if err != nil {
			logging.Warn("Skipping unreadable source file", "file", file, "error", err)
			continue
		}

		added := 0
		for _, row := range rows[min(headerRows, len(rows)):] {
			record, ok := recordFromRow(row)
			if !ok {
				continue
			}
			if i, seen := index[record.Name]; seen {
				records[i].InstitutionCode = record.InstitutionCode
				continue
			}
			index[record.Name] = len(records)
			records = append(records, record)
			added++
		}

		logging.Debug("Source file read", "file", filepath.Base(file), "rows", len(rows), "new_hospitals", added)
	}

	logging.Info("Hospital records extracted", "files", len(files), "hospitals", len(records))
	return records, nil
}

// recordFromRow keeps every row whose code and name cells are present. Surrounding
// whitespace is trimmed, but a whitespace-only name is kept as it is and ends up
// unclassified.
func recordFromRow(row []string) (entities.HospitalRecord, bool) {
	if len(row) <= nameColumn {
		return entities.HospitalRecord{}, false
	}
	code, name := row[codeColumn], row[nameColumn]
	if code == "" || name == "" {
		return entities.HospitalRecord{}, false
	}
	return entities.HospitalRecord{Name: trimmedOrRaw(name), InstitutionCode: trimmedOrRaw(code)}, true
}

func trimmedOrRaw(s string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return s
}
