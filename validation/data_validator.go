// Package validation checks user input and extracted hospital records for the hospitals service.
package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/giygas/nhi-hospitals/classifier"
	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/interfaces"
	"github.com/giygas/nhi-hospitals/logging"
)

const (
	maxNameLength = 100 // runes
	maxCodeLength = 10
	nhiCodeLength = 10
	maxRepetition = 10
)

var (
	// Hospital names: Han and other letters, digits, spaces and the punctuation used
	// in institution names such as 醫療財團法人(...)附設醫院
	inputRegex = regexp.MustCompile(`^[\p{Han}\p{L}\p{N}\s\-\.·・'()（）、]+$`)

	// Matched case-insensitively with strings.Contains
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(", "@import",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct {
	rules *classifier.Rules
}

// NewDataValidator creates a new data validator. rules supplies the code table used by
// ReportDataQuality; nil skips the unknown prefix check.
func NewDataValidator(rules *classifier.Rules) interfaces.DataValidator {
	return &DataValidatorImpl{rules: rules}
}

// ValidateInput validates a hospital name typed by an API client
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if !utf8.ValidString(input) {
		return fmt.Errorf("input is not valid UTF-8")
	}

	if utf8.RuneCountInString(input) > maxNameLength {
		return fmt.Errorf("input too long: maximum %d characters", maxNameLength)
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces and name punctuation are allowed")
	}

	if hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateCode validates an optional institution code. Empty is accepted; anything
// else must be up to 10 ASCII digits.
func (v *DataValidatorImpl) ValidateCode(input string) error {
	if input == "" {
		return nil
	}

	if len(input) > maxCodeLength {
		return fmt.Errorf("code too long: maximum %d digits", maxCodeLength)
	}

	if !isDigits(input) {
		return fmt.Errorf("code contains invalid characters. Only numeric characters are allowed")
	}

	return nil
}

// ValidateRecords rejects an extraction that produced nothing usable
func (v *DataValidatorImpl) ValidateRecords(records []entities.HospitalRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("no hospital records found")
	}

	for _, record := range records {
		if strings.TrimSpace(record.Name) != "" {
			return nil
		}
	}

	return fmt.Errorf("all %d hospital records have empty names", len(records))
}

// ReportDataQuality lists malformed and shared institution codes, and counts codes
// whose prefix the code table does not know. Lists are sorted.
func (v *DataValidatorImpl) ReportDataQuality(records []entities.HospitalRecord) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		TotalRecords:   len(records),
		InvalidCodes:   []string{},
		DuplicateCodes: []string{},
	}

	namesByCode := make(map[string]map[string]bool)
	for _, record := range records {
		code := record.InstitutionCode
		if code == "" {
			continue
		}

		if len(code) != nhiCodeLength || !isDigits(code) {
			report.InvalidCodes = append(report.InvalidCodes, code)
		}

		if namesByCode[code] == nil {
			namesByCode[code] = make(map[string]bool)
		}
		namesByCode[code][record.Name] = true

		if v.rules != nil && !v.knownPrefix(code) {
			report.UnknownPrefix++
		}
	}

	for code, names := range namesByCode {
		if len(names) > 1 {
			report.DuplicateCodes = append(report.DuplicateCodes, code)
		}
	}

	slices.Sort(report.InvalidCodes)
	report.InvalidCodes = slices.Compact(report.InvalidCodes)
	slices.Sort(report.DuplicateCodes)

	if len(report.InvalidCodes) > 0 || len(report.DuplicateCodes) > 0 {
		logging.Warn("Data quality issues detected",
			"invalid_codes", len(report.InvalidCodes),
			"duplicate_codes", len(report.DuplicateCodes),
			"unknown_prefix", report.UnknownPrefix,
		)
	}

	return report
}

func (v *DataValidatorImpl) knownPrefix(code string) bool {
	for _, n := range []int{4, 2} {
		if len(code) < n {
			continue
		}
		if _, ok := v.rules.CodeToCity[code[:n]]; ok {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// hasExcessiveRepetition reports the same rune repeated more than maxRepetition times in a row
func hasExcessiveRepetition(input string) bool {
	var prev rune = -1
	run := 0
	for _, r := range input {
		if r == prev {
			run++
			if run > maxRepetition {
				return true
			}
			continue
		}
		prev, run = r, 1
	}
	return false
}
