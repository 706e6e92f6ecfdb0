// Package entities holds the plain data types shared by the classifier and fetcher pipelines.
package entities

// HospitalRecord is one hospital row extracted from a nurse-to-patient ratio spreadsheet.
// InstitutionCode is empty when the source row carried no code.
type HospitalRecord struct {
	Name            string `json:"name"`
	InstitutionCode string `json:"institution_code,omitempty"`
}
