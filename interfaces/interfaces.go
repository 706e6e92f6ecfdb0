// Package interfaces defines the core abstractions of the hospitals service
// so that pipelines, storage and HTTP layers can be tested in isolation.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/nhi-hospitals/classifier"
	"github.com/giygas/nhi-hospitals/entities"
)

// DataQualityReport summarises problems found in extracted hospital records
type DataQualityReport struct {
	TotalRecords   int
	InvalidCodes   []string // codes that are not 10 digits
	DuplicateCodes []string // codes shared by more than one hospital name
	UnknownPrefix  int      // records whose code prefix is not in the code table
}

// DataStore provides thread-safe access to the latest classification
// with atomic swaps for zero-downtime updates.
type DataStore interface {
	// Data retrieval methods
	GetResult() *classifier.Result
	GetRecordCount() int
	GetOutcome() *entities.DownloadOutcome
	GetFetchError() string
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateData(result *classifier.Result, recordCount int)
	UpdateOutcome(outcome *entities.DownloadOutcome, fetchErr error)
	BeginUpdate() bool
	EndUpdate()
}

// PageFetcher downloads the listing page
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// FileFetcher downloads one release file
type FileFetcher interface {
	FetchFile(ctx context.Context, url string) ([]byte, error)
}

// HistoryStore persists the file name to version map between runs
type HistoryStore interface {
	Load() entities.DownloadHistory
	Save(history entities.DownloadHistory) error
}

// ReleaseChecker compares the listing page against the history and downloads what changed
type ReleaseChecker interface {
	CheckAndDownload(ctx context.Context) (*entities.DownloadOutcome, error)
}

// RecordReader extracts hospital records from the downloaded spreadsheets
type RecordReader interface {
	ReadRecords() ([]entities.HospitalRecord, error)
}

// ResultSink receives every classification produced by the service
type ResultSink interface {
	Export(ctx context.Context, runID string, result *classifier.Result) error
}

// Scheduler manages the periodic fetch and classify runs
type Scheduler interface {
	Start() error
	Stop()
}

// HTTPHandler defines the API endpoints
type HTTPHandler interface {
	ServeHospitals(w http.ResponseWriter, r *http.Request)
	ServeRegion(w http.ResponseWriter, r *http.Request)
	ClassifyHospital(w http.ResponseWriter, r *http.Request)
	ServeUnclassified(w http.ResponseWriter, r *http.Request)
	ServeReleases(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports system health
type HealthChecker interface {
	// HealthCheck returns current system health status and the HTTP code to answer with
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled update time
	CalculateNextUpdate() time.Time
}

// DataValidator checks user input and extracted records
type DataValidator interface {
	// ValidateInput validates a free text hospital name
	ValidateInput(input string) error

	// ValidateCode validates an optional institution code
	ValidateCode(input string) error

	// ValidateRecords rejects record sets that cannot be classified at all
	ValidateRecords(records []entities.HospitalRecord) error

	// ReportDataQuality generates a data quality report with all issues found
	ReportDataQuality(records []entities.HospitalRecord) *DataQualityReport
}
