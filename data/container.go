// Package data provides thread-safe storage of the latest classification for the
// hospitals service, with atomic swaps for zero-downtime updates.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/nhi-hospitals/classifier"
	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/interfaces"
	"github.com/giygas/nhi-hospitals/logging"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds the latest pipeline results behind atomic values
type DataContainer struct {
	result          atomic.Value // *classifier.Result
	recordCount     atomic.Int64
	outcome         atomic.Value // *entities.DownloadOutcome
	fetchError      atomic.Value // string
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with an empty result
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.result.Store(classifier.NewResult())
	dc.outcome.Store((*entities.DownloadOutcome)(nil))
	dc.fetchError.Store("")
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetResult returns the latest classification, never nil
func (dc *DataContainer) GetResult() *classifier.Result {
	if v := dc.result.Load(); v != nil {
		if result, ok := v.(*classifier.Result); ok && result != nil {
			return result
		}
	}

	logging.Warn("Classification result is empty or invalid")
	return classifier.NewResult()
}

// GetRecordCount returns how many hospital records the latest result was built from
func (dc *DataContainer) GetRecordCount() int {
	return int(dc.recordCount.Load())
}

// GetOutcome returns the latest fetch outcome, or nil before the first successful fetch
func (dc *DataContainer) GetOutcome() *entities.DownloadOutcome {
	if v := dc.outcome.Load(); v != nil {
		if outcome, ok := v.(*entities.DownloadOutcome); ok {
			return outcome
		}
	}
	return nil
}

// GetFetchError returns the error of the last fetch run, empty when it succeeded
func (dc *DataContainer) GetFetchError() string {
	if v := dc.fetchError.Load(); v != nil {
		if msg, ok := v.(string); ok {
			return msg
		}
	}
	return ""
}

// GetLastUpdated returns the timestamp of the last classification update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a data update is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData atomically replaces the classification
func (dc *DataContainer) UpdateData(result *classifier.Result, recordCount int) {
	if result == nil {
		result = classifier.NewResult()
	}
	dc.result.Store(result)
	dc.recordCount.Store(int64(recordCount))
	dc.lastUpdated.Store(time.Now())
}

// UpdateOutcome records the result of a fetch run. A failed run keeps the previous outcome.
func (dc *DataContainer) UpdateOutcome(outcome *entities.DownloadOutcome, fetchErr error) {
	if fetchErr != nil {
		dc.fetchError.Store(fetchErr.Error())
		return
	}
	dc.fetchError.Store("")
	if outcome != nil {
		dc.outcome.Store(outcome)
	}
}

// BeginUpdate marks the start of a data update operation
// Returns true if update can proceed, false if another update is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a data update operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
