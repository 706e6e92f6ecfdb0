// Package health provides health checking functionality for the hospitals service.
package health

import (
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/giygas/nhi-hospitals/interfaces"
)

const (
	degradedAge  = 25 * time.Hour
	unhealthyAge = 49 * time.Hour
	stuckUpdate  = 6 * time.Hour
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore   interfaces.DataStore
	updateTimes []time.Duration // offsets from midnight, sorted
	now         func() time.Time
}

// NewHealthChecker creates a health checker. updateTimes is the scheduler's
// semicolon separated HH:MM list; unparsable entries are ignored.
func NewHealthChecker(dataStore interfaces.DataStore, updateTimes string) *HealthCheckerImpl {
	return &HealthCheckerImpl{
		dataStore:   dataStore,
		updateTimes: parseUpdateTimes(updateTimes),
		now:         time.Now,
	}
}

func parseUpdateTimes(times string) []time.Duration {
	var offsets []time.Duration
	for _, at := range strings.Split(times, ";") {
		t, err := time.Parse("15:04", strings.TrimSpace(at))
		if err != nil {
			continue
		}
		offsets = append(offsets, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	slices.Sort(offsets)
	return offsets
}

// HealthCheck returns the service status with its HTTP code.
// Data older than a day, or a failed last fetch, is degraded; no data or data
// older than two days is unhealthy.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	result := h.dataStore.GetResult()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()
	fetchErr := h.dataStore.GetFetchError()

	dataAge := h.now().Sub(lastUpdate)

	switch {
	case lastUpdate.IsZero():
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > unhealthyAge:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > degradedAge:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case fetchErr != "":
		status = "degraded"
		httpStatus = http.StatusOK

	case isUpdating && dataAge > stuckUpdate:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"hospitals":    result.TotalClassified(),
		"unclassified": len(result.Unclassified),
		"records":      h.dataStore.GetRecordCount(),
		"is_updating":  isUpdating,
	}
	if !lastUpdate.IsZero() {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
		data["data_age_hours"] = math.Round(dataAge.Hours()*10) / 10
	}
	if next := h.CalculateNextUpdate(); !next.IsZero() {
		data["next_update"] = next.Format(time.RFC3339)
	}
	if outcome := h.dataStore.GetOutcome(); outcome != nil {
		data["latest_release_year"] = outcome.MaxYear
	}
	if fetchErr != "" {
		data["last_fetch_error"] = fetchErr
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled update time, or the zero time
// when no schedule is configured
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	if len(h.updateTimes) == 0 {
		return time.Time{}
	}

	now := h.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, offset := range h.updateTimes {
		if at := midnight.Add(offset); now.Before(at) {
			return at
		}
	}

	// All of today's runs are past, next is tomorrow's first
	return midnight.AddDate(0, 0, 1).Add(h.updateTimes[0])
}
