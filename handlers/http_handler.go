// Package handlers provides HTTP request handlers for the hospitals API endpoints.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/giygas/nhi-hospitals/classifier"
	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/interfaces"
	"github.com/giygas/nhi-hospitals/logging"
	"github.com/go-chi/chi/v5"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	classifier    *classifier.Classifier
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(
	dataStore interfaces.DataStore,
	validator interfaces.DataValidator,
	hospitalClassifier *classifier.Classifier,
	healthChecker interfaces.HealthChecker,
) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		classifier:    hospitalClassifier,
		healthChecker: healthChecker,
	}
}

// RegionResponse is one region of the classification
type RegionResponse struct {
	Region string              `json:"region"`
	Total  int                 `json:"total"`
	Cities map[string][]string `json:"cities"`
}

// ClassifyResponse is the outcome of a single hospital lookup
type ClassifyResponse struct {
	Name       string `json:"name"`
	Code       string `json:"code,omitempty"`
	Classified bool   `json:"classified"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
}

// UnclassifiedResponse lists the hospitals no rule matched
type UnclassifiedResponse struct {
	Count     int      `json:"count"`
	Hospitals []string `json:"hospitals"`
}

// ReleasesResponse reports the last release check
type ReleasesResponse struct {
	Latest         *entities.DownloadOutcome `json:"latest"`
	LastFetchError string                    `json:"last_fetch_error,omitempty"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// RespondWithJSON writes a JSON response. Hospital names are written as-is,
// matching the result file on disk.
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if lastUpdated := h.dataStore.GetLastUpdated(); !lastUpdated.IsZero() {
		w.Header().Set("Last-Modified", lastUpdated.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(code)
	if _, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))); err != nil {
		logging.Debug("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// ServeHospitals returns the whole classification, regions in their fixed order
func (h *HTTPHandlerImpl) ServeHospitals(w http.ResponseWriter, r *http.Request) {
	h.RespondWithJSON(w, http.StatusOK, h.dataStore.GetResult())
}

// ServeRegion returns the cities and hospitals of one region
func (h *HTTPHandlerImpl) ServeRegion(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "region")

	region := classifier.Region(strings.TrimSpace(name))
	known := false
	for _, candidate := range classifier.Regions {
		if candidate == region {
			known = true
			break
		}
	}
	if !known {
		logging.Warn("Unknown region requested", "region", name)
		h.RespondWithError(w, http.StatusNotFound, "Region not found")
		return
	}

	result := h.dataStore.GetResult()
	cities := maps.Clone(result.Regions[region])
	if cities == nil {
		cities = map[string][]string{}
	}

	h.RespondWithJSON(w, http.StatusOK, RegionResponse{
		Region: string(region),
		Total:  result.RegionCount(region),
		Cities: cities,
	})
}

// ClassifyHospital classifies one hospital given by the name and optional code query parameters
func (h *HTTPHandlerImpl) ClassifyHospital(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	code := strings.TrimSpace(r.URL.Query().Get("code"))

	if name == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Missing name parameter")
		return
	}

	if err := h.validator.ValidateInput(name); err != nil {
		logging.Warn("Unusual user input", "name", name, "error", err)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validator.ValidateCode(code); err != nil {
		logging.Warn("Unusual user input", "code", code, "error", err)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	response := ClassifyResponse{Name: name, Code: code}
	if city, ok := h.classifier.Classify(name, code); ok {
		response.Classified = true
		response.City = city
		if region, ok := h.classifier.Rules().RegionOf(city); ok {
			response.Region = string(region)
		}
	}

	h.RespondWithJSON(w, http.StatusOK, response)
}

// ServeUnclassified returns the sorted list of hospitals no rule matched
func (h *HTTPHandlerImpl) ServeUnclassified(w http.ResponseWriter, r *http.Request) {
	unclassified := h.dataStore.GetResult().Unclassified
	if unclassified == nil {
		unclassified = []string{}
	}

	h.RespondWithJSON(w, http.StatusOK, UnclassifiedResponse{
		Count:     len(unclassified),
		Hospitals: unclassified,
	})
}

// ServeReleases returns the outcome of the last release check
func (h *HTTPHandlerImpl) ServeReleases(w http.ResponseWriter, r *http.Request) {
	outcome := h.dataStore.GetOutcome()
	fetchErr := h.dataStore.GetFetchError()

	if outcome == nil && fetchErr == "" {
		h.RespondWithError(w, http.StatusNotFound, "No release check has completed yet")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, ReleasesResponse{
		Latest:         outcome,
		LastFetchError: fetchErr,
	})
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var uptime time.Duration
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	status, data, httpStatus := h.healthChecker.HealthCheck()

	response := HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	}

	h.RespondWithJSON(w, httpStatus, response)
}
