package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/giygas/nhi-hospitals/classifier"
	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/interfaces"
	"github.com/giygas/nhi-hospitals/validation"
	"github.com/go-chi/chi/v5"
)

// ============================================================================
// MOCK DATA STORE
// ============================================================================

type MockDataStore struct {
	result      *classifier.Result
	recordCount int
	outcome     *entities.DownloadOutcome
	fetchError  string
	lastUpdated time.Time
	startTime   time.Time
	updating    bool
}

var _ interfaces.DataStore = (*MockDataStore)(nil)

func (m *MockDataStore) GetResult() *classifier.Result {
	if m.result == nil {
		return classifier.NewResult()
	}
	return m.result
}

func (m *MockDataStore) GetRecordCount() int { return m.recordCount }
func (m *MockDataStore) GetOutcome() *entities.DownloadOutcome { return m.outcome }
func (m *MockDataStore) GetFetchError() string { return m.fetchError }
func (m *MockDataStore) GetLastUpdated() time.Time { return m.lastUpdated }
func (m *MockDataStore) IsUpdating() bool { return m.updating }
func (m *MockDataStore) GetServerStartTime() time.Time { return m.startTime }

func (m *MockDataStore) UpdateData(result *classifier.Result, recordCount int) {
	m.result = result
	m.recordCount = recordCount
	m.lastUpdated = time.Now()
}

func (m *MockDataStore) UpdateOutcome(outcome *entities.DownloadOutcome, fetchErr error) {
	if fetchErr != nil {
		m.fetchError = fetchErr.Error()
		return
	}
	m.outcome = outcome
}

func (m *MockDataStore) BeginUpdate() bool { return true }
func (m *MockDataStore) EndUpdate() {}

// MockDataStoreBuilder builds a MockDataStore step by step
type MockDataStoreBuilder struct {
	store *MockDataStore
}

func NewMockDataStoreBuilder() *MockDataStoreBuilder {
	return &MockDataStoreBuilder{store: &MockDataStore{startTime: time.Now().Add(-90 * time.Minute)}}
}

func (b *MockDataStoreBuilder) WithResult(result *classifier.Result, records int) *MockDataStoreBuilder {
	b.store.result = result
	b.store.recordCount = records
	b.store.lastUpdated = time.Now()
	return b
}

func (b *MockDataStoreBuilder) WithOutcome(outcome *entities.DownloadOutcome) *MockDataStoreBuilder {
	b.store.outcome = outcome
	return b
}

func (b *MockDataStoreBuilder) WithFetchError(msg string) *MockDataStoreBuilder {
	b.store.fetchError = msg
	return b
}

func (b *MockDataStoreBuilder) Build() *MockDataStore {
	return b.store
}

// ============================================================================
// MOCK HEALTH CHECKER
// ============================================================================

type mockHealthChecker struct {
	status     string
	data       map[string]any
	httpStatus int
}

func (m *mockHealthChecker) HealthCheck() (string, map[string]any, int) {
	return m.status, m.data, m.httpStatus
}

func (m *mockHealthChecker) CalculateNextUpdate() time.Time { return time.Time{} }

// ============================================================================
// HELPERS
// ============================================================================

func testClassifier(t testing.TB) *classifier.Classifier {
	t.Helper()
	rules, err := classifier.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules failed: %v", err)
	}
	return classifier.NewClassifier(rules)
}

func sampleResult(t testing.TB) *classifier.Result {
	t.Helper()
	return testClassifier(t).ClassifyAll([]entities.HospitalRecord{
		{Name: "國立臺灣大學醫學院附設醫院", InstitutionCode: "0401180014"},
		{Name: "臺北市立萬芳醫院", InstitutionCode: "0101090517"},
		{Name: "門諾醫院"},
		{Name: "彰化基督教醫院"},
		{Name: "某某診所", InstitutionCode: "9999999999"},
		{Name: "另一家診所"},
	})
}

// newTestHandler wires the real validator and classifier around store
func newTestHandler(t testing.TB, store interfaces.DataStore, health interfaces.HealthChecker) *HTTPHandlerImpl {
	t.Helper()
	c := testClassifier(t)
	if health == nil {
		health = &mockHealthChecker{status: "healthy", data: map[string]any{}, httpStatus: http.StatusOK}
	}
	return NewHTTPHandler(store, validation.NewDataValidator(c.Rules()), c, health)
}

// newTestRouter mounts the handler the way the server does
func newTestRouter(h *HTTPHandlerImpl) http.Handler {
	r := chi.NewRouter()
	r.Get("/hospitals", h.ServeHospitals)
	r.Get("/hospitals/{region}", h.ServeRegion)
	r.Get("/classify", h.ClassifyHospital)
	r.Get("/unclassified", h.ServeUnclassified)
	r.Get("/releases", h.ServeReleases)
	r.Get("/health", h.HealthCheck)
	return r
}

func doGet(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func classifyURL(name, code string) string {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	if code != "" {
		q.Set("code", code)
	}
	return "/classify?" + q.Encode()
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode body %q: %v", rr.Body.String(), err)
	}
}
