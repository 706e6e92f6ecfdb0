package interfaces_test

import (
	"context"
	"testing"

	"github.com/giygas/nhi-hospitals/classifier"
	"github.com/giygas/nhi-hospitals/data"
	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/fetcher"
	"github.com/giygas/nhi-hospitals/handlers"
	"github.com/giygas/nhi-hospitals/health"
	"github.com/giygas/nhi-hospitals/interfaces"
	"github.com/giygas/nhi-hospitals/scheduler"
	"github.com/giygas/nhi-hospitals/spreadsheet"
	"github.com/giygas/nhi-hospitals/storage"
	"github.com/giygas/nhi-hospitals/validation"
)

// Every production type satisfies the interface it is wired through
var (
	_ interfaces.DataStore      = (*data.DataContainer)(nil)
	_ interfaces.PageFetcher    = (*fetcher.Client)(nil)
	_ interfaces.FileFetcher    = (*fetcher.Client)(nil)
	_ interfaces.HistoryStore   = (*fetcher.JSONHistoryStore)(nil)
	_ interfaces.ReleaseChecker = (*fetcher.Downloader)(nil)
	_ interfaces.RecordReader   = (*spreadsheet.Reader)(nil)
	_ interfaces.ResultSink     = (*storage.PostgresSink)(nil)
	_ interfaces.Scheduler      = (*scheduler.Scheduler)(nil)
	_ interfaces.HealthChecker  = (*health.HealthCheckerImpl)(nil)
	_ interfaces.HTTPHandler    = (*handlers.HTTPHandlerImpl)(nil)
	_ interfaces.DataValidator  = (*validation.DataValidatorImpl)(nil)
)

// memoryHistory is the smallest HistoryStore; it shows the contract the downloader relies on
type memoryHistory struct {
	saved entities.DownloadHistory
}

func (m *memoryHistory) Load() entities.DownloadHistory {
	if m.saved == nil {
		return entities.DownloadHistory{}
	}
	return m.saved
}

func (m *memoryHistory) Save(history entities.DownloadHistory) error {
	m.saved = history
	return nil
}

type recordingSink struct {
	runs []string
}

func (s *recordingSink) Export(_ context.Context, runID string, _ *classifier.Result) error {
	s.runs = append(s.runs, runID)
	return nil
}

func TestMemoryHistoryContract(t *testing.T) {
	var store interfaces.HistoryStore = &memoryHistory{}

	if got := store.Load(); got == nil || len(got) != 0 {
		t.Fatalf("Load before Save should return an empty map, got %v", got)
	}

	if err := store.Save(entities.DownloadHistory{"a.ods": "v1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got := store.Load()["a.ods"]; got != "v1" {
		t.Errorf("Load after Save = %q, want v1", got)
	}
}

func TestDataContainerAsDataStore(t *testing.T) {
	var store interfaces.DataStore = data.NewDataContainer()

	if !store.BeginUpdate() {
		t.Fatal("First BeginUpdate should succeed")
	}
	if store.BeginUpdate() {
		t.Error("Second BeginUpdate should fail while updating")
	}
	store.EndUpdate()

	store.UpdateData(classifier.NewResult(), 0)
	if store.GetLastUpdated().IsZero() {
		t.Error("UpdateData should set the last update time")
	}
}

func TestResultSinkContract(t *testing.T) {
	sink := &recordingSink{}
	var s interfaces.ResultSink = sink

	if err := s.Export(context.Background(), "run-1", classifier.NewResult()); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(sink.runs) != 1 || sink.runs[0] != "run-1" {
		t.Errorf("runs = %v", sink.runs)
	}
}
