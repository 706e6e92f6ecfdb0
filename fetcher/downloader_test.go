package fetcher

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/giygas/nhi-hospitals/entities"
)

type fakePages struct {
	body []byte
	err  error
}

func (f *fakePages) FetchPage(_ context.Context, _ string) ([]byte, error) {
	return f.body, f.err
}

type fakeFiles struct {
	fetched []string
	fail    map[string]bool
}

func (f *fakeFiles) FetchFile(_ context.Context, url string) ([]byte, error) {
	f.fetched = append(f.fetched, url)
	if f.fail[url] {
		return nil, fmt.Errorf("status 500")
	}
	return []byte("ods:" + url), nil
}

type fakeHistory struct {
	initial entities.DownloadHistory
	saved   entities.DownloadHistory
	saves   int
	err     error
}

func (f *fakeHistory) Load() entities.DownloadHistory {
	return maps.Clone(f.initial)
}

func (f *fakeHistory) Save(history entities.DownloadHistory) error {
	f.saves++
	f.saved = maps.Clone(history)
	return f.err
}

func listingOf(items ...string) []byte {
	page := `<html><body><div class="download_list"><ul>`
	for _, item := range items {
		page += "<li>" + item + "</li>"
	}
	return []byte(page + `</ul></div></body></html>`)
}

func newTestDownloader(t *testing.T, page []byte, files *fakeFiles, history *fakeHistory) (*Downloader, string) {
	t.Helper()
	dir := t.TempDir()
	d := NewDownloader(Config{ListingURL: pageURL, TargetDir: dir}, &fakePages{body: page}, files, history)
	return d, dir
}

func TestCheckAndDownloadSkipsKnownVersion(t *testing.T) {
	page := listingOf(`X（v1更新）<a href="/x">ODS</a> 114年`)
	files := &fakeFiles{}
	history := &fakeHistory{initial: entities.DownloadHistory{"X.ods": "v1"}}
	d, dir := newTestDownloader(t, page, files, history)

	outcome, err := d.CheckAndDownload(context.Background())
	if err != nil {
		t.Fatalf("CheckAndDownload failed: %v", err)
	}

	if len(files.fetched) != 0 {
		t.Errorf("Expected no file fetch, got %v", files.fetched)
	}
	if history.saves != 0 {
		t.Errorf("History should not be saved when nothing was downloaded")
	}
	if !slices.Equal(outcome.Skipped, []string{"X.ods"}) {
		t.Errorf("Skipped = %v, want [X.ods]", outcome.Skipped)
	}
	if outcome.HistorySaved {
		t.Errorf("HistorySaved should be false")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("Expected no files written, found %d", len(entries))
	}
}

func TestCheckAndDownloadFetchesChangedVersion(t *testing.T) {
	page := listingOf(`X（v2更新）<a href="/x">ODS</a> 114年`)
	files := &fakeFiles{}
	history := &fakeHistory{initial: entities.DownloadHistory{"X.ods": "v1", "Y.ods": "old"}}
	d, dir := newTestDownloader(t, page, files, history)

	outcome, err := d.CheckAndDownload(context.Background())
	if err != nil {
		t.Fatalf("CheckAndDownload failed: %v", err)
	}

	if !slices.Equal(files.fetched, []string{"https://www.nhi.gov.tw/x"}) {
		t.Errorf("Fetched = %v", files.fetched)
	}
	if history.saves != 1 {
		t.Fatalf("History saved %d times, want 1", history.saves)
	}
	if history.saved["X.ods"] != "v2" {
		t.Errorf("History X.ods = %q, want v2", history.saved["X.ods"])
	}
	if history.saved["Y.ods"] != "old" {
		t.Errorf("Unrelated history entries must be kept, got %v", history.saved)
	}
	if !outcome.HistorySaved || !slices.Equal(outcome.Downloaded, []string{"X.ods"}) {
		t.Errorf("Unexpected outcome: %+v", outcome)
	}

	data, err := os.ReadFile(filepath.Join(dir, "X.ods"))
	if err != nil {
		t.Fatalf("Downloaded file missing: %v", err)
	}
	if string(data) != "ods:https://www.nhi.gov.tw/x" {
		t.Errorf("File content = %q", data)
	}
}

func TestCheckAndDownloadOnlyLatestYear(t *testing.T) {
	page := listingOf(
		`112年各醫院三班護病比（112.02.01更新）<a href="/112">ODS</a>`,
		`114年各醫院三班護病比（114.02.01更新）<a href="/114">ODS</a>`,
		`113年各醫院三班護病比（113.02.01更新）<a href="/113">ODS</a>`,
	)
	files := &fakeFiles{}
	history := &fakeHistory{initial: entities.DownloadHistory{}}
	d, _ := newTestDownloader(t, page, files, history)

	outcome, err := d.CheckAndDownload(context.Background())
	if err != nil {
		t.Fatalf("CheckAndDownload failed: %v", err)
	}

	if outcome.MaxYear != 114 {
		t.Errorf("MaxYear = %d, want 114", outcome.MaxYear)
	}
	if !slices.Equal(files.fetched, []string{"https://www.nhi.gov.tw/114"}) {
		t.Errorf("Fetched = %v, want only the 114 file", files.fetched)
	}
	if history.saved["114年各醫院三班護病比.ods"] != "114.02.01" {
		t.Errorf("History = %v", history.saved)
	}
}

func TestCheckAndDownloadFileFailureKeepsHistory(t *testing.T) {
	page := listingOf(
		`114年1月（a更新）<a href="/ok">ODS</a>`,
		`114年2月（b更新）<a href="/broken">ODS</a>`,
	)
	files := &fakeFiles{fail: map[string]bool{"https://www.nhi.gov.tw/broken": true}}
	history := &fakeHistory{initial: entities.DownloadHistory{"114年2月.ods": "old"}}
	d, dir := newTestDownloader(t, page, files, history)

	outcome, err := d.CheckAndDownload(context.Background())
	if err != nil {
		t.Fatalf("Per file failures must not fail the run: %v", err)
	}

	if !slices.Equal(outcome.Failed, []string{"114年2月.ods"}) {
		t.Errorf("Failed = %v", outcome.Failed)
	}
	if history.saved["114年2月.ods"] != "old" {
		t.Errorf("Failed file history must be untouched, got %q", history.saved["114年2月.ods"])
	}
	if history.saved["114年1月.ods"] != "a" {
		t.Errorf("Downloaded file history = %q, want a", history.saved["114年1月.ods"])
	}
	if _, err := os.Stat(filepath.Join(dir, "114年2月.ods")); !os.IsNotExist(err) {
		t.Errorf("Failed download must not leave a file")
	}
}

func TestCheckAndDownloadFatalErrors(t *testing.T) {
	tests := []struct {
		name  string
		pages *fakePages
		want  error
	}{
		{"page fetch fails", &fakePages{err: errors.New("connection refused")}, ErrPageFetch},
		{"no listing items", &fakePages{body: []byte(`<html><body><p>empty</p></body></html>`)}, ErrNoListingItems},
		{"empty candidate list", &fakePages{body: listingOf(`114年 <a href="/x.pdf">PDF</a>`)}, ErrNoDownloadLinks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			files := &fakeFiles{}
			history := &fakeHistory{initial: entities.DownloadHistory{}}
			d := NewDownloader(Config{ListingURL: pageURL, TargetDir: dir}, tt.pages, files, history)

			outcome, err := d.CheckAndDownload(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if outcome != nil {
				t.Errorf("Expected nil outcome on fatal error")
			}
			if len(files.fetched) != 0 || history.saves != 0 {
				t.Errorf("Fatal errors must not fetch files or save history")
			}
			if entries, _ := os.ReadDir(dir); len(entries) != 0 {
				t.Errorf("Expected no files written, found %d", len(entries))
			}
		})
	}
}

func TestCheckAndDownloadHistorySaveFailure(t *testing.T) {
	page := listingOf(`114年（v1更新）<a href="/x">ODS</a>`)
	history := &fakeHistory{initial: entities.DownloadHistory{}, err: errors.New("disk full")}
	d, _ := newTestDownloader(t, page, &fakeFiles{}, history)

	outcome, err := d.CheckAndDownload(context.Background())
	if err != nil {
		t.Fatalf("History save failure should be logged, got %v", err)
	}
	if outcome.HistorySaved {
		t.Errorf("HistorySaved should be false when saving failed")
	}
	if len(outcome.Downloaded) != 1 {
		t.Errorf("Downloaded = %v", outcome.Downloaded)
	}
}

func TestLocalPathRejectsEscapes(t *testing.T) {
	d := &Downloader{targetDir: t.TempDir()}

	for _, name := range []string{"../evil.ods", "a/b.ods", `..\evil.ods`, "", ".."} {
		if _, err := d.localPath(name); err == nil {
			t.Errorf("localPath(%q) should fail", name)
		}
	}

	path, err := d.localPath("114年9月各醫院三班護病比.ods")
	if err != nil {
		t.Fatalf("localPath failed: %v", err)
	}
	if filepath.Dir(path) != filepath.Clean(d.targetDir) {
		t.Errorf("Path %s escapes %s", path, d.targetDir)
	}
}
