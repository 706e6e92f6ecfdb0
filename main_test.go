package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// setupEnv points every path the commands touch into a temp dir
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	t.Setenv("ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_COLOR", "false")
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("TARGET_DIR", filepath.Join(dir, "ods"))
	t.Setenv("SOURCE_GLOB", filepath.Join(dir, "ods", "*.ods"))
	t.Setenv("HISTORY_FILE", filepath.Join(dir, "ods", "download_history.json"))
	t.Setenv("OUTPUT_FILE", filepath.Join(dir, "hospitals_by_region.json"))
	t.Setenv("UNCLASSIFIED_FILE", filepath.Join(dir, "unclassified_hospitals.txt"))
	t.Setenv("RULES_FILE", "")
	t.Setenv("PUSHGATEWAY_URL", "")
	t.Setenv("DATABASE_URL", "")

	if err := os.MkdirAll(filepath.Join(dir, "ods"), 0o755); err != nil {
		t.Fatalf("Failed to create ods dir: %v", err)
	}
	return dir
}

// buildODS returns a minimal spreadsheet with three header rows followed by rows
func buildODS(t *testing.T, rows [][]string) []byte {
	t.Helper()

	var content strings.Builder
	content.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body><office:spreadsheet><table:table table:name="Sheet1">`)
	all := append([][]string{{"title"}, {"subtitle"}, {"no", "area", "type", "code", "name"}}, rows...)
	for _, row := range all {
		content.WriteString("<table:table-row>")
		for _, cell := range row {
			fmt.Fprintf(&content, "<table:table-cell><text:p>%s</text:p></table:table-cell>", html.EscapeString(cell))
		}
		content.WriteString("</table:table-row>")
	}
	content.WriteString(`</table:table></office:spreadsheet></office:body></office:document-content>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("content.xml")
	if err != nil {
		t.Fatalf("Failed to add content.xml: %v", err)
	}
	if _, err := w.Write([]byte(content.String())); err != nil {
		t.Fatalf("Failed to write content.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, 2},
		{"too many arguments", []string{"classify", "extra"}, 2},
		{"unknown command", []string{"download"}, 2},
		{"help", []string{"help"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, code, tt.want)
			}
			if !strings.Contains(stdout.String()+stderr.String(), "usage: nhi-hospitals") {
				t.Errorf("Usage text missing from output")
			}
		})
	}
}

func TestRunInvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("PORT", "abc")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"classify"}, &stdout, &stderr); code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "configuration error") {
		t.Errorf("Expected configuration error on stderr, got %q", stderr.String())
	}
}

func TestRunClassify(t *testing.T) {
	dir := setupEnv(t)

	ods := buildODS(t, [][]string{
		{"1", "", "", "0401180014", "國立臺灣大學醫學院附設醫院"},
		{"2", "", "", "0145040014", "門諾醫院"},
		{"3", "", "", "9999999999", "某某診所"},
	})
	if err := os.WriteFile(filepath.Join(dir, "ods", "114.ods"), ods, 0o644); err != nil {
		t.Fatalf("Failed to write ods: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"classify"}, &stdout, &stderr); code != 0 {
		t.Fatalf("classify exited %d, stderr: %s", code, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"Total classified: 2", "Unclassified: 1", "某某診所"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "hospitals_by_region.json"))
	if err != nil {
		t.Fatalf("Result file missing: %v", err)
	}
	var regions map[string]map[string][]string
	if err := json.Unmarshal(data, &regions); err != nil {
		t.Fatalf("Result file is not valid JSON: %v", err)
	}
	if got := regions["北部"]["臺北市"]; len(got) != 1 || got[0] != "國立臺灣大學醫學院附設醫院" {
		t.Errorf("北部/臺北市 = %v", got)
	}
	if got := regions["東部"]["花蓮縣"]; len(got) != 1 || got[0] != "門諾醫院" {
		t.Errorf("東部/花蓮縣 = %v", got)
	}

	unclassified, err := os.ReadFile(filepath.Join(dir, "unclassified_hospitals.txt"))
	if err != nil {
		t.Fatalf("Unclassified file missing: %v", err)
	}
	if !strings.Contains(string(unclassified), "某某診所") {
		t.Errorf("Unclassified file = %q", unclassified)
	}
}

func TestRunClassifyMissingRulesFile(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("RULES_FILE", filepath.Join(dir, "missing.yaml"))

	var stdout, stderr bytes.Buffer
	if code := run([]string{"classify"}, &stdout, &stderr); code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
}

func TestRunFetch(t *testing.T) {
	dir := setupEnv(t)

	ods := buildODS(t, [][]string{{"1", "", "", "0401180014", "國立臺灣大學醫學院附設醫院"}})
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><div class="download_list"><ul>
<li>114年9月各醫院三班護病比（114.10.21更新）<a href="/files/114-09.ods">ODS</a></li>
<li>113年12月各醫院三班護病比（114.01.21更新）<a href="/files/113-12.ods">ODS</a></li>
</ul></div></body></html>`)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(ods)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	t.Setenv("LISTING_URL", ts.URL+"/list")
	t.Setenv("REFERER", ts.URL+"/")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"fetch"}, &stdout, &stderr); code != 0 {
		t.Fatalf("fetch exited %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Latest year: 114") {
		t.Errorf("Unexpected fetch report:\n%s", stdout.String())
	}

	downloaded, err := filepath.Glob(filepath.Join(dir, "ods", "*.ods"))
	if err != nil || len(downloaded) != 1 {
		t.Fatalf("Expected one downloaded release, got %v (%v)", downloaded, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ods", "download_history.json")); err != nil {
		t.Errorf("History file not written: %v", err)
	}

	// A second run finds nothing new
	stdout.Reset()
	if code := run([]string{"fetch"}, &stdout, &stderr); code != 0 {
		t.Fatalf("second fetch exited %d", code)
	}
	if !strings.Contains(stdout.String(), "up to date") {
		t.Errorf("Second run should skip the release:\n%s", stdout.String())
	}
}

func TestRunFetchListingUnavailable(t *testing.T) {
	setupEnv(t)

	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	t.Setenv("LISTING_URL", ts.URL+"/list")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"fetch"}, &stdout, &stderr); code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
}

func TestRunFetchWithoutCandidates(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"no listing items", `<html><body><p>維護中</p><ul><li>首頁</li></ul></body></html>`},
		{"no ODS links", `<html><body><div class="download_list"><ul>
<li>114年9月各醫院三班護病比（114.10.21更新）<a href="/files/114-09.pdf">PDF</a></li>
<li>各醫院三班護病比說明 <a href="/files/readme.ods">ODS</a></li>
</ul></div></body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupEnv(t)

			var fileRequests atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("/list", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				fmt.Fprint(w, tt.page)
			})
			mux.HandleFunc("/files/", func(w http.ResponseWriter, _ *http.Request) {
				fileRequests.Add(1)
				w.Write([]byte("unexpected"))
			})
			ts := httptest.NewServer(mux)
			defer ts.Close()
			t.Setenv("LISTING_URL", ts.URL+"/list")

			var stdout, stderr bytes.Buffer
			if code := run([]string{"fetch"}, &stdout, &stderr); code != 1 {
				t.Errorf("Expected exit code 1, got %d", code)
			}
			if n := fileRequests.Load(); n != 0 {
				t.Errorf("No file should be requested, got %d requests", n)
			}
			entries, err := os.ReadDir(filepath.Join(dir, "ods"))
			if err != nil {
				t.Fatalf("ReadDir failed: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("Target directory should stay empty, found %d entries", len(entries))
			}
		})
	}
}
