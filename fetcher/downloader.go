package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/interfaces"
	"github.com/giygas/nhi-hospitals/logging"
)

// Downloader checks the listing page for the latest year's releases and downloads the
// files whose version differs from the history
type Downloader struct {
	pages     interfaces.PageFetcher
	files     interfaces.FileFetcher
	history   interfaces.HistoryStore
	listing   string
	keyword   string
	targetDir string
}

// Config holds the listing location and the download destination
type Config struct {
	ListingURL string
	Keyword    string
	TargetDir  string
}

// NewDownloader wires a downloader from its collaborators
func NewDownloader(cfg Config, pages interfaces.PageFetcher, files interfaces.FileFetcher, history interfaces.HistoryStore) *Downloader {
	return &Downloader{
		pages:     pages,
		files:     files,
		history:   history,
		listing:   cfg.ListingURL,
		keyword:   cfg.Keyword,
		targetDir: cfg.TargetDir,
	}
}

// CheckAndDownload runs one fetch cycle. Page, listing and link failures are returned
// before anything is written; per-file failures are logged and reported in the outcome.
func (d *Downloader) CheckAndDownload(ctx context.Context) (*entities.DownloadOutcome, error) {
	history := d.history.Load()

	page, err := d.pages.FetchPage(ctx, d.listing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageFetch, err)
	}

	candidates, err := ParseListing(page, d.listing, d.keyword)
	if err != nil {
		return nil, err
	}

	outcome := &entities.DownloadOutcome{
		CheckedAt: time.Now(),
		MaxYear:   maxYear(candidates),
	}
	logging.Info("Latest release year detected", "year", outcome.MaxYear, "candidates", len(candidates))

	for _, c := range candidates {
		if c.Year != outcome.MaxYear {
			continue
		}

		if local, ok := history[c.FileName]; ok && local == c.Version {
			logging.Info("Release up to date, skipping", "file", c.FileName, "version", c.Version)
			outcome.Skipped = append(outcome.Skipped, c.FileName)
			continue
		}

		logging.Info("New or updated release found, downloading", "file", c.FileName, "version", c.Version)
		if err := d.download(ctx, c); err != nil {
			logging.Error("Release download failed", "file", c.FileName, "url", c.URL, "error", err)
			outcome.Failed = append(outcome.Failed, c.FileName)
			continue
		}

		history[c.FileName] = c.Version
		outcome.Downloaded = append(outcome.Downloaded, c.FileName)
	}

	if len(outcome.Downloaded) == 0 {
		logging.Info("All releases up to date, nothing downloaded")
		return outcome, nil
	}

	if err := d.history.Save(history); err != nil {
		// The files are on disk; the next run downloads them again
		logging.Error("Failed to save download history", "error", err)
		return outcome, nil
	}
	outcome.HistorySaved = true
	logging.Info("Downloads and history update completed", "downloaded", len(outcome.Downloaded))

	return outcome, nil
}

func (d *Downloader) download(ctx context.Context, c entities.DownloadCandidate) error {
	path, err := d.localPath(c.FileName)
	if err != nil {
		return err
	}

	data, err := d.files.FetchFile(ctx, c.URL)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(d.targetDir, 0750); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Debug("Release written", "path", path, "bytes", len(data))
	return nil
}

// localPath joins name onto the target directory, rejecting names that leave it
func (d *Downloader) localPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) || name == ".." {
		return "", fmt.Errorf("invalid file name: %q", name)
	}

	dir := filepath.Clean(d.targetDir)
	path := filepath.Join(dir, name)
	if filepath.Dir(path) != dir {
		return "", fmt.Errorf("invalid file name: %q", name)
	}
	return path, nil
}

func maxYear(candidates []entities.DownloadCandidate) int {
	year := 0
	for _, c := range candidates {
		year = max(year, c.Year)
	}
	return year
}
