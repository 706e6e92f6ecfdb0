package entities

import "time"

// DownloadHistory maps a local file name to the version token seen when it was fetched
type DownloadHistory map[string]string

// DownloadCandidate is a dated download entry scraped from the listing page
type DownloadCandidate struct {
	Year     int    `json:"year"`
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	Version  string `json:"version"`
}

// DownloadOutcome summarises one CheckAndDownload run
type DownloadOutcome struct {
	CheckedAt    time.Time `json:"checked_at"`
	MaxYear      int       `json:"max_year"`
	Downloaded   []string  `json:"downloaded"`
	Skipped      []string  `json:"skipped"`
	Failed       []string  `json:"failed"`
	HistorySaved bool      `json:"history_saved"`
}
