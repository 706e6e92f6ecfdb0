// Package fetcher scrapes the NHI listing page and downloads new or updated ODS releases
package fetcher

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/logging"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/width"
)

const (
	// DefaultListingKeyword identifies listing items when the page layout changes
	DefaultListingKeyword = "各醫院三班護病比"

	itemSelector   = "div.download_list ul li"
	initialVersion = "initial"
	titleSeparator = "（"
)

var (
	yearPattern    = regexp.MustCompile(`(\d+)年`)
	versionPattern = regexp.MustCompile(`（(.+?)更新）`)
)

// ParseListing extracts the ODS download candidates from the listing page HTML.
// It returns ErrNoListingItems when no item is found and ErrNoDownloadLinks when
// items exist but none carries a year and an ODS link.
func ParseListing(body []byte, pageURL, keyword string) ([]entities.DownloadCandidate, error) {
	if keyword == "" {
		keyword = DefaultListingKeyword
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(decodePage(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	items := doc.Find(itemSelector)
	if items.Length() == 0 {
		items = doc.Find("li").FilterFunction(func(_ int, li *goquery.Selection) bool {
			return strings.Contains(li.Text(), keyword)
		})
		logging.Debug("Primary listing selector matched nothing, using keyword fallback", "items", items.Length())
	}
	if items.Length() == 0 {
		return nil, ErrNoListingItems
	}

	var candidates []entities.DownloadCandidate
	items.Each(func(_ int, li *goquery.Selection) {
		if candidate, ok := parseItem(li, base); ok {
			candidates = append(candidates, candidate)
		}
	})

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w (%d items)", ErrNoDownloadLinks, items.Length())
	}
	return candidates, nil
}

// parseItem reads one listing entry such as
// "113年11月各醫院三班護病比（114.01.21更新）" with its ODS link
func parseItem(li *goquery.Selection, base *url.URL) (entities.DownloadCandidate, bool) {
	text := li.Text()

	m := yearPattern.FindStringSubmatch(width.Narrow.String(text))
	if m == nil {
		return entities.DownloadCandidate{}, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return entities.DownloadCandidate{}, false
	}

	link := li.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(a.Text()), "ods")
	}).First()
	if link.Length() == 0 {
		return entities.DownloadCandidate{}, false
	}

	href, ok := link.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return entities.DownloadCandidate{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		logging.Warn("Skipping listing item with malformed link", "href", href, "error", err)
		return entities.DownloadCandidate{}, false
	}

	return entities.DownloadCandidate{
		Year:     year,
		URL:      base.ResolveReference(ref).String(),
		FileName: fileNameFor(text),
		Version:  versionFor(text),
	}, true
}

// fileNameFor keeps the text before the full-width bracket with whitespace collapsed
func fileNameFor(text string) string {
	title, _, _ := strings.Cut(text, titleSeparator)
	return strings.Join(strings.Fields(title), " ") + ".ods"
}

func versionFor(text string) string {
	if m := versionPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return initialVersion
}

// decodePage returns the body as UTF-8, decoding it as Big5 when it is not valid UTF-8
func decodePage(body []byte) io.Reader {
	if utf8.Valid(body) {
		return bytes.NewReader(body)
	}
	logging.Debug("Listing page is not UTF-8, decoding as Big5")
	return traditionalchinese.Big5.NewDecoder().Reader(bytes.NewReader(body))
}
