package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/giygas/nhi-hospitals/logging"
	"github.com/gocolly/colly/v2"
)

const (
	chromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	acceptHeader    = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage  = "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7"

	// DefaultReferer is sent with every request; the NHI site rejects requests without it
	DefaultReferer = "https://www.nhi.gov.tw/"
)

// ClientOptions configures Client
type ClientOptions struct {
	Referer     string
	Timeout     time.Duration
	MaxBodySize int
}

// Client performs single-attempt HTTP GETs that present as a desktop Chrome browser
type Client struct {
	collector   *colly.Collector
	referer     string
	maxBodySize int
}

// NewClient creates a colly backed client
func NewClient(opts ClientOptions) *Client {
	if opts.Referer == "" {
		opts.Referer = DefaultReferer
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	c := colly.NewCollector(
		colly.UserAgent(chromeUserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(opts.MaxBodySize),
	)
	// Clones share the parent's HTTP backend, so the timeout applies to every request
	c.SetRequestTimeout(opts.Timeout)

	return &Client{collector: c, referer: opts.Referer, maxBodySize: opts.MaxBodySize}
}

// FetchPage implements interfaces.PageFetcher
func (c *Client) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	return c.get(ctx, pageURL)
}

// FetchFile implements interfaces.FileFetcher
func (c *Client) FetchFile(ctx context.Context, fileURL string) ([]byte, error) {
	return c.get(ctx, fileURL)
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collector := c.collector.Clone()
	var (
		body     []byte
		fetchErr error
		status   int
	)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
		r.Headers.Set("Accept-Language", acceptLanguage)
		r.Headers.Set("Referer", c.referer)
	})

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		if err := c.checkComplete(r); err != nil {
			fetchErr = err
			return
		}
		body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	start := time.Now()
	if err := collector.Visit(target); err != nil && fetchErr == nil {
		fetchErr = err
	}

	if fetchErr != nil {
		logging.Debug("Request failed", "url", target, "status", status, "error", fetchErr)
		if status != 0 {
			return nil, fmt.Errorf("GET %s: status %d: %w", target, status, fetchErr)
		}
		return nil, fmt.Errorf("GET %s: %w", target, fetchErr)
	}
	if body == nil {
		return nil, errors.New("GET " + target + ": empty response")
	}

	logging.Debug("Request completed", "url", target, "status", status, "bytes", len(body), "duration_ms", time.Since(start).Milliseconds())
	return body, nil
}

// checkComplete rejects bodies colly cut at the size limit
func (c *Client) checkComplete(r *colly.Response) error {
	if c.maxBodySize > 0 && len(r.Body) >= c.maxBodySize {
		return fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, c.maxBodySize)
	}
	if r.Headers != nil {
		if declared, err := strconv.Atoi(r.Headers.Get("Content-Length")); err == nil && declared > len(r.Body) {
			return fmt.Errorf("%w: got %d of %d bytes", ErrBodyTooLarge, len(r.Body), declared)
		}
	}
	return nil
}
