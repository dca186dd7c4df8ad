package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"bulletin-scraper/internal/config"
	"bulletin-scraper/internal/document"
	"bulletin-scraper/internal/observability"
)

// Fetcher is a document source for pages whose tables are present in the
// served HTML. It does not execute scripts; use the browser source for
// pages that build their content client-side.
type Fetcher struct {
	client      *http.Client
	cfg         *config.Config
	logger      *observability.Logger
	robotsCache *RobotsCache
	rateLimiter *RateLimiter
}

type FetchResponse struct {
	StatusCode int
	Body       []byte
	URL        string
	Headers    http.Header
}

func NewFetcher(cfg *config.Config, logger *observability.Logger) *Fetcher {
	if logger == nil {
		logger = observability.NewNop()
	}

	// Connect timeout covers dialing and the TLS handshake; the client
	// timeout covers the whole attempt including the body.
	dialer := &net.Dialer{Timeout: cfg.GetConnectTimeout()}
	client := &http.Client{
		Timeout: cfg.GetTotalTimeout(),
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: cfg.GetConnectTimeout(),
			MaxIdleConns:        cfg.HTTP.MaxIdleConnections,
			MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnectionsPerHost,
			IdleConnTimeout:     cfg.GetIdleConnectionTimeout(),
		},
	}

	return &Fetcher{
		client:      client,
		cfg:         cfg,
		logger:      logger,
		robotsCache: NewRobotsCache(cfg.GetRobotsCacheTTL(), cfg.HTTP.UserAgent, logger),
		rateLimiter: NewRateLimiter(cfg.RateLimit.MaxConcurrentPerHost, cfg.RateLimit.RPM),
	}
}

// Load fetches urlStr and parses it into a document whose links resolve
// against the final (post-redirect) URL.
func (f *Fetcher) Load(ctx context.Context, urlStr string) (document.Document, error) {
	resp, err := f.Fetch(ctx, urlStr)
	if err != nil {
		return nil, &document.FetchError{URL: urlStr, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &document.FetchError{URL: urlStr, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	doc, err := document.Parse(bytes.NewReader(resp.Body), resp.URL)
	if err != nil {
		return nil, &document.FetchError{URL: urlStr, Err: err}
	}

	f.logger.Info("Document fetched",
		"url", resp.URL,
		"status", resp.StatusCode,
		"content_type", resp.Headers.Get("Content-Type"),
		"bytes", len(resp.Body),
	)
	return doc, nil
}

func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Fetch performs a GET with robots.txt and rate-limit checks, retrying
// transport errors, 5xx and 429 with exponential backoff. When retries run
// out on a server error the last response is returned so the caller can
// report its status.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %q", parsedURL.Scheme)
	}

	if f.cfg.HTTP.RespectRobots {
		allowed, err := f.robotsCache.IsAllowed(ctx, parsedURL, f.client)
		if err != nil {
			return nil, fmt.Errorf("robots.txt check failed: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("URL disallowed by robots.txt: %s", urlStr)
		}
	}

	if err := f.rateLimiter.Wait(ctx, parsedURL.Host); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var (
		resp     *FetchResponse
		attempts int
	)
	operation := func() error {
		attempts++
		resp = nil

		r, err := f.fetchOnce(ctx, urlStr)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		resp = r
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("server error: %d", r.StatusCode)
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("Retrying fetch",
			"url", urlStr,
			"attempt", attempts,
			"backoff", wait.String(),
			"error", err,
		)
	}

	err = backoff.RetryNotify(operation, f.newBackOff(ctx), notify)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if resp != nil {
		return resp, nil
	}
	return nil, fmt.Errorf("fetch failed after %d attempts: %w", attempts, err)
}

// newBackOff doubles from the configured minimum up to the maximum, with
// +/- JitterPct randomization, and stops after MaxRetries retries or when
// ctx ends.
func (f *Fetcher) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.GetBackoffMin()
	b.MaxInterval = f.cfg.GetBackoffMax()
	b.RandomizationFactor = float64(f.cfg.Backoff.JitterPct) / 100
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()

	retries := f.cfg.HTTP.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func (f *Fetcher) fetchOnce(ctx context.Context, urlStr string) (*FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.cfg.HTTP.UserAgent)
	if f.cfg.HTTP.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.cfg.HTTP.AcceptLanguage)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	reader := resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gzipReader.Close() }()
		reader = gzipReader
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Response received",
		"url", urlStr,
		"status", resp.StatusCode,
		"content_encoding", resp.Header.Get("Content-Encoding"),
		"body_bytes", len(body),
	)

	return &FetchResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		URL:        resp.Request.URL.String(),
		Headers:    resp.Header,
	}, nil
}
