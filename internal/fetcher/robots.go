package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"bulletin-scraper/internal/observability"
)

type RobotsCache struct {
	cache     map[string]*RobotsTxt
	ttl       time.Duration
	userAgent string
	mu        sync.RWMutex
	logger    *observability.Logger
	now       func() time.Time
}

type RobotsTxt struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration, userAgent string, logger *observability.Logger) *RobotsCache {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &RobotsCache{
		cache:     make(map[string]*RobotsTxt),
		ttl:       ttl,
		userAgent: userAgent,
		logger:    logger,
		now:       time.Now,
	}
}

// IsAllowed fetches (or reuses) robots.txt for the target's origin and tests
// the target path against the group for our user agent. Status handling
// follows robotstxt: 4xx allows everything, 5xx disallows everything. A
// transport failure is treated as allow-all.
func (rc *RobotsCache) IsAllowed(ctx context.Context, target *url.URL, client *http.Client) (bool, error) {
	origin := target.Scheme + "://" + target.Host
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}

	rc.mu.RLock()
	cached, exists := rc.cache[origin]
	rc.mu.RUnlock()

	if exists && rc.now().Before(cached.expiresAt) {
		return cached.data.TestAgent(path, rc.userAgent), nil
	}

	data, err := rc.fetch(ctx, origin, client)
	if err != nil {
		return false, err
	}

	rc.mu.Lock()
	rc.cache[origin] = &RobotsTxt{
		data:      data,
		expiresAt: rc.now().Add(rc.ttl),
	}
	rc.mu.Unlock()

	return data.TestAgent(path, rc.userAgent), nil
}

func (rc *RobotsCache) fetch(ctx context.Context, origin string, client *http.Client) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rc.logger.Debug("robots.txt unavailable, assuming allowed", "origin", origin, "error", err)
		return robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		rc.logger.Debug("robots.txt unreadable, assuming allowed", "origin", origin, "error", err)
		return robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		rc.logger.Warn("robots.txt malformed, assuming allowed", "origin", origin, "error", err)
		return robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	}
	return data, nil
}
