// Package browser renders pages in headless Chromium through go-rod and
// exposes the live DOM as a document.Document.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"bulletin-scraper/internal/config"
	"bulletin-scraper/internal/document"
	"bulletin-scraper/internal/observability"
)

// Session owns one browser and the page it last loaded. Documents returned
// by Load stay valid until Close.
type Session struct {
	cfg      *config.Config
	logger   *observability.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	pages    []*rod.Page
}

// Launch starts a browser, or attaches to rod.control_url when set.
func Launch(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Session, error) {
	if logger == nil {
		logger = observability.NewNop()
	}
	s := &Session{cfg: cfg, logger: logger}

	controlURL := cfg.Rod.ControlURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(cfg.Rod.Headless)
		if cfg.Rod.ChromePath != "" {
			l = l.Bin(cfg.Rod.ChromePath)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		s.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		s.cleanupLauncher()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	s.browser = b

	logger.Debug("Browser connected", "control_url", controlURL, "launched", s.launcher != nil)
	return s, nil
}

// Load opens urlStr in a new tab and waits for the load event plus the
// configured lazy-load delay.
func (s *Session) Load(ctx context.Context, urlStr string) (document.Document, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, &document.FetchError{URL: urlStr, Err: fmt.Errorf("open page: %w", err)}
	}
	s.pages = append(s.pages, page)

	timed := page.Context(ctx).Timeout(s.cfg.GetRodPageTimeout())
	defer timed.CancelTimeout()
	if err := timed.Navigate(urlStr); err != nil {
		return nil, &document.FetchError{URL: urlStr, Err: fmt.Errorf("navigate: %w", err)}
	}

	loadPage := page.Context(ctx).Timeout(s.cfg.GetRodWaitLoadTimeout())
	defer loadPage.CancelTimeout()
	if err := loadPage.WaitLoad(); err != nil {
		return nil, &document.FetchError{URL: urlStr, Err: fmt.Errorf("wait load: %w", err)}
	}

	if delay := s.cfg.GetRodLazyLoadDelay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &document.FetchError{URL: urlStr, Err: ctx.Err()}
		}
	}

	// queries run without the navigation deadline but still honour ctx
	live := page.Context(ctx)
	has, root, err := live.Has("html")
	if err != nil {
		return nil, &document.FetchError{URL: urlStr, Err: fmt.Errorf("locate document root: %w", err)}
	}
	if !has {
		return nil, &document.FetchError{URL: urlStr, Err: fmt.Errorf("document root: %w", document.ErrNotFound)}
	}

	finalURL := urlStr
	if info, err := live.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	s.logger.Info("Page rendered", "url", finalURL)
	return &Document{Element: Element{el: root}, url: finalURL}, nil
}

// Close closes open pages and the browser, then removes a launched
// browser's process and profile directory.
func (s *Session) Close() error {
	var errs []error
	for _, p := range s.pages {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	s.pages = nil

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		s.browser = nil
	}
	s.cleanupLauncher()

	return errors.Join(errs...)
}

func (s *Session) cleanupLauncher() {
	if s.launcher == nil {
		return
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
	s.launcher = nil
}
