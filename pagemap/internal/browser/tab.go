package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is one live page: a rod page with stealth, resource blocking, a fixed
// viewport and mutation tracking applied.
type Tab struct {
	PageID  string
	Stealth StealthLevel

	mgr     *Manager
	mu      sync.Mutex
	page    *rod.Page
	router  *rod.HijackRouter
	tracker *Tracker
	// gen offsets the tracker after a reopen so generations never go back.
	gen uint64
}

// OpenTab creates a tab, navigates it to pageURL and starts mutation
// tracking. The browser is launched on first use.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, pageID string, level StealthLevel) (*Tab, error) {
	if level == LevelHeadful && !mgr.cfg.Headful {
		mgr.cfg.Logger.Warn("browser: headful requested on a headless browser", "page_id", pageID)
	}
	t := &Tab{PageID: pageID, Stealth: level, mgr: mgr}
	if err := t.open(ctx, pageURL); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tab) open(ctx context.Context, pageURL string) error {
	b, err := t.mgr.Ensure(ctx)
	if err != nil {
		return err
	}
	cfg := t.mgr.cfg

	var page *rod.Page
	if t.Stealth >= LevelHeadless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return fmt.Errorf("browser: create tab: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		cfg.Logger.Warn("browser: set viewport failed", "page_id", t.PageID, "error", err)
	}

	var router *rod.HijackRouter
	if len(cfg.ResourceBlocking) > 0 {
		router = blockResources(page, cfg.ResourceBlocking)
	}

	tracker, err := track(context.Background(), page)
	if err != nil {
		if router != nil {
			router.Stop()
		}
		page.Close()
		return fmt.Errorf("browser: enable DOM: %w", err)
	}

	if err := navigate(ctx, page, pageURL, cfg); err != nil {
		tracker.Stop()
		if router != nil {
			router.Stop()
		}
		page.Close()
		return err
	}

	t.mu.Lock()
	t.page, t.router, t.tracker = page, router, tracker
	t.mu.Unlock()
	return nil
}

func navigate(ctx context.Context, page *rod.Page, pageURL string, cfg Config) error {
	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// Page returns the current rod page, nil after Close or a failed Reopen.
func (t *Tab) Page() *rod.Page {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.page
}

// ErrTabClosed is returned for operations on a closed tab.
var ErrTabClosed = errors.New("browser: tab is closed")

func (t *Tab) live() (*rod.Page, error) {
	if p := t.Page(); p != nil {
		return p, nil
	}
	return nil, ErrTabClosed
}

// Generation returns the tab's structural mutation count.
func (t *Tab) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen + t.tracker.Generation()
}

// URL returns the tab's current URL.
func (t *Tab) URL() string {
	p := t.Page()
	if p == nil {
		return ""
	}
	info, err := p.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Navigate loads pageURL in the tab.
func (t *Tab) Navigate(ctx context.Context, pageURL string) error {
	p, err := t.live()
	if err != nil {
		return err
	}
	return navigate(ctx, p, pageURL, t.mgr.cfg)
}

// GoBack navigates one step back in history.
func (t *Tab) GoBack(ctx context.Context) error {
	page, err := t.live()
	if err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(ctx, t.mgr.cfg.NavigateTimeout)
	defer cancel()

	p := page.Context(navCtx)
	if err := p.NavigateBack(); err != nil {
		return fmt.Errorf("browser: go back: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		t.mgr.cfg.Logger.Warn("browser: wait load timeout", "page_id", t.PageID, "error", err)
	}
	return nil
}

// Reopen replaces a tab lost to a browser recycle with a fresh one at
// pageURL. The generation keeps increasing across the swap.
func (t *Tab) Reopen(ctx context.Context, pageURL string) error {
	t.mu.Lock()
	t.gen += t.tracker.Generation() + 1
	t.release()
	t.mu.Unlock()
	return t.open(ctx, pageURL)
}

// Close closes the tab.
func (t *Tab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	page := t.page
	t.release()
	if page != nil {
		return page.Close()
	}
	return nil
}

// release stops tracking and interception. The caller holds t.mu.
func (t *Tab) release() {
	t.tracker.Stop()
	if t.router != nil {
		t.router.Stop()
	}
	t.tracker, t.router, t.page = nil, nil, nil
}
