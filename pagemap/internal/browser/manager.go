// Package browser is the live document source. It manages the Chrome
// lifecycle (launch or remote, recycle on age or heap, Xvfb for headful
// mode), opens tabs, and turns a tab's DOM into a dom.Document in one
// consistent capture.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// StealthLevel selects how a page is acquired.
type StealthLevel int

const (
	LevelAuto     StealthLevel = -1 // HTTP first, headless when the page is a shell
	LevelHTTP     StealthLevel = 0  // no browser, static document
	LevelHeadless StealthLevel = 1  // rod headless + stealth
	LevelHeadful  StealthLevel = 2  // rod headful under Xvfb
)

// ParseStealth accepts "auto", "http", "headless", "headful" or 0..2.
func ParseStealth(s string) (StealthLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return LevelAuto, nil
	case "http", "0":
		return LevelHTTP, nil
	case "headless", "1":
		return LevelHeadless, nil
	case "headful", "2":
		return LevelHeadful, nil
	}
	return 0, fmt.Errorf("browser: unknown stealth level %q", s)
}

func (l StealthLevel) String() string {
	switch l {
	case LevelAuto:
		return "auto"
	case LevelHTTP:
		return "http"
	case LevelHeadless:
		return "headless"
	case LevelHeadful:
		return "headful"
	}
	return strconv.Itoa(int(l))
}

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// MemoryLimit in bytes of JS heap. Recycle Chrome when exceeded. Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum lifetime of a Chrome process. Default: 4h.
	RecycleInterval time.Duration

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// Headful launches a visible browser on XvfbDisplay.
	Headful bool

	// XvfbDisplay for headful mode. Default: ":99".
	XvfbDisplay string

	// ViewportWidth and ViewportHeight are applied to every tab. Default: 1280x720.
	ViewportWidth  int
	ViewportHeight int

	// NavigateTimeout bounds navigation and load waits. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1280
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 720
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RecycleCallback is called around Chrome recycling. Tabs of the old process
// are dead after BeforeRecycle returns.
type RecycleCallback struct {
	BeforeRecycle func()
	AfterRecycle  func(browser *rod.Browser)
}

// Manager owns one Chrome process. It starts lazily on first use.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	startAt time.Time
	closed  bool
	cb      *RecycleCallback
	stop    context.CancelFunc
}

// NewManager creates a browser Manager. Chrome is not started until Ensure.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// SetRecycleCallback sets the callback for recycle events.
func (m *Manager) SetRecycleCallback(cb *RecycleCallback) {
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()
}

// Ensure returns the running browser, launching it first if needed. The
// monitor goroutine lives until Close, not until ctx is done.
func (m *Manager) Ensure(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return m.browser, nil
	}

	b, err := m.launch(ctx)
	if err != nil {
		return nil, err
	}
	m.browser = b
	m.startAt = time.Now()

	monCtx, cancel := context.WithCancel(context.Background())
	m.stop = cancel
	go m.monitorLoop(monCtx)

	return b, nil
}

// Browser returns the current Rod browser handle, or nil before Ensure.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Recycle kills Chrome, restarts it, and calls the AfterRecycle callback.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("browser: manager is closed")
	}
	b, err := m.recycleLocked(ctx)
	cb := m.cb
	m.mu.Unlock()
	if err != nil {
		return err
	}

	// Called without the lock: the callback reopens tabs through Browser().
	if cb != nil && cb.AfterRecycle != nil {
		cb.AfterRecycle(b)
	}
	return nil
}

// Close shuts down Chrome and Xvfb.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.stop != nil {
		m.stop()
	}
	return m.cleanup()
}

func (m *Manager) launch(_ context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger

	if m.cfg.Headful {
		if err := m.startXvfb(); err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New()
		if m.cfg.Headful {
			l = l.Headless(false).Env("DISPLAY="+m.cfg.XvfbDisplay)
		} else {
			l = l.Headless(true)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headful", m.cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	return b, nil
}

func (m *Manager) recycleLocked(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger
	log.Info("browser: recycling", "uptime", time.Since(m.startAt))

	if m.cb != nil && m.cb.BeforeRecycle != nil {
		m.cb.BeforeRecycle()
	}
	if err := m.cleanup(); err != nil {
		log.Warn("browser: cleanup during recycle", "error", err)
	}

	b, err := m.launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser: relaunch: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()
	log.Info("browser: recycled")
	return b, nil
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}

func (m *Manager) monitorLoop(ctx context.Context) {
	log := m.cfg.Logger
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.RLock()
		b, startAt, closed := m.browser, m.startAt, m.closed
		m.mu.RUnlock()
		if closed {
			return
		}
		if b == nil {
			continue
		}

		if time.Since(startAt) > m.cfg.RecycleInterval {
			log.Info("browser: recycle interval reached")
			if err := m.Recycle(ctx); err != nil {
				log.Error("browser: recycle failed", "error", err)
			}
			continue
		}

		used, err := jsHeapUsed(b)
		if err != nil {
			log.Debug("browser: heap check failed", "error", err)
			continue
		}
		if used > m.cfg.MemoryLimit {
			log.Info("browser: memory limit exceeded", "used", used, "limit", m.cfg.MemoryLimit)
			if err := m.Recycle(ctx); err != nil {
				log.Error("browser: recycle failed", "error", err)
			}
		}
	}
}

// jsHeapUsed sums JSHeapUsedSize over all open pages.
func jsHeapUsed(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, fmt.Errorf("browser: no pages for heap check")
	}
	var total float64
	for _, p := range pages {
		if err := (proto.PerformanceEnable{}).Call(p); err != nil {
			continue
		}
		res, err := proto.PerformanceGetMetrics{}.Call(p)
		if err != nil {
			continue
		}
		total += heapMetric(res.Metrics)
	}
	return int64(total), nil
}

func heapMetric(metrics []*proto.PerformanceMetric) float64 {
	for _, m := range metrics {
		if m != nil && m.Name == "JSHeapUsedSize" {
			return m.Value
		}
	}
	return 0
}
