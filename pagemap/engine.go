// Package pagemap captures web pages as structured snapshots: every visible,
// relevant element with a stable locator, its text, box, role and semantic
// group. Locators taken from a snapshot can later be resolved back to the
// live element to act on it.
//
// A page is either static (fetched over HTTP and parsed once) or live (a
// Chrome tab driven through CDP). The stealth level of a page decides which;
// "auto" fetches first and escalates to a browser when the page turns out
// to be a client-rendered shell.
package pagemap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/domsight/guard"
	"github.com/hazyhaar/domsight/idgen"
	"github.com/hazyhaar/domsight/pagemap/internal/assemble"
	"github.com/hazyhaar/domsight/pagemap/internal/browser"
	"github.com/hazyhaar/domsight/pagemap/internal/config"
	"github.com/hazyhaar/domsight/pagemap/internal/dom"
	"github.com/hazyhaar/domsight/pagemap/internal/htmldoc"
	"github.com/hazyhaar/domsight/pagemap/internal/journal"
	"github.com/hazyhaar/domsight/pagemap/internal/locator"
	"github.com/hazyhaar/domsight/pagemap/internal/render"
	"github.com/hazyhaar/domsight/pagemap/internal/sink"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// PageInfo describes a registered page.
type PageInfo struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Stealth    string `json:"stealth"`
	Live       bool   `json:"live"`
	Generation uint64 `json:"generation"`
	// LatestSnapshot is the ID of the page's most recent snapshot.
	LatestSnapshot string `json:"latest_snapshot,omitempty"`
}

// JournalEntry is one recorded command.
type JournalEntry = journal.Entry

// page is one registered page. Exactly one of tab and doc is set. mu
// serialises snapshots and commands on the page.
type page struct {
	id    string
	level browser.StealthLevel

	mu      sync.Mutex
	url     string
	tab     *browser.Tab
	doc     *dom.Document
	history []string // static pages only
	latest  *snapshot.Snapshot
}

func (p *page) live() bool { return p.tab != nil }

func (p *page) generation() uint64 {
	if p.tab != nil {
		return p.tab.Generation()
	}
	if p.doc == nil {
		return 0
	}
	return p.doc.Generation
}

// Engine owns the browser, the registered pages and the output sinks.
// Create one per process.
type Engine struct {
	cfg    *Config
	mgr    *browser.Manager
	fetch  *htmldoc.Fetcher
	sinkR  *sink.Router
	jrnl   *journal.Journal
	render *render.Renderer
	logger *slog.Logger
	now    func() time.Time
	newID  idgen.Generator
	pageID idgen.Generator

	mu     sync.RWMutex
	pages  map[string]*page
	closed bool
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger *slog.Logger
	sinks  []Sink
	client *http.Client
	now    func() time.Time
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithSink adds an output sink besides those in the configuration.
func WithSink(s Sink) Option {
	return func(o *engineOptions) { o.sinks = append(o.sinks, s) }
}

// WithHTTPClient sets the client static pages are fetched with.
func WithHTTPClient(c *http.Client) Option {
	return func(o *engineOptions) { o.client = c }
}

// WithClock sets the clock snapshots and outcomes are stamped with.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// New creates an Engine. A nil cfg means all defaults. Chrome is not started
// until the first live page is opened.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.Parse([]byte("{}")); err != nil {
			return nil, err
		}
	}
	o := engineOptions{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	sinks, err := sinksFromConfig(cfg.Sinks, o.logger)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, o.sinks...)

	bc := cfg.Browser
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        bc.Remote,
		MemoryLimit:      bc.MemoryLimit,
		RecycleInterval:  bc.RecycleInterval,
		ResourceBlocking: bc.ResourceBlocking,
		Headful:          bc.Stealth == "headful",
		XvfbDisplay:      bc.XvfbDisplay,
		ViewportWidth:    bc.ViewportWidth,
		ViewportHeight:   bc.ViewportHeight,
		NavigateTimeout:  bc.NavigateTimeout,
		Logger:           o.logger,
	})

	blockPrivate := cfg.Security.BlockPrivateNetworks
	fetchOpts := []htmldoc.Option{
		htmldoc.WithLogger(o.logger),
		htmldoc.WithURLValidator(func(ctx context.Context, u string) error {
			return guard.ValidateURL(ctx, u, blockPrivate)
		}),
		htmldoc.WithViewport(dom.Viewport{Width: float64(bc.ViewportWidth), Height: float64(bc.ViewportHeight)}),
	}
	if o.client != nil {
		fetchOpts = append(fetchOpts, htmldoc.WithClient(o.client))
	}

	e := &Engine{
		cfg:    cfg,
		mgr:    mgr,
		fetch:  htmldoc.NewFetcher(fetchOpts...),
		sinkR:  sink.NewRouter(o.logger, sinks...),
		render: render.New(),
		logger: o.logger,
		now:    o.now,
		newID:  idgen.UUIDv7(),
		pageID: idgen.Prefixed("page_", idgen.UUIDv7()),
		pages:  make(map[string]*page),
	}

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, journal.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		e.jrnl = j
	}

	mgr.SetRecycleCallback(&browser.RecycleCallback{
		AfterRecycle: func(*rod.Browser) { e.reopenTabs() },
	})
	return e, nil
}

// Start opens every page listed in the configuration. Failures are logged
// and do not stop the remaining pages.
func (e *Engine) Start(ctx context.Context) {
	for _, pc := range e.cfg.Pages {
		if _, err := e.OpenPage(ctx, pc); err != nil {
			e.logger.Error("pagemap: failed to open page", "id", pc.ID, "url", pc.URL, "error", err)
		}
	}
}

// DefaultConfig returns the snapshot configuration used when a call does
// not carry one.
func (e *Engine) DefaultConfig() snapshot.Config {
	if e.cfg.Snapshot != nil {
		cfg := *e.cfg.Snapshot
		cfg.ElementFilter = slices.Clone(cfg.ElementFilter)
		return cfg
	}
	return snapshot.DefaultConfig()
}

// OpenPage registers a page and loads it at the stealth level pc asks for.
// An empty ID is generated. Opening an ID that is already registered
// replaces the old page.
func (e *Engine) OpenPage(ctx context.Context, pc PageConfig) (*PageInfo, error) {
	if pc.URL == "" {
		return nil, fmt.Errorf("%w: url is required", snapshot.ErrConfiguration)
	}
	if err := e.checkURL(ctx, pc.URL); err != nil {
		return nil, err
	}
	if pc.ID != "" {
		if err := guard.ValidateIdentifier(pc.ID); err != nil {
			return nil, err
		}
	}
	level, err := browser.ParseStealth(pc.StealthLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", snapshot.ErrConfiguration, err)
	}
	if pc.ID == "" {
		pc.ID = e.pageID()
	}

	p := &page{id: pc.ID, url: pc.URL}
	var fetched *htmldoc.Result
	if level == browser.LevelAuto {
		if level, fetched, err = e.resolveStealthLevel(ctx, pc); err != nil {
			return nil, err
		}
	}
	p.level = level

	switch level {
	case browser.LevelHTTP:
		if fetched == nil {
			if fetched, err = e.fetch.Fetch(ctx, pc.URL); err != nil {
				return nil, fmt.Errorf("pagemap: fetch %s: %w", pc.URL, err)
			}
		}
		p.doc, p.url = fetched.Doc, fetched.Doc.URL
	default:
		tab, err := browser.OpenTab(ctx, e.mgr, pc.URL, pc.ID, level)
		if err != nil {
			return nil, fmt.Errorf("pagemap: open tab: %w", err)
		}
		p.tab = tab
	}

	if err := e.register(p); err != nil {
		return nil, err
	}
	e.logger.Info("pagemap: page opened", "id", p.id, "url", pc.URL, "stealth", level)
	return p.info(), nil
}

// OpenHTML registers a static page from markup already in hand. pageURL is
// recorded as the document URL and may be empty.
func (e *Engine) OpenHTML(id, pageURL, markup string) (*PageInfo, error) {
	if id == "" {
		id = e.pageID()
	} else if err := guard.ValidateIdentifier(id); err != nil {
		return nil, err
	}
	bc := e.cfg.Browser
	doc, err := htmldoc.ParseString(markup, htmldoc.Options{
		URL:      pageURL,
		Viewport: dom.Viewport{Width: float64(bc.ViewportWidth), Height: float64(bc.ViewportHeight)},
	})
	if err != nil {
		return nil, err
	}
	p := &page{id: id, url: pageURL, level: browser.LevelHTTP, doc: doc}
	if err := e.register(p); err != nil {
		return nil, err
	}
	return p.info(), nil
}

func (e *Engine) register(p *page) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		p.close()
		return fmt.Errorf("pagemap: engine is closed")
	}
	old := e.pages[p.id]
	e.pages[p.id] = p
	e.mu.Unlock()

	if old != nil {
		e.logger.Info("pagemap: page replaced", "id", p.id)
		old.mu.Lock()
		old.close()
		old.mu.Unlock()
	}
	return nil
}

// checkURL rejects URLs a page may not be opened or navigated to.
func (e *Engine) checkURL(ctx context.Context, u string) error {
	return guard.ValidateURL(ctx, u, e.cfg.Security.BlockPrivateNetworks)
}

// resolveStealthLevel fetches the page over HTTP and keeps it static when
// the response carries enough content; otherwise it escalates to headless.
// A redirect refused by the URL policy is an error, not a reason to retry
// in a browser.
func (e *Engine) resolveStealthLevel(ctx context.Context, pc PageConfig) (browser.StealthLevel, *htmldoc.Result, error) {
	res, err := e.fetch.Fetch(ctx, pc.URL)
	if err != nil {
		if errors.Is(err, guard.ErrPrivateAddress) || errors.Is(err, guard.ErrUnsafeScheme) {
			return 0, nil, fmt.Errorf("pagemap: fetch %s: %w", pc.URL, err)
		}
		e.logger.Warn("pagemap: auto-detect fetch failed, escalating to headless",
			"url", pc.URL, "error", err)
		return browser.LevelHeadless, nil, nil
	}
	if res.Sufficient && res.StatusCode < 400 {
		return browser.LevelHTTP, res, nil
	}
	e.logger.Info("pagemap: content insufficient via HTTP, escalating to headless",
		"url", pc.URL, "status", res.StatusCode)
	return browser.LevelHeadless, nil, nil
}

func (e *Engine) page(id string) (*page, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", snapshot.ErrUnknownPage, id)
	}
	return p, nil
}

// Pages lists the registered pages ordered by ID.
func (e *Engine) Pages() []PageInfo {
	e.mu.RLock()
	pages := make([]*page, 0, len(e.pages))
	for _, p := range e.pages {
		pages = append(pages, p)
	}
	e.mu.RUnlock()

	out := make([]PageInfo, 0, len(pages))
	for _, p := range pages {
		p.mu.Lock()
		out = append(out, *p.info())
		p.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// info describes p. The caller holds p.mu or owns p exclusively.
func (p *page) info() *PageInfo {
	pi := &PageInfo{
		ID:         p.id,
		URL:        p.url,
		Stealth:    p.level.String(),
		Live:       p.live(),
		Generation: p.generation(),
	}
	if p.latest != nil {
		pi.LatestSnapshot = p.latest.ID
	}
	return pi
}

// Snapshot captures the page under cfg, records it as the page's latest
// snapshot and hands it to the sinks. Sink failures are logged, not
// returned.
func (e *Engine) Snapshot(ctx context.Context, pageID string, cfg snapshot.Config) (*snapshot.Snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := e.page(pageID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	snap, err := e.snapshotLocked(ctx, p, cfg)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := e.sinkR.SendSnapshot(ctx, snap); err != nil {
		e.logger.Warn("pagemap: snapshot delivery failed", "page_id", pageID, "error", err)
	}
	return snap, nil
}

func (e *Engine) snapshotLocked(ctx context.Context, p *page, cfg snapshot.Config) (*snapshot.Snapshot, error) {
	doc := p.doc
	if p.live() {
		var err error
		if doc, err = browser.Capture(ctx, p.tab); err != nil {
			return nil, fmt.Errorf("pagemap: capture %s: %w", p.id, err)
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("pagemap: page %s is closed", p.id)
	}

	snap, err := assemble.Assemble(doc, cfg, assemble.Options{PageID: p.id, Now: e.now, Logger: e.logger})
	if err != nil {
		return nil, err
	}
	snap.ID = e.newID()
	p.latest = snap
	if snap.URL != "" {
		p.url = snap.URL
	}
	e.logger.Debug("pagemap: snapshot",
		"page_id", p.id, "snapshot_id", snap.ID,
		"elements", len(snap.Elements), "generation", snap.Generation)
	return snap, nil
}

// Latest returns the page's most recent snapshot, or nil when none was taken.
func (e *Engine) Latest(pageID string) (*snapshot.Snapshot, error) {
	p, err := e.page(pageID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, nil
}

// Resolve checks whether loc still names an element of the page. Not finding
// it is a normal result, not an error. On live pages Stale reports that the
// page's structure changed since its latest snapshot.
func (e *Engine) Resolve(ctx context.Context, pageID, loc string) (*snapshot.Resolution, error) {
	p, err := e.page(pageID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	res := &snapshot.Resolution{Locator: loc, Stale: p.stale()}
	tag, err := p.lookup(ctx, loc)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		return res, nil
	case err != nil:
		return nil, err
	}
	res.Found, res.Tag = true, tag
	return res, nil
}

// lookup resolves loc on the page and returns the matched node's tag.
func (p *page) lookup(ctx context.Context, loc string) (string, error) {
	if p.live() {
		el, err := browser.Resolve(ctx, p.tab, loc)
		if err != nil {
			return "", err
		}
		return browser.Tag(el), nil
	}
	n, err := locator.Resolve(p.doc, loc)
	if err != nil {
		return "", err
	}
	return n.Tag, nil
}

// stale reports a structural change since the latest snapshot.
func (p *page) stale() bool {
	return p.latest != nil && p.generation() > p.latest.Generation
}

// View renders the page's latest snapshot as sanitized HTML.
func (e *Engine) View(pageID string) (string, error) {
	snap, err := e.latestOrErr(pageID)
	if err != nil {
		return "", err
	}
	return e.render.HTML(snap)
}

// Prompt renders the page's latest snapshot for a language model, as
// Markdown when markdown is set and as a numbered listing otherwise.
func (e *Engine) Prompt(pageID string, markdown bool) (string, error) {
	snap, err := e.latestOrErr(pageID)
	if err != nil {
		return "", err
	}
	if markdown {
		return e.render.Markdown(snap)
	}
	return render.Prompt(snap), nil
}

// ErrNoSnapshot is returned when a view is requested before any snapshot.
var ErrNoSnapshot = errors.New("pagemap: no snapshot taken yet")

func (e *Engine) latestOrErr(pageID string) (*snapshot.Snapshot, error) {
	snap, err := e.Latest(pageID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: page %q", ErrNoSnapshot, pageID)
	}
	return snap, nil
}

// History returns up to limit journaled commands of a page, newest first.
// It returns nothing when no journal is configured.
func (e *Engine) History(ctx context.Context, pageID string, limit int) ([]JournalEntry, error) {
	if e.jrnl == nil {
		return nil, nil
	}
	return e.jrnl.Recent(ctx, pageID, limit)
}

// ClosePage unregisters a page and closes its tab.
func (e *Engine) ClosePage(pageID string) error {
	e.mu.Lock()
	p, ok := e.pages[pageID]
	delete(e.pages, pageID)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", snapshot.ErrUnknownPage, pageID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.close()
}

func (p *page) close() error {
	if p.tab != nil {
		err := p.tab.Close()
		p.tab = nil
		return err
	}
	p.doc = nil
	return nil
}

// Close closes every page, the sinks, the journal and the browser.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	pages := e.pages
	e.pages = make(map[string]*page)
	e.mu.Unlock()

	for id, p := range pages {
		p.mu.Lock()
		if err := p.close(); err != nil {
			e.logger.Warn("pagemap: close page", "id", id, "error", err)
		}
		p.mu.Unlock()
	}

	var errs []error
	errs = append(errs, e.sinkR.Close())
	if e.jrnl != nil {
		errs = append(errs, e.jrnl.Close())
	}
	errs = append(errs, e.mgr.Close())
	return errors.Join(errs...)
}

// reopenTabs replaces the tabs lost to a browser recycle. Each tab comes
// back at the URL of its last snapshot or navigation.
func (e *Engine) reopenTabs() {
	e.mu.RLock()
	var live []*page
	for _, p := range e.pages {
		live = append(live, p)
	}
	e.mu.RUnlock()

	for _, p := range live {
		p.mu.Lock()
		if p.tab != nil {
			ctx, cancel := context.WithTimeout(context.Background(), e.mgr.Config().NavigateTimeout)
			if err := p.tab.Reopen(ctx, p.url); err != nil {
				e.logger.Error("pagemap: reopen tab after recycle failed", "id", p.id, "url", p.url, "error", err)
			} else {
				e.logger.Info("pagemap: tab reopened after recycle", "id", p.id)
			}
			cancel()
		}
		p.mu.Unlock()
	}
}
