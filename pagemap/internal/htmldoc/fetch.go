package htmldoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
)

// maxBody caps a fetched page.
const maxBody = 10 << 20

// maxRedirects caps the redirect hops of one fetch.
const maxRedirects = 5

// Result is the outcome of an HTTP fetch.
type Result struct {
	Doc        *dom.Document
	StatusCode int
	Size       int
	// Sufficient is false when the page looks like a client-rendered shell
	// that needs a browser to be useful.
	Sufficient bool
}

// Fetcher GETs pages over plain HTTP and parses them into documents.
type Fetcher struct {
	client   *http.Client
	ua       string
	viewport dom.Viewport
	logger   *slog.Logger
	validate func(ctx context.Context, rawURL string) error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithViewport sets the viewport assigned to fetched documents.
func WithViewport(vp dom.Viewport) Option {
	return func(f *Fetcher) { f.viewport = vp }
}

// WithURLValidator checks every redirect target before it is followed.
func WithURLValidator(fn func(ctx context.Context, rawURL string) error) Option {
	return func(f *Fetcher) { f.validate = fn }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a Fetcher with sensible defaults.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "Mozilla/5.0 (compatible; domsight/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	c := *f.client
	c.CheckRedirect = f.checkRedirect
	f.client = &c
	return f
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("htmldoc: too many redirects (%d)", len(via))
	}
	if f.validate != nil {
		if err := f.validate(req.Context(), req.URL.String()); err != nil {
			return fmt.Errorf("htmldoc: redirect blocked: %w", err)
		}
	}
	return nil
}

// Fetch GETs pageURL and parses the body.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("htmldoc: read body: %w", err)
	}

	// Redirects change the document URL.
	docURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		docURL = resp.Request.URL.String()
	}
	doc, err := Parse(bytes.NewReader(body), Options{URL: docURL, Viewport: f.viewport})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Doc:        doc,
		StatusCode: resp.StatusCode,
		Size:       len(body),
		Sufficient: IsSufficient(doc, len(body)),
	}
	f.logger.Debug("htmldoc: fetched",
		"url", docURL, "status", resp.StatusCode,
		"size", len(body), "sufficient", res.Sufficient)
	return res, nil
}

// spaRoots are mount points client-side frameworks render into.
var spaRoots = []string{"root", "app", "__next", "__nuxt", "svelte"}

// IsSufficient reports whether a parsed page carries enough text to be
// useful without running scripts. size is the raw body length in bytes.
func IsSufficient(doc *dom.Document, size int) bool {
	if doc == nil || size < 256 {
		return false
	}
	body := doc.Root.Find(dom.ByTag("body"))
	if body == nil {
		return false
	}

	text := visibleRunes(body)
	// Under 200 characters, or under 10% of the bytes, is a shell.
	if text < 200 || float64(text)/float64(size) < 0.10 {
		return false
	}

	for _, id := range spaRoots {
		if root := body.Find(dom.ByID(id)); root != nil && len(root.Children) == 0 {
			return false
		}
	}
	if ns := body.Find(dom.ByTag("noscript")); ns != nil {
		var b strings.Builder
		for _, c := range ns.Children {
			b.WriteString(c.Data)
		}
		if strings.Contains(strings.ToLower(b.String()), "enable javascript") {
			return false
		}
	}
	return true
}

// visibleRunes counts non-space runes of n's text content.
func visibleRunes(n *dom.Node) int {
	count := 0
	for _, r := range n.TextContent() {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return count
}
