package htmldoc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
)

func mustParse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := ParseString(src, Options{URL: "https://example.test/"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestParse_TreeAndTitle(t *testing.T) {
	doc := mustParse(t, `<!DOCTYPE html><html><head><title>Hello</title></head><body><!-- c --><p class="x">Hi</p></body></html>`)

	if doc.Title != "Hello" {
		t.Errorf("title: %q", doc.Title)
	}
	if doc.Viewport != dom.DefaultViewport {
		t.Errorf("viewport: %+v", doc.Viewport)
	}
	if doc.Root.Children[0].Type != dom.DoctypeNode {
		t.Errorf("first child should be the doctype, got %v", doc.Root.Children[0].Type)
	}
	if html := doc.DocumentElement(); html == nil || html.Tag != "html" {
		t.Fatalf("document element: %+v", html)
	}
	p := doc.Root.Find(dom.ByTag("p"))
	if p == nil || p.Parent.Tag != "body" {
		t.Fatal("p not under body")
	}
	if v, _ := p.Attr("class"); v != "x" {
		t.Errorf("class: %q", v)
	}
	body := p.Parent
	if body.Children[0].Type != dom.CommentNode {
		t.Errorf("comment lost")
	}
}

func TestParse_Viewport(t *testing.T) {
	vp := dom.Viewport{Width: 400, Height: 300}
	doc, err := ParseString(`<p>x</p>`, Options{Viewport: vp})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Viewport != vp {
		t.Errorf("got %+v", doc.Viewport)
	}
}

func TestParse_DeclarativeShadowRoot(t *testing.T) {
	doc := mustParse(t, `<body>
		<div id="open"><template shadowrootmode="open"><span>a</span></template><em>light</em></div>
		<div id="closed"><template shadowrootmode="closed"><span>b</span></template></div>
		<div id="plain"><template><span>c</span></template></div>
	</body>`)

	open := doc.Root.Find(dom.ByID("open"))
	if open.OpenShadow() == nil {
		t.Fatal("open shadow root missing")
	}
	if len(open.Shadow.Children) != 1 || open.Shadow.Children[0].Tag != "span" {
		t.Errorf("shadow children: %+v", open.Shadow.Children)
	}
	for _, c := range open.Children {
		if c.Tag == "template" {
			t.Error("declarative template left in light tree")
		}
	}

	closed := doc.Root.Find(dom.ByID("closed"))
	if closed.Shadow == nil || closed.Shadow.ShadowMode != dom.ShadowClosed || closed.OpenShadow() != nil {
		t.Errorf("closed shadow root: %+v", closed.Shadow)
	}

	plain := doc.Root.Find(dom.ByID("plain"))
	if plain.Shadow != nil {
		t.Error("plain template should not create a shadow root")
	}
	if plain.Find(dom.ByTag("template")) == nil {
		t.Error("plain template should stay in the tree")
	}
}

func TestLayout(t *testing.T) {
	doc := mustParse(t, `<html><head><title>t</title></head><body>
		<p id="plain">x</p>
		<p id="none" style="display: none !important">x</p>
		<div style="display:none"><p id="under-none">x</p></div>
		<p id="hidden-attr" hidden>x</p>
		<p id="hidden-shown" hidden style="display:block">x</p>
		<div style="visibility:hidden"><p id="inherits">x</p></div>
		<p id="fixed" style="position:fixed; left:10px; top:20px; width:30px; height:40px">x</p>
		<p id="partial" style="position:absolute; left:10px; width:30px">x</p>
		<p id="zero-h" style="height:0">x</p>
		<p id="transparent" style="OPACITY:0">x</p>
	</body></html>`)

	byID := func(id string) *dom.Node {
		n := doc.Root.Find(dom.ByID(id))
		if n == nil {
			t.Fatalf("#%s not found", id)
		}
		return n
	}

	if l := byID("plain").Layout; l.Box != nil || l.Style == nil || l.Style.Visibility != "visible" || l.Style.Opacity != "1" {
		t.Errorf("plain: %+v %+v", l.Style, l.Box)
	}
	if l := byID("none").Layout; l.Style.Display != "none" || l.Box == nil || !l.Box.Empty() {
		t.Errorf("none: %+v %+v", l.Style, l.Box)
	}
	if l := byID("under-none").Layout; l.Box == nil || !l.Box.Empty() {
		t.Errorf("under-none should have an empty box: %+v", l.Box)
	}
	if l := byID("hidden-attr").Layout; l.Style.Display != "none" {
		t.Errorf("hidden attr: %+v", l.Style)
	}
	if l := byID("hidden-shown").Layout; l.Style.Display != "block" || l.Box != nil {
		t.Errorf("hidden overridden: %+v %+v", l.Style, l.Box)
	}
	if l := byID("inherits").Layout; l.Style.Visibility != "hidden" {
		t.Errorf("visibility should inherit: %+v", l.Style)
	}
	if l := byID("fixed").Layout; l.Box == nil || *l.Box != (dom.Rect{X: 10, Y: 20, Width: 30, Height: 40}) {
		t.Errorf("fixed box: %+v", l.Box)
	}
	if l := byID("partial").Layout; l.Box != nil {
		t.Errorf("partial box should be unknown: %+v", l.Box)
	}
	if l := byID("zero-h").Layout; l.Box == nil || !l.Box.Empty() {
		t.Errorf("zero height: %+v", l.Box)
	}
	if l := byID("transparent").Layout; l.Style.Opacity != "0" {
		t.Errorf("opacity: %+v", l.Style)
	}
	if title := doc.Root.Find(dom.ByTag("title")); title.Layout.Box == nil || !title.Layout.Box.Empty() {
		t.Error("title should be unrendered")
	}
}

const article = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
<main>
<article>
<h1>Article Title</h1>
<p>Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur.</p>
</article>
</main>
</body>
</html>`

func TestIsSufficient(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"static article", article, true},
		{"spa shell", `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>App</title></head>
<body>
<div id="root"></div>
<script src="/static/js/main.chunk.js"></script>
</body>
</html>`, false},
		{"too short", `<html><body>hi</body></html>`, false},
		{"empty body", `<!DOCTYPE html><html><head></head><body></body></html>`, false},
		{"text plus empty mount point", strings.Replace(article, "<main>", `<main><div id="app"></div>`, 1), false},
		{"noscript warning", strings.Replace(article, "<main>", `<noscript>You need to enable JavaScript to run this app.</noscript><main>`, 1), false},
		{"markup heavy", "<html><body>" + strings.Repeat(`<div class="a-very-long-class-name"></div>`, 200) + strings.Repeat("word ", 60) + "</body></html>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.html)
			if got := IsSufficient(doc, len(tt.html)); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetcher_Fetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/article", http.StatusFound)
		case "/article":
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, article)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(WithUserAgent("pagemap-test"), WithViewport(dom.Viewport{Width: 800, Height: 600}))
	res, err := f.Fetch(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.StatusCode != http.StatusOK || !res.Sufficient || res.Size != len(article) {
		t.Errorf("result: status=%d sufficient=%v size=%d", res.StatusCode, res.Sufficient, res.Size)
	}
	if res.Doc.URL != srv.URL+"/article" {
		t.Errorf("url after redirect: %q", res.Doc.URL)
	}
	if res.Doc.Title != "Test Page" || res.Doc.Viewport.Width != 800 {
		t.Errorf("doc: %q %+v", res.Doc.Title, res.Doc.Viewport)
	}
	if gotUA != "pagemap-test" {
		t.Errorf("user agent: %q", gotUA)
	}
}

func TestFetcher_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, article)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFetcher().Fetch(ctx, srv.URL); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestFetcher_RedirectChecks(t *testing.T) {
	errBlocked := errors.New("blocked")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hop":
			http.Redirect(w, r, "/internal", http.StatusFound)
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		case "/internal":
			t.Error("a blocked redirect target was requested")
		}
	}))
	defer srv.Close()

	var checked []string
	f := NewFetcher(WithURLValidator(func(_ context.Context, u string) error {
		checked = append(checked, u)
		if strings.HasSuffix(u, "/internal") {
			return errBlocked
		}
		return nil
	}))
	if _, err := f.Fetch(context.Background(), srv.URL+"/hop"); !errors.Is(err, errBlocked) {
		t.Errorf("redirect to a refused target: %v", err)
	}
	if len(checked) != 1 || checked[0] != srv.URL+"/internal" {
		t.Errorf("validated: %v", checked)
	}

	_, err := NewFetcher().Fetch(context.Background(), srv.URL+"/loop")
	if err == nil || !strings.Contains(err.Error(), "too many redirects") {
		t.Errorf("redirect loop: %v", err)
	}
}
