package locator

import (
	"errors"
	"strconv"
	"testing"

	"pgregory.net/rapid"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
	"github.com/hazyhaar/domsight/pagemap/internal/htmldoc"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := htmldoc.ParseString(src, htmldoc.Options{URL: "https://example.test/"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestSynthesize_SiblingRank(t *testing.T) {
	doc := parse(t, `<html><body><ul><li>a</li><li>b</li><li>c</li></ul><ol><li>only</li></ol></body></html>`)

	ul := doc.Root.Find(dom.ByTag("ul"))
	second := ul.Children[1]
	if got, want := Synthesize(second), "/html/body/ul/li[2]"; got != want {
		t.Errorf("second li: got %q, want %q", got, want)
	}

	ol := doc.Root.Find(dom.ByTag("ol"))
	if got, want := Synthesize(ol.Children[0]), "/html/body/ol/li"; got != want {
		t.Errorf("only li: got %q, want %q", got, want)
	}
}

func TestSynthesize_Shortcuts(t *testing.T) {
	doc := parse(t, `<html><body><p>x</p></body></html>`)

	tests := []struct {
		node *dom.Node
		want string
	}{
		{doc.DocumentElement(), "/html"},
		{doc.Root.Find(dom.ByTag("body")), "/html/body"},
		{doc.Root.Find(dom.ByTag("p")), "/html/body/p"},
		{doc.Root.Find(dom.ByTag("p")).Children[0], "/html/body/p/text()"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Synthesize(tt.node); got != tt.want {
			t.Errorf("Synthesize: got %q, want %q", got, tt.want)
		}
	}
}

func TestSynthesize_ShadowRoot(t *testing.T) {
	doc := parse(t, `<html><body>
		<div id="widget"><template shadowrootmode="open"><span>in</span><button>Press</button></template></div>
	</body></html>`)

	host := doc.Root.Find(dom.ByID("widget"))
	if host.OpenShadow() == nil {
		t.Fatal("expected an open shadow root on #widget")
	}
	btn := host.Shadow.Find(dom.ByTag("button"))
	loc := Synthesize(btn)
	if want := "/html/body/div/shadow-root/button"; loc != want {
		t.Fatalf("got %q, want %q", loc, want)
	}

	got, err := Resolve(doc, loc)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != btn {
		t.Errorf("resolved to a different node: %s", Synthesize(got))
	}
}

func TestResolve_ClosedShadowNotFound(t *testing.T) {
	doc := parse(t, `<html><body><div><template shadowrootmode="closed"><button>x</button></template></div></body></html>`)

	_, err := Resolve(doc, "/html/body/div/shadow-root/button")
	if !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_DetachedNode(t *testing.T) {
	doc := parse(t, `<html><body><section><p>a</p></section></body></html>`)

	orphan := dom.NewElement("section")
	p := orphan.AppendChild(dom.NewElement("p"))
	loc := Synthesize(p)
	if loc != "/section/p" {
		t.Fatalf("detached locator: got %q", loc)
	}
	if _, err := Resolve(doc, loc); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("detached node resolved: %v", err)
	}
}

func TestResolve_Missing(t *testing.T) {
	doc := parse(t, `<html><body><ul><li>a</li><li>b</li></ul></body></html>`)

	for _, loc := range []string{
		"/html/body/ul/li[3]",
		"/html/body/table",
		"/html/body/ul/li[1]/shadow-root/span",
	} {
		if _, err := Resolve(doc, loc); !errors.Is(err, snapshot.ErrNotFound) {
			t.Errorf("Resolve(%q): expected ErrNotFound, got %v", loc, err)
		}
	}
	if _, err := Resolve(nil, "/html"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("nil document: got %v", err)
	}
}

func TestResolve_Malformed(t *testing.T) {
	doc := parse(t, `<html><body></body></html>`)

	for _, loc := range []string{
		"",
		"html/body",
		"//button",
		"/html//body",
		"/html/body/li[0]",
		"/html/body/li[x]",
		"/html/body/li[2",
		"/html/shadow-root[1]",
		"/html/bo dy",
		"/html/body/*",
	} {
		_, err := Resolve(doc, loc)
		if !errors.Is(err, snapshot.ErrNotFound) {
			t.Errorf("Resolve(%q): expected ErrNotFound, got %v", loc, err)
		}
		if !errors.Is(err, snapshot.ErrMalformedLocator) {
			t.Errorf("Resolve(%q): expected ErrMalformedLocator, got %v", loc, err)
		}
	}
}

func TestResolve_CustomElementNames(t *testing.T) {
	doc := parse(t, `<html><body><math-α><button>Go</button></math-α><x-y$z>Hi</x-y$z><x-y$z>Bye</x-y$z></body></html>`)

	tests := []struct {
		loc, text string
	}{
		{"/html/body/math-α/button", "Go"},
		{"/html/body/x-y$z[1]", "Hi"},
		{"/html/body/x-y$z[2]", "Bye"},
	}
	for _, tt := range tests {
		n, err := Resolve(doc, tt.loc)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.loc, err)
		}
		if got := n.TextContent(); got != tt.text {
			t.Errorf("Resolve(%q) text = %q, want %q", tt.loc, got, tt.text)
		}
		if got := Synthesize(n); got != tt.loc {
			t.Errorf("Synthesize = %q, want %q", got, tt.loc)
		}
	}
}

func TestSynthesizer_WideList(t *testing.T) {
	doc := dom.NewDocument("")
	body := doc.Root.AppendChild(dom.NewElement("html")).AppendChild(dom.NewElement("body"))
	ul := body.AppendChild(dom.NewElement("ul"))
	items := make([]*dom.Node, 5000)
	for i := range items {
		items[i] = ul.AppendChild(dom.NewElement("li"))
		if i%100 == 0 {
			ul.AppendChild(dom.NewText("sep"))
		}
	}
	synth := NewSynthesizer()
	for i, li := range items {
		want := "/html/body/ul/li[" + strconv.Itoa(i+1) + "]"
		if got := synth.Synthesize(li); got != want {
			t.Fatalf("item %d: %s, want %s", i, got, want)
		}
	}
	if got := synth.Synthesize(ul.Children[1]); got != "/html/body/ul/text()[1]" {
		t.Errorf("text step: %s", got)
	}
}

func TestResolve_CaseInsensitive(t *testing.T) {
	doc := parse(t, `<html><body><button>Go</button></body></html>`)

	n, err := Resolve(doc, "/HTML/Body/BUTTON")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if n.Tag != "button" {
		t.Errorf("got %s", n.Tag)
	}
}

func TestSplitShadowAndXPath(t *testing.T) {
	steps, err := Parse("/html/body/div[2]/shadow-root/ul/li[3]")
	if err != nil {
		t.Fatal(err)
	}
	chunks := SplitShadow(steps)
	if len(chunks) != 2 {
		t.Fatalf("chunks: got %d, want 2", len(chunks))
	}
	if got := XPath(chunks[0], true); got != "/html/body/div[2]" {
		t.Errorf("first chunk: %q", got)
	}
	if got := XPath(chunks[1], false); got != "./ul/li[3]" {
		t.Errorf("second chunk: %q", got)
	}
}

// genTree builds html/body plus a random subtree, optionally with an open
// shadow root on some hosts.
func genTree(t *rapid.T) (*dom.Document, []*dom.Node) {
	doc := dom.NewDocument("")
	html := doc.Root.AppendChild(dom.NewElement("html"))
	body := html.AppendChild(dom.NewElement("body"))

	tags := []string{"div", "span", "li", "p", "section", "math-α", "x-y$z", "my_widget.v2"}
	all := []*dom.Node{html, body}
	parents := []*dom.Node{body}

	n := rapid.IntRange(1, 40).Draw(t, "nodes")
	for i := 0; i < n; i++ {
		parent := parents[rapid.IntRange(0, len(parents)-1).Draw(t, "parent")]
		var child *dom.Node
		switch rapid.IntRange(0, 9).Draw(t, "kind") {
		case 0:
			child = dom.NewText("t")
		case 1:
			if parent.Type == dom.ElementNode && parent.Shadow == nil {
				sr := parent.AttachShadow(dom.ShadowOpen)
				parents = append(parents, sr)
				continue
			}
			child = dom.NewElement("button")
		default:
			child = dom.NewElement(rapid.SampledFrom(tags).Draw(t, "tag"))
		}
		parent.AppendChild(child)
		all = append(all, child)
		if child.Type == dom.ElementNode {
			parents = append(parents, child)
		}
	}
	return doc, all
}

func TestResolveSynthesize_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		doc, nodes := genTree(t)
		synth := NewSynthesizer()
		for _, n := range nodes {
			loc := synth.Synthesize(n)
			if one := Synthesize(n); one != loc {
				t.Fatalf("cached %q differs from %q", loc, one)
			}
			got, err := Resolve(doc, loc)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", loc, err)
			}
			if got != n {
				t.Fatalf("Resolve(%q) returned a different node (%q)", loc, Synthesize(got))
			}
		}
	})
}
