package browser

import (
	"errors"
	"testing"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
	"github.com/hazyhaar/domsight/pagemap/internal/locator"
	"github.com/hazyhaar/domsight/pagemap/internal/visibility"
)

func elem(id int, name string, attrs []string, children ...*proto.DOMNode) *proto.DOMNode {
	return &proto.DOMNode{
		BackendNodeID: proto.DOMBackendNodeID(id),
		NodeType:      1,
		NodeName:      name,
		LocalName:     name,
		Attributes:    attrs,
		Children:      children,
	}
}

func text(id int, s string) *proto.DOMNode {
	return &proto.DOMNode{BackendNodeID: proto.DOMBackendNodeID(id), NodeType: 3, NodeName: "#text", NodeValue: s}
}

// fixture is:
//
//	<html><head></head><body>
//	  <button>Go</button>              (5)
//	  <div id="widget">                (7)
//	    #shadow-root (open)            (8)
//	      <a>In</a>                    (9)
//	  </div>
//	  <p style="display:none">x</p>    (11)
//	  <span>no layout</span>           (13)
//	</body></html>
func fixture() *proto.DOMNode {
	host := elem(7, "div", []string{"id", "widget"})
	host.ShadowRoots = []*proto.DOMNode{
		{
			BackendNodeID:  8,
			NodeType:       11,
			NodeName:       "#document-fragment",
			ShadowRootType: proto.DOMShadowRootTypeOpen,
			Children:       []*proto.DOMNode{elem(9, "a", nil, text(10, "In"))},
		},
	}
	input := elem(20, "input", nil)
	input.ShadowRoots = []*proto.DOMNode{{BackendNodeID: 21, NodeType: 11, ShadowRootType: proto.DOMShadowRootTypeUserAgent}}

	return &proto.DOMNode{
		BackendNodeID: 1,
		NodeType:      9,
		NodeName:      "#document",
		DocumentURL:   "https://example.test/",
		Children: []*proto.DOMNode{
			{BackendNodeID: 2, NodeType: 10, NodeName: "html"},
			elem(3, "HTML", nil,
				elem(4, "head", nil),
				elem(12, "body", nil,
					elem(5, "button", nil, text(6, "Go")),
					host,
					elem(11, "p", []string{"Style", "display:none"}, text(14, "x")),
					elem(13, "span", nil, text(15, "no layout")),
					input,
				),
			),
		},
	}
}

func layoutSnapshot() *proto.DOMSnapshotCaptureSnapshotResult {
	// strings: 0 "block", 1 "visible", 2 "1", 3 "none", 4 "inline"
	strs := []string{"block", "visible", "1", "none", "inline"}
	ids := []proto.DOMBackendNodeID{1, 3, 12, 5, 7, 9, 11, 20}
	return &proto.DOMSnapshotCaptureSnapshotResult{
		Strings: strs,
		Documents: []*proto.DOMSnapshotDocumentSnapshot{{
			Nodes: &proto.DOMSnapshotNodeTreeSnapshot{BackendNodeID: ids},
			Layout: &proto.DOMSnapshotLayoutTreeSnapshot{
				// html, body, button, div, a, a (second line box), input
				NodeIndex: []int{1, 2, 3, 4, 5, 5, 7},
				Styles: []proto.DOMSnapshotArrayOfStrings{
					{0, 1, 2}, {0, 1, 2}, {4, 1, 2}, {0, 1, 2}, {4, 1, 2}, {4, 1, 2}, {4, 1, 2},
				},
				Bounds: []proto.DOMSnapshotRectangle{
					{0, 0, 1280, 2000},
					{0, 0, 1280, 2000},
					{10, 110, 50, 20},
					{-600, 1100, 100, 40},
					{0, 500, 30, 10},
					{0, 520, 99, 10},
					{10, 150, 200, 20},
				},
			},
		}},
	}
}

func metrics() *proto.PageGetLayoutMetricsResult {
	return &proto.PageGetLayoutMetricsResult{
		CSSLayoutViewport: &proto.PageLayoutViewport{PageX: 0, PageY: 100, ClientWidth: 1280, ClientHeight: 720},
	}
}

func TestBuildDocument_Tree(t *testing.T) {
	doc := BuildDocument(fixture(), layoutSnapshot(), nil, metrics())

	if doc.URL != "https://example.test/" {
		t.Errorf("url: %q", doc.URL)
	}
	if doc.Viewport != (dom.Viewport{Width: 1280, Height: 720, ScrollY: 100}) {
		t.Errorf("viewport: %+v", doc.Viewport)
	}
	html := doc.DocumentElement()
	if html == nil || html.Tag != "html" || html.BackendID != 3 {
		t.Fatalf("document element: %+v", html)
	}
	if doc.Root.Children[0].Type != dom.DoctypeNode {
		t.Error("doctype lost")
	}

	p := doc.Root.Find(dom.ByTag("p"))
	if v, ok := p.Attr("style"); !ok || v != "display:none" {
		t.Errorf("attribute names should be lowercased: %+v", p.Attrs)
	}

	host := doc.Root.Find(dom.ByID("widget"))
	sr := host.OpenShadow()
	if sr == nil || sr.BackendID != 8 {
		t.Fatalf("open shadow root missing: %+v", host.Shadow)
	}
	a := sr.Children[0]
	if got := locator.Synthesize(a); got != "/html/body/div/shadow-root/a" {
		t.Errorf("shadow locator: %q", got)
	}
	if n, err := locator.Resolve(doc, "/html/body/div/shadow-root/a"); err != nil || n != a {
		t.Errorf("resolve: %v", err)
	}

	input := doc.Root.Find(dom.ByTag("input"))
	if input.Shadow != nil {
		t.Error("user-agent shadow root should be dropped")
	}
}

func TestBuildDocument_Layout(t *testing.T) {
	doc := BuildDocument(fixture(), layoutSnapshot(), nil, metrics())
	vp := doc.Viewport

	btn := doc.Root.Find(dom.ByTag("button"))
	if btn.Layout.Box == nil || *btn.Layout.Box != (dom.Rect{X: 10, Y: 10, Width: 50, Height: 20}) {
		t.Errorf("button box should be scroll-adjusted: %+v", btn.Layout.Box)
	}
	if !visibility.IsVisible(btn) || !visibility.InViewport(*btn.Layout.Box, vp) {
		t.Error("button should be visible and in viewport")
	}

	host := doc.Root.Find(dom.ByID("widget"))
	if !visibility.IsVisible(host) || visibility.InViewport(*host.Layout.Box, vp) {
		t.Errorf("host should be visible and out of viewport: %+v", host.Layout.Box)
	}

	a := host.Shadow.Children[0]
	if a.Layout.Box.Width != 30 {
		t.Errorf("first line box should win: %+v", a.Layout.Box)
	}

	// p is in the node tree but has no layout object.
	p := doc.Root.Find(dom.ByTag("p"))
	if visibility.IsVisible(p) {
		t.Error("element without a layout object should be invisible")
	}
	span := doc.Root.Find(dom.ByTag("span"))
	if visibility.IsVisible(span) {
		t.Error("span without a layout object should be invisible")
	}
}

func TestBuildDocument_LayoutFailureFailsOpen(t *testing.T) {
	boom := errors.New("DOMSnapshot.captureSnapshot: target closed")
	doc := BuildDocument(fixture(), nil, boom, nil)

	p := doc.Root.Find(dom.ByTag("p"))
	if !errors.Is(p.Layout.StyleErr, boom) || !visibility.IsVisible(p) {
		t.Errorf("failed capture should fail open: %+v", p.Layout)
	}
	if doc.Viewport.Width != 0 {
		t.Errorf("viewport without metrics: %+v", doc.Viewport)
	}
}

func TestBuildDocument_ScrollFromSnapshot(t *testing.T) {
	snap := layoutSnapshot()
	sy := 50.0
	snap.Documents[0].ScrollOffsetY = &sy
	doc := BuildDocument(fixture(), snap, nil, nil)

	btn := doc.Root.Find(dom.ByTag("button"))
	if btn.Layout.Box.Y != 60 {
		t.Errorf("y: got %v, want 60", btn.Layout.Box.Y)
	}
}

func TestBuildDocument_NilRoot(t *testing.T) {
	doc := BuildDocument(nil, nil, nil, nil)
	if doc.Root == nil || len(doc.Root.Children) != 0 {
		t.Errorf("doc: %+v", doc.Root)
	}
}

func TestLayoutIndex_BadIndexes(t *testing.T) {
	snap := &proto.DOMSnapshotCaptureSnapshotResult{
		Strings: []string{"block"},
		Documents: []*proto.DOMSnapshotDocumentSnapshot{{
			Nodes: &proto.DOMSnapshotNodeTreeSnapshot{BackendNodeID: []proto.DOMBackendNodeID{5}},
			Layout: &proto.DOMSnapshotLayoutTreeSnapshot{
				NodeIndex: []int{0, 9, -1},
				Styles:    []proto.DOMSnapshotArrayOfStrings{{0, 42}},
				Bounds:    []proto.DOMSnapshotRectangle{{1, 2}},
			},
		}},
	}
	idx := layoutIndex(snap, 0, 0)
	e, ok := idx[5]
	if !ok || len(idx) != 1 {
		t.Fatalf("index: %+v", idx)
	}
	if e.style.Display != "block" || e.style.Visibility != "" || e.box != (dom.Rect{}) {
		t.Errorf("entry: %+v", e)
	}
}

func TestShouldBlock(t *testing.T) {
	set := blockSet([]string{"Images", " fonts ", "script"})
	tests := []struct {
		rt   proto.NetworkResourceType
		want bool
	}{
		{proto.NetworkResourceTypeImage, true},
		{proto.NetworkResourceTypeFont, true},
		{proto.NetworkResourceTypeStylesheet, false},
		{proto.NetworkResourceTypeScript, true},
		{proto.NetworkResourceTypeDocument, false},
	}
	for _, tt := range tests {
		if got := shouldBlock(set, tt.rt); got != tt.want {
			t.Errorf("shouldBlock(%s): got %v, want %v", tt.rt, got, tt.want)
		}
	}
}

func TestParseStealth(t *testing.T) {
	tests := map[string]StealthLevel{
		"":         LevelAuto,
		"auto":     LevelAuto,
		"0":        LevelHTTP,
		"HTTP":     LevelHTTP,
		"1":        LevelHeadless,
		"headless": LevelHeadless,
		"2":        LevelHeadful,
		"headful":  LevelHeadful,
	}
	for in, want := range tests {
		got, err := ParseStealth(in)
		if err != nil || got != want {
			t.Errorf("ParseStealth(%q): got %v, %v", in, got, err)
		}
		if again, _ := ParseStealth(got.String()); again != got {
			t.Errorf("String round trip for %v", got)
		}
	}
	if _, err := ParseStealth("3"); err == nil {
		t.Error("expected error for 3")
	}
}

func TestTracker(t *testing.T) {
	var nilTracker *Tracker
	if nilTracker.Generation() != 0 {
		t.Error("nil tracker should report 0")
	}
	nilTracker.Stop()

	tr := &Tracker{}
	tr.Bump()
	tr.Bump()
	if tr.Generation() != 2 {
		t.Errorf("got %d", tr.Generation())
	}
}

func TestHeapMetric(t *testing.T) {
	ms := []*proto.PerformanceMetric{{Name: "Nodes", Value: 10}, nil, {Name: "JSHeapUsedSize", Value: 4096}}
	if got := heapMetric(ms); got != 4096 {
		t.Errorf("got %v", got)
	}
	if got := heapMetric(nil); got != 0 {
		t.Errorf("got %v", got)
	}
}

func TestManagerDefaults(t *testing.T) {
	m := NewManager(Config{})
	cfg := m.Config()
	if cfg.ViewportWidth != 1280 || cfg.ViewportHeight != 720 || cfg.XvfbDisplay != ":99" || cfg.Logger == nil {
		t.Errorf("defaults: %+v", cfg)
	}
	if m.Browser() != nil {
		t.Error("browser should not start before Ensure")
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Ensure(t.Context()); err == nil {
		t.Error("Ensure after Close should fail")
	}
}
