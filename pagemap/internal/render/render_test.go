package render

import (
	"strings"
	"testing"

	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

func sample() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		PageID:   "shop",
		URL:      "https://shop.example/",
		Title:    "Shop",
		Viewport: &snapshot.Viewport{Width: 1280, Height: 720, ScrollY: 40},
		Elements: []snapshot.Element{
			{Tag: "a", Locator: "/html/body/nav/a", Text: "Home", Role: "link", InViewport: true},
			{Tag: "button", Locator: "/html/body/button", Text: "Go", Role: "button", InViewport: true,
				Box: &snapshot.Box{X: 10, Y: 20.5, Width: 80, Height: 24}},
			{Tag: "p", Locator: "/html/body/p[2]", Text: "Hello", InViewport: false},
			{Tag: "x-widget", Locator: "/html/body/x-widget", InViewport: true},
		},
		SemanticGroups: map[string][]int{
			snapshot.GroupNavigation:  {0},
			snapshot.GroupInteraction: {1},
			snapshot.GroupContent:     {2},
		},
	}
}

func TestPrompt(t *testing.T) {
	want := `Page: Shop
URL: https://shop.example/
Viewport: 1280x720 scroll 0,40

## navigation
[0] a (link) "Home" -> /html/body/nav/a

## interaction
[1] button "Go" -> /html/body/button

## content
[2] p "Hello" -> /html/body/p[2] [offscreen]

## other
[3] x-widget -> /html/body/x-widget
`
	if got := Prompt(sample()); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
	if Prompt(nil) != "" {
		t.Error("nil snapshot should render empty")
	}
}

func TestHTML(t *testing.T) {
	r := New()
	out, err := r.HTML(sample())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<h2>Shop</h2>",
		"<td>/html/body/button</td>",
		"<td>10,20.5 80x24</td>",
		`class="offscreen"`,
		"<td>interaction</td>",
		"viewport 1280x720 scroll 0,40",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "<tr"); got != 5 {
		t.Errorf("rows: got %d, want 5", got)
	}
}

func TestHTML_Hostile(t *testing.T) {
	snap := &snapshot.Snapshot{
		URL:   "javascript:alert(1)",
		Title: `<img src=x onerror=alert(1)>`,
		Elements: []snapshot.Element{
			{Tag: "p", Locator: "/html/body/p", Text: `</td><script>alert(1)</script>`},
		},
	}
	out, err := New().HTML(snap)
	if err != nil {
		t.Fatal(err)
	}
	for _, bad := range []string{"<script", "<img", `href="javascript`} {
		if strings.Contains(out, bad) {
			t.Errorf("output contains %q:\n%s", bad, out)
		}
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Errorf("page text should be kept escaped:\n%s", out)
	}
}

func TestMarkdown(t *testing.T) {
	md, err := New().Markdown(sample())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"## Shop", "/html/body/button", "x-widget", "|"} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}
	if strings.Contains(md, "<td>") {
		t.Errorf("markdown still has html:\n%s", md)
	}
}

func TestNilSnapshot(t *testing.T) {
	r := New()
	if _, err := r.HTML(nil); err == nil {
		t.Error("HTML(nil) should fail")
	}
	if _, err := r.Markdown(nil); err == nil {
		t.Error("Markdown(nil) should fail")
	}
}
