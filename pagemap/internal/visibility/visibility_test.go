package visibility

import (
	"errors"
	"testing"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
)

func withLayout(l dom.Layout) *dom.Node {
	n := dom.NewElement("div")
	n.Layout = l
	return n
}

func TestIsVisible(t *testing.T) {
	box := &dom.Rect{X: 10, Y: 10, Width: 100, Height: 20}
	cases := []struct {
		name string
		node *dom.Node
		want bool
	}{
		{"unknown layout", withLayout(dom.Layout{}), true},
		{"plain", withLayout(dom.Layout{Style: &dom.Style{Display: "block", Visibility: "visible", Opacity: "1"}, Box: box}), true},
		{"display none", withLayout(dom.Layout{Style: &dom.Style{Display: "none"}, Box: box}), false},
		{"visibility hidden", withLayout(dom.Layout{Style: &dom.Style{Visibility: "hidden"}, Box: box}), false},
		{"visibility collapse", withLayout(dom.Layout{Style: &dom.Style{Visibility: "collapse"}}), false},
		{"opacity zero", withLayout(dom.Layout{Style: &dom.Style{Opacity: "0"}, Box: box}), false},
		{"opacity zero float", withLayout(dom.Layout{Style: &dom.Style{Opacity: "0.0"}}), false},
		{"opacity half", withLayout(dom.Layout{Style: &dom.Style{Opacity: "0.5"}}), true},
		{"zero width", withLayout(dom.Layout{Box: &dom.Rect{Width: 0, Height: 10}}), false},
		{"zero height", withLayout(dom.Layout{Box: &dom.Rect{Width: 10, Height: 0}}), false},
		{"style error fails open", withLayout(dom.Layout{StyleErr: errors.New("detached"), Style: &dom.Style{Display: "none"}}), true},
		{"box error fails open", withLayout(dom.Layout{BoxErr: errors.New("cross-origin"), Box: &dom.Rect{}}), true},
		{"box error keeps display none", withLayout(dom.Layout{BoxErr: errors.New("cross-origin"), Style: &dom.Style{Display: "none"}}), false},
		{"box error keeps opacity zero", withLayout(dom.Layout{BoxErr: errors.New("cross-origin"), Style: &dom.Style{Opacity: "0"}}), false},
		{"nil node", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsVisible(tc.node); got != tc.want {
				t.Errorf("IsVisible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInViewport(t *testing.T) {
	vp := dom.Viewport{Width: 1280, Height: 720}
	cases := []struct {
		name string
		box  dom.Rect
		want bool
	}{
		{"inside", dom.Rect{X: 10, Y: 10, Width: 50, Height: 50}, true},
		{"fully left", dom.Rect{X: -500, Y: 0, Width: 100, Height: 20}, false},
		{"touching left edge", dom.Rect{X: -100, Y: 0, Width: 100, Height: 20}, false},
		{"partially left", dom.Rect{X: -50, Y: 0, Width: 100, Height: 20}, true},
		{"below fold", dom.Rect{X: 0, Y: 720, Width: 100, Height: 20}, false},
		{"right of viewport", dom.Rect{X: 1280, Y: 0, Width: 10, Height: 10}, false},
		{"above", dom.Rect{X: 0, Y: -30, Width: 10, Height: 20}, false},
	}
	for _, tc := range cases {
		if got := InViewport(tc.box, vp); got != tc.want {
			t.Errorf("%s: InViewport = %v, want %v", tc.name, got, tc.want)
		}
	}
}
