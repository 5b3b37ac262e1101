// Package visibility decides whether a captured element is rendered and
// whether its box intersects the viewport. Both checks are pure functions of
// the render state recorded at capture time.
package visibility

import (
	"strconv"
	"strings"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
)

// IsVisible reports whether n is rendered. A node is invisible when its
// computed style says display:none, visibility:hidden|collapse or opacity 0,
// or when its box has zero width or height.
//
// A failed style query counts as visible. A failed box query only skips the
// box test; a style that was read still applies.
func IsVisible(n *dom.Node) bool {
	if n == nil {
		return false
	}
	l := n.Layout
	if l.StyleErr != nil {
		return true
	}
	if s := l.Style; s != nil {
		if strings.EqualFold(s.Display, "none") {
			return false
		}
		switch strings.ToLower(s.Visibility) {
		case "hidden", "collapse":
			return false
		}
		if zeroOpacity(s.Opacity) {
			return false
		}
	}
	if l.BoxErr == nil && l.Box != nil && l.Box.Empty() {
		return false
	}
	return true
}

// InViewport reports whether box intersects vp: its right and bottom edges are
// past the origin and its left and top edges are before the viewport size.
func InViewport(box dom.Rect, vp dom.Viewport) bool {
	return box.Right() > 0 && box.Bottom() > 0 && box.X < vp.Width && box.Y < vp.Height
}

func zeroOpacity(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if strings.HasSuffix(v, "%") {
		v = strings.TrimSuffix(v, "%")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return false
	}
	return f <= 0
}
