package htmldoc

import (
	"strconv"
	"strings"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
)

// unrendered tags have display:none in the user-agent stylesheet.
var unrendered = map[string]bool{
	"head": true, "script": true, "style": true, "template": true, "title": true,
	"meta": true, "link": true, "noscript": true, "base": true,
}

type inherited struct {
	hidden     bool   // an ancestor has display:none
	visibility string // inherited visibility
}

type frame struct {
	n   *dom.Node
	inh inherited
}

// applyLayout derives static render state for every element, shadow trees
// included.
func applyLayout(doc *dom.Document) {
	stack := []frame{{doc.Root, inherited{visibility: "visible"}}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		inh := f.inh
		if f.n.Type == dom.ElementNode {
			inh = layoutElement(f.n, inh)
		}
		if sr := f.n.Shadow; sr != nil {
			stack = append(stack, frame{sr, inh})
		}
		for i := len(f.n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.n.Children[i], inh})
		}
	}
}

func layoutElement(n *dom.Node, inh inherited) inherited {
	decl := inlineStyle(n)

	display := decl["display"]
	if display == "" && (unrendered[n.Tag] || n.HasAttr("hidden")) {
		display = "none"
	}
	visibility := inh.visibility
	if v := decl["visibility"]; v != "" && v != "inherit" {
		visibility = v
	}
	opacity := decl["opacity"]
	if opacity == "" {
		opacity = "1"
	}

	n.Layout.Style = &dom.Style{Display: display, Visibility: visibility, Opacity: opacity}

	out := inherited{hidden: inh.hidden || display == "none", visibility: visibility}
	if out.hidden {
		n.Layout.Box = &dom.Rect{}
		return out
	}
	n.Layout.Box = staticBox(decl)
	return out
}

// staticBox returns a box only when inline style pins it down: an absolutely
// or fixed positioned element with px left, top, width and height, or an
// explicit zero width or height.
func staticBox(decl map[string]string) *dom.Rect {
	w, wok := px(decl["width"])
	h, hok := px(decl["height"])
	switch decl["position"] {
	case "absolute", "fixed":
		x, xok := px(decl["left"])
		y, yok := px(decl["top"])
		if xok && yok && wok && hok {
			return &dom.Rect{X: x, Y: y, Width: w, Height: h}
		}
	}
	if (wok && w == 0) || (hok && h == 0) {
		return &dom.Rect{Width: w, Height: h}
	}
	return nil
}

// inlineStyle parses the style attribute into lowercase property/value pairs.
func inlineStyle(n *dom.Node) map[string]string {
	raw, ok := n.Attr("style")
	if !ok || raw == "" {
		return nil
	}
	decl := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		prop, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.TrimSpace(val)
		val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
		if prop != "" && val != "" {
			decl[prop] = strings.ToLower(val)
		}
	}
	return decl
}

// px parses "12px", "-500px" or "0".
func px(v string) (float64, bool) {
	if v == "" {
		return 0, false
	}
	v = strings.TrimSuffix(v, "px")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
