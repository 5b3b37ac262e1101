package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
)

// capturedStyles are requested from DOMSnapshot, in this order.
var capturedStyles = []string{"display", "visibility", "opacity"}

// Capture reads the tab's document in one pass: the full pierced DOM tree,
// then one layout snapshot for every node's computed style and box. The
// generation is read before the tree so a mutation racing the capture marks
// the result stale rather than current.
func Capture(ctx context.Context, t *Tab) (*dom.Document, error) {
	page, err := t.live()
	if err != nil {
		return nil, err
	}
	gen := t.Generation()
	p := page.Context(ctx)

	depth := -1
	tree, err := proto.DOMGetDocument{Depth: &depth, Pierce: true}.Call(p)
	if err != nil {
		return nil, fmt.Errorf("browser: get document: %w", err)
	}

	snap, snapErr := proto.DOMSnapshotCaptureSnapshot{ComputedStyles: capturedStyles}.Call(p)
	if snapErr != nil {
		t.mgr.cfg.Logger.Warn("browser: layout capture failed, treating every node as visible",
			"page_id", t.PageID, "error", snapErr)
	}
	metrics, err := proto.PageGetLayoutMetrics{}.Call(p)
	if err != nil {
		t.mgr.cfg.Logger.Debug("browser: layout metrics failed", "page_id", t.PageID, "error", err)
		metrics = nil
	}

	doc := BuildDocument(tree.Root, snap, snapErr, metrics)
	doc.Generation = gen
	if info, err := p.Info(); err == nil {
		doc.Title = info.Title
		if info.URL != "" {
			doc.URL = info.URL
		}
	}
	if doc.Viewport.Width == 0 {
		doc.Viewport.Width = float64(t.mgr.cfg.ViewportWidth)
		doc.Viewport.Height = float64(t.mgr.cfg.ViewportHeight)
	}
	return doc, nil
}

// layoutEntry is the DOMSnapshot layout of one node.
type layoutEntry struct {
	style dom.Style
	box   dom.Rect
}

// BuildDocument converts a pierced DOM.getDocument tree plus a layout
// snapshot into a dom.Document. When snapErr is set every element records
// the error in its Layout. Elements absent from the layout tree have no
// layout object and get an empty box.
func BuildDocument(root *proto.DOMNode, snap *proto.DOMSnapshotCaptureSnapshotResult, snapErr error, metrics *proto.PageGetLayoutMetricsResult) *dom.Document {
	doc := dom.NewDocument("")
	doc.Viewport = dom.Viewport{}
	if root == nil {
		return doc
	}
	doc.URL = root.DocumentURL
	doc.Root.BackendID = int(root.BackendNodeID)

	if metrics != nil && metrics.CSSLayoutViewport != nil {
		vp := metrics.CSSLayoutViewport
		doc.Viewport = dom.Viewport{
			Width:   float64(vp.ClientWidth),
			Height:  float64(vp.ClientHeight),
			ScrollX: float64(vp.PageX),
			ScrollY: float64(vp.PageY),
		}
	} else if snap != nil && len(snap.Documents) > 0 {
		d := snap.Documents[0]
		if d.ScrollOffsetX != nil {
			doc.Viewport.ScrollX = *d.ScrollOffsetX
		}
		if d.ScrollOffsetY != nil {
			doc.Viewport.ScrollY = *d.ScrollOffsetY
		}
	}

	var layouts map[proto.DOMBackendNodeID]layoutEntry
	if snapErr == nil {
		layouts = layoutIndex(snap, doc.Viewport.ScrollX, doc.Viewport.ScrollY)
	}

	type pair struct {
		src *proto.DOMNode
		dst *dom.Node
	}
	stack := []pair{{root, doc.Root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var next []pair
		if sr := authorShadowRoot(p.src); sr != nil && p.dst.Type == dom.ElementNode {
			mode := dom.ShadowOpen
			if sr.ShadowRootType == proto.DOMShadowRootTypeClosed {
				mode = dom.ShadowClosed
			}
			frag := p.dst.AttachShadow(mode)
			frag.BackendID = int(sr.BackendNodeID)
			next = append(next, pair{sr, frag})
		}
		for _, c := range p.src.Children {
			n := convertCDPNode(c)
			if n == nil {
				continue
			}
			if n.Type == dom.ElementNode {
				n.Layout = layoutFor(c.BackendNodeID, layouts, snapErr)
			}
			p.dst.AppendChild(n)
			if len(c.Children) > 0 || len(c.ShadowRoots) > 0 {
				next = append(next, pair{c, n})
			}
		}
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return doc
}

// authorShadowRoot returns the first open or closed shadow root of n.
// User-agent shadow roots belong to the browser and are not addressable.
func authorShadowRoot(n *proto.DOMNode) *proto.DOMNode {
	for _, sr := range n.ShadowRoots {
		if sr != nil && sr.ShadowRootType != proto.DOMShadowRootTypeUserAgent {
			return sr
		}
	}
	return nil
}

func convertCDPNode(c *proto.DOMNode) *dom.Node {
	if c == nil {
		return nil
	}
	var n *dom.Node
	switch dom.NodeType(c.NodeType) {
	case dom.ElementNode:
		tag := c.LocalName
		if tag == "" {
			tag = c.NodeName
		}
		n = dom.NewElement(tag)
		for i := 0; i+1 < len(c.Attributes); i += 2 {
			n.Attrs = append(n.Attrs, dom.Attr{Name: strings.ToLower(c.Attributes[i]), Value: c.Attributes[i+1]})
		}
	case dom.TextNode:
		n = dom.NewText(c.NodeValue)
	case dom.CommentNode:
		n = &dom.Node{Type: dom.CommentNode, Tag: "#comment", Data: c.NodeValue}
	case dom.DoctypeNode:
		n = &dom.Node{Type: dom.DoctypeNode, Tag: "#doctype", Data: c.NodeName}
	default:
		return nil
	}
	n.BackendID = int(c.BackendNodeID)
	return n
}

func layoutFor(id proto.DOMBackendNodeID, layouts map[proto.DOMBackendNodeID]layoutEntry, snapErr error) dom.Layout {
	if snapErr != nil {
		return dom.Layout{StyleErr: snapErr, BoxErr: snapErr}
	}
	e, ok := layouts[id]
	if !ok {
		return dom.Layout{Box: &dom.Rect{}}
	}
	style, box := e.style, e.box
	return dom.Layout{Style: &style, Box: &box}
}

// layoutIndex maps backend node ids of the main document to their computed
// style and viewport-relative box.
func layoutIndex(snap *proto.DOMSnapshotCaptureSnapshotResult, scrollX, scrollY float64) map[proto.DOMBackendNodeID]layoutEntry {
	out := make(map[proto.DOMBackendNodeID]layoutEntry)
	if snap == nil || len(snap.Documents) == 0 {
		return out
	}
	d := snap.Documents[0]
	if d.Nodes == nil || d.Layout == nil {
		return out
	}
	str := func(i proto.DOMSnapshotStringIndex) string {
		if i < 0 || int(i) >= len(snap.Strings) {
			return ""
		}
		return snap.Strings[i]
	}

	ids := d.Nodes.BackendNodeID
	for j, ni := range d.Layout.NodeIndex {
		if ni < 0 || ni >= len(ids) {
			continue
		}
		id := ids[ni]
		if _, seen := out[id]; seen {
			// Inline elements get one layout entry per line box; the first wins.
			continue
		}
		var e layoutEntry
		if j < len(d.Layout.Styles) {
			vals := d.Layout.Styles[j]
			get := func(k int) string {
				if k < len(vals) {
					return str(vals[k])
				}
				return ""
			}
			e.style = dom.Style{Display: get(0), Visibility: get(1), Opacity: get(2)}
		}
		if j < len(d.Layout.Bounds) && len(d.Layout.Bounds[j]) >= 4 {
			b := d.Layout.Bounds[j]
			e.box = dom.Rect{X: b[0] - scrollX, Y: b[1] - scrollY, Width: b[2], Height: b[3]}
		}
		out[id] = e
	}
	return out
}
