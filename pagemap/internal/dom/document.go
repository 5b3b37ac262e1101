package dom

// Rect is a bounding box in viewport-relative CSS pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Right returns the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Empty reports a zero-width or zero-height box.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Style holds the computed properties the visibility classifier needs.
type Style struct {
	Display    string
	Visibility string
	Opacity    string
}

// Layout is the render state recorded for one element at capture time.
// A nil Style or Box means "unknown"; a non-nil error means the query
// failed for this node.
type Layout struct {
	Style    *Style
	StyleErr error
	Box      *Rect
	BoxErr   error
}

// Viewport is the visible area of a document.
type Viewport struct {
	Width, Height    float64
	ScrollX, ScrollY float64
}

// DefaultViewport is used by static sources that have no real window.
var DefaultViewport = Viewport{Width: 1280, Height: 720}

// Document is one captured document.
type Document struct {
	Root     *Node // DocumentNode
	URL      string
	Title    string // host-reported title; empty falls back to <title>
	Viewport Viewport
	// Generation is the structural mutation counter of the source at capture.
	Generation uint64
}

// NewDocument returns an empty document with the default viewport.
func NewDocument(url string) *Document {
	return &Document{
		Root:     &Node{Type: DocumentNode, Tag: "#document"},
		URL:      url,
		Viewport: DefaultViewport,
	}
}

// DocumentElement returns the root element (normally <html>).
func (d *Document) DocumentElement() *Node {
	if d == nil || d.Root == nil {
		return nil
	}
	for _, c := range d.Root.Children {
		if c.Type == ElementNode {
			return c
		}
	}
	return nil
}

// Head returns the <head> element, if any.
func (d *Document) Head() *Node {
	html := d.DocumentElement()
	if html == nil {
		return nil
	}
	for _, c := range html.Children {
		if c.Type == ElementNode && c.Tag == "head" {
			return c
		}
	}
	return nil
}
