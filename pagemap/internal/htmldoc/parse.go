// Package htmldoc builds dom.Documents from static HTML. There is no layout
// engine behind it: render state is derived from what the markup says on its
// own (user-agent hidden tags, the hidden attribute, inline style) and is
// otherwise left unknown, which the visibility classifier treats as visible.
package htmldoc

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domsight/pagemap/internal/dom"
)

// Options configure Parse.
type Options struct {
	URL      string
	Viewport dom.Viewport // zero means dom.DefaultViewport
}

// Parse reads HTML from r and returns a document with static layout applied.
func Parse(r io.Reader, opts Options) (*dom.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	doc := dom.NewDocument(opts.URL)
	if opts.Viewport != (dom.Viewport{}) {
		doc.Viewport = opts.Viewport
	}
	convert(root, doc.Root)
	applyLayout(doc)
	if title := doc.Root.Find(dom.ByTag("title")); title != nil {
		doc.Title = title.TextContent()
	}
	return doc, nil
}

// ParseString is Parse over a string.
func ParseString(s string, opts Options) (*dom.Document, error) {
	return Parse(strings.NewReader(s), opts)
}

type pair struct {
	src *html.Node
	dst *dom.Node
}

// convert copies the x/net/html tree under src into dst. A
// <template shadowrootmode> child becomes the shadow root of its parent.
func convert(src *html.Node, dst *dom.Node) {
	stack := []pair{{src, dst}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var kids []pair
		for c := p.src.FirstChild; c != nil; c = c.NextSibling {
			if mode, ok := shadowRootMode(c); ok && p.dst.Type == dom.ElementNode && p.dst.Shadow == nil {
				sr := p.dst.AttachShadow(mode)
				kids = append(kids, pair{c, sr})
				continue
			}
			n := convertNode(c)
			if n == nil {
				continue
			}
			p.dst.AppendChild(n)
			if c.FirstChild != nil {
				kids = append(kids, pair{c, n})
			}
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

func convertNode(c *html.Node) *dom.Node {
	switch c.Type {
	case html.ElementNode:
		n := dom.NewElement(c.Data)
		for _, a := range c.Attr {
			name := a.Key
			if a.Namespace != "" {
				name = a.Namespace + ":" + a.Key
			}
			n.Attrs = append(n.Attrs, dom.Attr{Name: strings.ToLower(name), Value: a.Val})
		}
		return n
	case html.TextNode:
		return dom.NewText(c.Data)
	case html.CommentNode:
		return &dom.Node{Type: dom.CommentNode, Tag: "#comment", Data: c.Data}
	case html.DoctypeNode:
		return &dom.Node{Type: dom.DoctypeNode, Tag: "#doctype", Data: c.Data}
	}
	return nil
}

func shadowRootMode(c *html.Node) (dom.ShadowMode, bool) {
	if c.Type != html.ElementNode || c.Data != "template" {
		return "", false
	}
	for _, a := range c.Attr {
		if a.Key != "shadowrootmode" && a.Key != "shadowroot" {
			continue
		}
		switch strings.ToLower(a.Val) {
		case "open":
			return dom.ShadowOpen, true
		case "closed":
			return dom.ShadowClosed, true
		}
	}
	return "", false
}
