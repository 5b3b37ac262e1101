// Package render turns snapshots into views for people and prompts: an HTML
// debug table, its Markdown conversion, and a compact numbered listing.
package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Renderer holds the sanitizer policy and Markdown converter. It is safe for
// concurrent use.
type Renderer struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

// New returns a Renderer.
func New() *Renderer {
	p := bluemonday.UGCPolicy()
	p.AllowStyling()
	return &Renderer{
		policy: p,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

var columns = []string{"#", "tag", "locator", "text", "role", "box", "in viewport", "group"}

// HTML renders snap as a sanitized table, one row per element record.
// Page text ends up in the output, so the result always goes through the
// sanitizer.
func (r *Renderer) HTML(snap *snapshot.Snapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("render: nil snapshot")
	}
	root := elem(atom.Section, "class", "pagemap")

	heading := snap.Title
	if heading == "" {
		heading = snap.URL
	}
	if heading != "" {
		root.AppendChild(textElem(atom.H2, heading))
	}
	if snap.URL != "" {
		p := elem(atom.P)
		a := elem(atom.A, "href", snap.URL)
		a.AppendChild(text(snap.URL))
		p.AppendChild(a)
		root.AppendChild(p)
	}
	if vp := snap.Viewport; vp != nil {
		root.AppendChild(textElem(atom.P, "viewport "+viewportString(*vp)))
	}

	tbl := elem(atom.Table)
	thead := elem(atom.Thead)
	hr := elem(atom.Tr)
	for _, c := range columns {
		hr.AppendChild(textElem(atom.Th, c))
	}
	thead.AppendChild(hr)
	tbl.AppendChild(thead)

	groups := groupIndex(snap)
	tbody := elem(atom.Tbody)
	for i, e := range snap.Elements {
		tr := elem(atom.Tr)
		if !e.InViewport {
			tr = elem(atom.Tr, "class", "offscreen")
		}
		for _, cell := range []string{
			strconv.Itoa(i), e.Tag, e.Locator, e.Text, e.Role,
			boxString(e.Box), strconv.FormatBool(e.InViewport), groups[i],
		} {
			tr.AppendChild(textElem(atom.Td, cell))
		}
		tbody.AppendChild(tr)
	}
	tbl.AppendChild(tbody)
	root.AppendChild(tbl)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render: html: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Markdown renders the HTML view as Markdown.
func (r *Renderer) Markdown(snap *snapshot.Snapshot) (string, error) {
	h, err := r.HTML(snap)
	if err != nil {
		return "", err
	}
	md, err := r.md.ConvertString(h, converter.WithDomain(snap.URL))
	if err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// groupIndex maps element indexes to their semantic group name.
func groupIndex(snap *snapshot.Snapshot) map[int]string {
	out := make(map[int]string)
	for _, g := range snapshot.Groups {
		for _, i := range snap.SemanticGroups[g] {
			if _, ok := out[i]; !ok {
				out[i] = g
			}
		}
	}
	return out
}

func boxString(b *snapshot.Box) string {
	if b == nil {
		return ""
	}
	return fmt.Sprintf("%s,%s %sx%s", num(b.X), num(b.Y), num(b.Width), num(b.Height))
}

func viewportString(vp snapshot.Viewport) string {
	return fmt.Sprintf("%sx%s scroll %s,%s", num(vp.Width), num(vp.Height), num(vp.ScrollX), num(vp.ScrollY))
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func elem(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *html.Node { return &html.Node{Type: html.TextNode, Data: s} }

func textElem(a atom.Atom, s string) *html.Node {
	n := elem(a)
	n.AppendChild(text(s))
	return n
}
