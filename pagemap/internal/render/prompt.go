package render

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Prompt renders snap as a compact numbered listing for language model
// prompts. Records are listed under their semantic group, ungrouped ones
// last; the number is the record's index in snap.Elements:
//
//	[3] button "Go" -> /html/body/button
func Prompt(snap *snapshot.Snapshot) string {
	if snap == nil {
		return ""
	}
	var b strings.Builder
	if snap.Title != "" {
		fmt.Fprintf(&b, "Page: %s\n", snap.Title)
	}
	if snap.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", snap.URL)
	}
	if vp := snap.Viewport; vp != nil {
		fmt.Fprintf(&b, "Viewport: %s\n", viewportString(*vp))
	}

	listed := make(map[int]bool, len(snap.Elements))
	for _, g := range snapshot.Groups {
		idx := snap.SemanticGroups[g]
		if len(idx) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", g)
		for _, i := range idx {
			if i < 0 || i >= len(snap.Elements) || listed[i] {
				continue
			}
			listed[i] = true
			line(&b, i, snap.Elements[i])
		}
	}

	header := false
	for i, e := range snap.Elements {
		if listed[i] {
			continue
		}
		if !header {
			b.WriteString("\n## other\n")
			header = true
		}
		line(&b, i, e)
	}
	return b.String()
}

func line(b *strings.Builder, i int, e snapshot.Element) {
	fmt.Fprintf(b, "[%d] %s", i, e.Tag)
	if e.Role != "" && e.Role != e.Tag {
		fmt.Fprintf(b, " (%s)", e.Role)
	}
	if e.Text != "" {
		fmt.Fprintf(b, " %q", e.Text)
	}
	fmt.Fprintf(b, " -> %s", e.Locator)
	if !e.InViewport {
		b.WriteString(" [offscreen]")
	}
	b.WriteByte('\n')
}
