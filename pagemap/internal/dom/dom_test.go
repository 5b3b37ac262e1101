package dom

import (
	"strings"
	"testing"
)

func TestTextPrefix(t *testing.T) {
	root := NewElement("div")
	p := root.AppendChild(NewElement("p"))
	p.AppendChild(NewText("  Hello \n  wide"))
	p.AppendChild(NewElement("script")).AppendChild(NewText("var x"))
	root.AppendChild(NewElement("span")).AppendChild(NewText("world, élan"))
	root.AppendChild(NewText(strings.Repeat("tail ", 50)))

	for _, max := range []int{0, 1, 5, 6, 11, 17, 23, 40, 1000} {
		want := Truncate(root.TextContent(), max)
		if got := root.TextPrefix(max); got != want {
			t.Errorf("TextPrefix(%d) = %q, want %q", max, got, want)
		}
	}
	if got := NewText("  a  b ").TextPrefix(2); got != "a " {
		t.Errorf("text node: %q", got)
	}
}
