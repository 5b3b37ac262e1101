package locator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Step is one parsed locator step.
type Step struct {
	Name  string // lowercase tag, "shadow-root", "text()" or "comment()"
	Index int    // 1-based rank; 0 when absent
}

// String renders the step back to locator syntax.
func (s Step) String() string {
	if s.Index > 0 {
		return s.Name + "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Name
}

// Parse splits a locator into steps. Errors wrap both ErrMalformedLocator and
// ErrNotFound.
func Parse(loc string) ([]Step, error) {
	loc = strings.TrimSpace(loc)
	if !strings.HasPrefix(loc, "/") || strings.HasPrefix(loc, "//") {
		return nil, malformed(loc, "must be an absolute path")
	}
	raw := strings.Split(loc[1:], "/")
	steps := make([]Step, 0, len(raw))
	for _, part := range raw {
		s, err := parseStep(part)
		if err != nil {
			return nil, malformed(loc, err.Error())
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func parseStep(part string) (Step, error) {
	if part == "" {
		return Step{}, fmt.Errorf("empty step")
	}
	name, idx := part, 0
	if open := strings.IndexByte(part, '['); open >= 0 {
		if !strings.HasSuffix(part, "]") {
			return Step{}, fmt.Errorf("unterminated predicate in %q", part)
		}
		n, err := strconv.Atoi(part[open+1 : len(part)-1])
		if err != nil || n < 1 {
			return Step{}, fmt.Errorf("predicate in %q is not a positive integer", part)
		}
		name, idx = part[:open], n
	}
	name = strings.ToLower(name)
	switch name {
	case "text()", "comment()":
	case ShadowStep:
		if idx != 0 {
			return Step{}, fmt.Errorf("%s takes no predicate", ShadowStep)
		}
	default:
		if !snapshot.ValidTagName(name) {
			return Step{}, fmt.Errorf("invalid name %q", name)
		}
	}
	return Step{Name: name, Index: idx}, nil
}

func malformed(loc, reason string) error {
	return fmt.Errorf("%w: %w: %q: %s", snapshot.ErrNotFound, snapshot.ErrMalformedLocator, loc, reason)
}

// SplitShadow cuts a parsed locator at each shadow-root step. The first chunk
// is absolute from the document; each following chunk is relative to the
// shadow root of the element the previous chunk selected.
func SplitShadow(steps []Step) [][]Step {
	chunks := [][]Step{nil}
	for _, s := range steps {
		if s.Name == ShadowStep {
			chunks = append(chunks, nil)
			continue
		}
		chunks[len(chunks)-1] = append(chunks[len(chunks)-1], s)
	}
	return chunks
}

// XPath renders a chunk as an XPath expression, absolute or relative.
func XPath(chunk []Step, absolute bool) string {
	var b strings.Builder
	if !absolute {
		b.WriteByte('.')
	}
	for _, s := range chunk {
		b.WriteByte('/')
		b.WriteString(s.String())
	}
	return b.String()
}
