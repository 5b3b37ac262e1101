package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/domsight/pagemap/internal/locator"
	"github.com/hazyhaar/domsight/pagemap/snapshot"
)

// Resolve finds the live element a locator names. The locator is cut at its
// shadow-root steps; the first chunk is evaluated as an absolute XPath
// against the document, each following chunk relative to the open shadow
// root of the previous match. Lookups do not wait for the element to appear.
// Every failure to find the element wraps snapshot.ErrNotFound.
func Resolve(ctx context.Context, t *Tab, loc string) (*rod.Element, error) {
	steps, err := locator.Parse(loc)
	if err != nil {
		return nil, err
	}
	page, err := t.live()
	if err != nil {
		return nil, err
	}
	p := page.Context(ctx).Sleeper(rod.NotFoundSleeper)

	chunks := locator.SplitShadow(steps)
	if len(chunks[0]) == 0 {
		return nil, fmt.Errorf("%w: %q starts with a shadow root", snapshot.ErrNotFound, loc)
	}

	has, el, err := p.HasX(locator.XPath(chunks[0], true))
	if err != nil {
		return nil, fmt.Errorf("browser: resolve %q: %w", loc, err)
	}
	if !has {
		return nil, fmt.Errorf("%w: %q", snapshot.ErrNotFound, loc)
	}

	for _, chunk := range chunks[1:] {
		root, err := openShadowRoot(el)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", snapshot.ErrNotFound, loc, err)
		}
		if len(chunk) == 0 {
			el = root
			continue
		}
		has, el, err = root.Sleeper(rod.NotFoundSleeper).HasX(locator.XPath(chunk, false))
		if err != nil {
			return nil, fmt.Errorf("browser: resolve %q: %w", loc, err)
		}
		if !has {
			return nil, fmt.Errorf("%w: %q", snapshot.ErrNotFound, loc)
		}
	}
	return el, nil
}

// openShadowRoot returns host's open shadow root. Closed and user-agent roots
// are not reachable from page scripts and are treated as absent.
func openShadowRoot(host *rod.Element) (*rod.Element, error) {
	node, err := host.Describe(1, false)
	if err != nil {
		return nil, err
	}
	for _, sr := range node.ShadowRoots {
		if sr.ShadowRootType != proto.DOMShadowRootTypeOpen {
			continue
		}
		obj, err := proto.DOMResolveNode{BackendNodeID: sr.BackendNodeID}.Call(host)
		if err != nil {
			return nil, err
		}
		return host.Page().ElementFromObject(obj.Object)
	}
	return nil, fmt.Errorf("no open shadow root")
}

// Tag returns the lowercase node name of a resolved element.
func Tag(el *rod.Element) string {
	node, err := el.Describe(0, false)
	if err != nil {
		return ""
	}
	if node.LocalName != "" {
		return strings.ToLower(node.LocalName)
	}
	return strings.ToLower(node.NodeName)
}
