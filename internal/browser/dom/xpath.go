package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// UniqueXPath builds an XPath expression that selects exactly node. The
// nearest ancestor carrying an id attribute becomes the anchor, which keeps
// locators short and stable against edits elsewhere in the document. Ids
// containing quote characters cannot be embedded safely and fall through to
// positional segments.
func UniqueXPath(node *html.Node) string {
	return buildXPath(node, true)
}

// positionalXPath is the fallback when an id anchor turns out to be
// ambiguous: a pure /html[1]/body[1]/... path built from sibling indices.
func positionalXPath(node *html.Node) string {
	return buildXPath(node, false)
}

func buildXPath(node *html.Node, useIDAnchor bool) string {
	if node == nil {
		return ""
	}

	var segments []string
	anchored := false
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if tag == "" {
			continue
		}

		if useIDAnchor {
			if id := htmlquery.SelectAttr(n, "id"); id != "" && !strings.ContainsAny(id, `'"`) {
				segments = append(segments, fmt.Sprintf(`//*[@id='%s']`, id))
				anchored = true
				break
			}
		}

		// 1-based index among preceding siblings with the same tag.
		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.EqualFold(prev.Data, tag) {
				index++
			}
		}
		segments = append(segments, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(segments) == 0 {
		return ""
	}

	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	xpath := strings.Join(segments, "/")
	if !anchored {
		xpath = "/" + xpath
	}
	return xpath
}
