package dom

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// -- Element Model --

// Element is one interactive node of an analyzed document, numbered for the
// oracle and addressable through its generated XPath locator.
type Element struct {
	ID          int
	XPath       string
	Fingerprint string
	Tag         string
	Attrs       map[string]string
	Text        string
	Options     []SelectOption
}

// SelectOption describes one <option> under a <select> element.
type SelectOption struct {
	Value    string
	Label    string
	Disabled bool
}

// interactiveXPath casts a wide net; refined filtering happens in Go where
// the logic is easier to read and test.
const interactiveXPath = `
	//a[@href] | //button | //input | //textarea | //select |
	//summary | //*[@onclick] |
	//*[normalize-space(@contenteditable)='true' or normalize-space(@contenteditable)=''] |
	//*[@role='button' or @role='link' or @role='tab' or @role='menuitem' or
	   @role='checkbox' or @role='radio' or @role='switch' or @role='combobox' or
	   @role='option' or @role='searchbox' or @role='textbox']`

// addressable reports whether a candidate node should appear in the
// snapshot. Disabled and statically hidden elements are excluded: the
// oracle must never be offered a target a user could not reach.
func addressable(node *html.Node) bool {
	tag := strings.ToLower(node.Data)
	if tag == "html" || tag == "body" {
		return false
	}

	attrs := make(map[string]string, len(node.Attr))
	for _, attr := range node.Attr {
		attrs[attr.Key] = attr.Val
	}

	if _, ok := attrs["disabled"]; ok {
		return false
	}
	if attrs["aria-disabled"] == "true" {
		return false
	}
	if _, ok := attrs["hidden"]; ok {
		return false
	}
	if attrs["aria-hidden"] == "true" {
		return false
	}
	if tag == "input" && strings.EqualFold(attrs["type"], "hidden") {
		return false
	}

	// Static style check only; computed styles need a live document.
	style := strings.ReplaceAll(strings.ToLower(attrs["style"]), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return false
	}
	return true
}

// extract pulls the descriptive data for one element node.
func extract(node *html.Node) Element {
	attrs := make(map[string]string, len(node.Attr))
	for _, attr := range node.Attr {
		attrs[attr.Key] = attr.Val
	}

	e := Element{
		Tag:   strings.ToLower(node.Data),
		Attrs: attrs,
		Text:  truncate(collapseSpace(htmlquery.InnerText(node)), 64),
	}
	if e.Tag == "select" {
		// The options carry the text; repeating the joined labels is noise.
		e.Options = extractOptions(node)
		e.Text = ""
	}
	return e
}

// extractOptions parses the options of a <select>, honoring disabled
// optgroups.
func extractOptions(selectNode *html.Node) []SelectOption {
	var options []SelectOption
	for _, node := range htmlquery.Find(selectNode, ".//option") {
		label := collapseSpace(htmlquery.InnerText(node))
		value := htmlquery.SelectAttr(node, "value")
		if value == "" {
			value = label
		}

		disabled := hasAttr(node, "disabled")
		if !disabled && node.Parent != nil && node.Parent.Type == html.ElementNode &&
			strings.EqualFold(node.Parent.Data, "optgroup") {
			disabled = hasAttr(node.Parent, "disabled")
		}

		options = append(options, SelectOption{Value: value, Label: label, Disabled: disabled})
	}
	return options
}

func hasAttr(node *html.Node, name string) bool {
	for _, attr := range node.Attr {
		if attr.Key == name {
			return true
		}
	}
	return false
}

// -- Rendering --

// descriptiveAttrs are rendered into the snapshot, in this order.
var descriptiveAttrs = []string{
	"id", "name", "type", "value", "href", "role",
	"placeholder", "aria-label", "title", "alt", "data-testid",
	"checked", "required", "readonly", "multiple", "open",
}

// booleanAttrs render as a bare flag when present without a value.
var booleanAttrs = map[string]bool{
	"checked": true, "required": true, "readonly": true, "multiple": true, "open": true,
}

// renderLine formats one element as a snapshot line, e.g.
//
//	[3] <input name="q" type="search" placeholder="Search"> Search the site
func renderLine(e Element) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] <%s", e.ID, e.Tag)
	for _, key := range descriptiveAttrs {
		val, ok := e.Attrs[key]
		if !ok {
			continue
		}
		if val == "" {
			if booleanAttrs[key] {
				sb.WriteString(" " + key)
			}
			continue
		}
		fmt.Fprintf(&sb, " %s=%q", key, truncate(collapseSpace(val), 48))
	}
	sb.WriteString(">")

	if e.Text != "" {
		sb.WriteString(" " + e.Text)
	}
	if len(e.Options) > 0 {
		sb.WriteString(" options:")
		for i, opt := range e.Options {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, " %q", opt.Value)
			if opt.Disabled {
				sb.WriteString(" (disabled)")
			}
		}
	}
	return sb.String()
}

// collapseSpace trims the string and folds internal whitespace runs into
// single spaces so multi-line markup renders as one snapshot line.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
