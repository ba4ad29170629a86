package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// Analysis is the outcome of scanning one document for interactive
// elements. Elements are numbered from 1 in the order they were found;
// the numbering is only coherent for the document that produced it.
type Analysis struct {
	Elements []Element
	// Omitted counts addressable elements dropped by the limit.
	Omitted int
	// Unresolvable counts elements whose generated locator failed to
	// select them back and were therefore excluded.
	Unresolvable int
}

// Parse parses an HTML document for analysis.
func Parse(src string) (*html.Node, error) {
	doc, err := htmlquery.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Analyze scans doc and returns up to limit interactive elements, each with
// a verified locator. A limit of zero or less means no limit. Every locator
// is checked to select its own node back before the element is admitted;
// duplicate ids or other ambiguities fall back to a positional path, and
// elements that still cannot be selected are dropped and counted.
func Analyze(doc *html.Node, limit int) Analysis {
	var analysis Analysis

	seen := make(map[*html.Node]bool)
	for _, node := range htmlquery.Find(doc, interactiveXPath) {
		if seen[node] {
			continue
		}
		seen[node] = true
		if !addressable(node) {
			continue
		}

		if limit > 0 && len(analysis.Elements) >= limit {
			analysis.Omitted++
			continue
		}

		xpath, ok := verifiedXPath(doc, node)
		if !ok {
			analysis.Unresolvable++
			continue
		}

		e := extract(node)
		e.ID = len(analysis.Elements) + 1
		e.XPath = xpath
		e.Fingerprint = fingerprintOf(describe(e), xpath)
		analysis.Elements = append(analysis.Elements, e)
	}
	return analysis
}

// verifiedXPath generates a locator for node and proves it round-trips to
// the same node. The id-anchored form is preferred; a positional path
// covers documents with duplicate ids.
func verifiedXPath(doc *html.Node, node *html.Node) (string, bool) {
	if xpath := UniqueXPath(node); xpath != "" && htmlquery.FindOne(doc, xpath) == node {
		return xpath, true
	}
	if xpath := positionalXPath(node); xpath != "" && htmlquery.FindOne(doc, xpath) == node {
		return xpath, true
	}
	return "", false
}

// Snapshot renders the analysis into the form the oracle consumes: one
// numbered line per element plus the selector map keyed by those numbers.
func (a Analysis) Snapshot() *schemas.Snapshot {
	selectors := make(schemas.SelectorMap, len(a.Elements))
	var sb strings.Builder
	for _, e := range a.Elements {
		sb.WriteString(renderLine(e))
		sb.WriteByte('\n')
		selectors[e.ID] = e.XPath
	}
	if len(a.Elements) == 0 {
		sb.WriteString("(no interactive elements found)\n")
	}
	if a.Omitted > 0 {
		fmt.Fprintf(&sb, "(%d more interactive elements not shown)\n", a.Omitted)
	}
	return &schemas.Snapshot{Text: sb.String(), Selectors: selectors}
}

// BuildSnapshot is the one-call form of Parse, Analyze and Snapshot.
func BuildSnapshot(src string, limit int) (*schemas.Snapshot, error) {
	doc, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Analyze(doc, limit).Snapshot(), nil
}
