package schemas

// -- Snapshot Schemas --

// SelectorMap maps the numeric element ids of one snapshot to structural
// locators. A map is valid only against the document state at the moment its
// snapshot was taken; it must never be persisted or reused across snapshots.
type SelectorMap map[int]string

// Snapshot is one on-demand view of the document's interactive surface: a
// numbered textual enumeration suitable for a reasoning model, plus the
// selector map that resolves those numbers back to live locators.
type Snapshot struct {
	// Text enumerates the interactive elements, one per line, each tagged
	// with the numeric id the selector map keys on.
	Text string
	// Selectors resolves a numeric element id to a structural locator.
	Selectors SelectorMap
}
