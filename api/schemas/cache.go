package schemas

// -- Cache Schemas --

// CacheKey is the deterministic digest of an instruction's text. It is a
// fixed-length lowercase hex string, stable across process restarts, and is
// the only lookup key the resolution cache understands.
type CacheKey string

// Namespace identifies one of the two independent cache tables. The set is
// closed; backends must reject any other value before touching storage.
type Namespace string

const (
	// NamespaceObservations stores resolved locators keyed by instruction.
	NamespaceObservations Namespace = "observations"
	// NamespaceActions stores resolved command sequences keyed by instruction.
	NamespaceActions Namespace = "actions"
)

// Namespaces returns the closed set of cache namespaces in load order.
func Namespaces() []Namespace {
	return []Namespace{NamespaceObservations, NamespaceActions}
}

// Valid reports whether n names a known cache namespace.
func (n Namespace) Valid() bool {
	switch n {
	case NamespaceObservations, NamespaceActions:
		return true
	}
	return false
}

// CacheEntry is one persisted resolution. Result is opaque to the cache: a
// locator string for observations, a serialized command list for actions.
// SessionID tags the run that produced the entry and is never part of the key.
type CacheEntry struct {
	Result    string `json:"result"`
	SessionID string `json:"session_id"`
}
