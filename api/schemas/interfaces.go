package schemas

import (
	"context"
	"encoding/json"
)

// -- Resolution Collaborator Interfaces --

// SnapshotProvider produces on-demand views of the live document's
// interactive surface. Each call re-enumerates the current document; the
// returned snapshot and its selector map describe only that instant and must
// be discarded when the resolution call that requested them returns.
type SnapshotProvider interface {
	// Snapshot enumerates the currently interactive elements and returns the
	// oracle-readable text plus the per-call selector map.
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// ReasoningOracle maps a free-text instruction plus a document enumeration to
// a concrete resolution. The engine treats it as a black box: no retries, no
// re-ranking, and no validation of its reasoning beyond response shape.
type ReasoningOracle interface {
	// ResolveLocator names the single element the instruction refers to.
	// A not-found outcome is normal and reported through the bool, not an
	// error.
	ResolveLocator(ctx context.Context, instruction, domText string) (elementID int, found bool, err error)
	// ResolveActions plans the ordered interaction commands that carry out
	// the instruction. The list is already normalized and validated against
	// the closed command set.
	ResolveActions(ctx context.Context, instruction, domText string) ([]Command, error)
	// Extract pulls instruction-described data out of the document as raw
	// JSON. The engine passes the payload through without interpreting it.
	Extract(ctx context.Context, instruction, domText string) (json.RawMessage, error)
}

// DocumentDriver is the live-document boundary: everything the engine needs
// from the page it is resolving against. Implementations own their own
// deadlines; the engine adds none.
type DocumentDriver interface {
	// CountMatches reports how many attached elements the locator currently
	// resolves to.
	CountMatches(ctx context.Context, locator string) (int, error)
	// Execute applies one command to the live document. The command's target
	// must be a locator; snapshot-relative ids are meaningless here.
	Execute(ctx context.Context, cmd Command) error
	// WaitForSettle blocks until no further structural mutation of the
	// document is expected imminently, or until the driver's own deadline.
	WaitForSettle(ctx context.Context) error
}

// -- LLM Client Schemas & Interface --

// GenerationOptions controls the text generation of the model backing the
// oracle.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, asks the model for a pure JSON body.
	MaxTokens       int     `json:"max_tokens"`        // Upper bound on the completion length. 0 means provider default.
}

// GenerationRequest is one complete prompt for the model: the system framing,
// the user payload, and the generation parameters.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's role and output contract.
	UserPrompt   string            `json:"user_prompt"`   // The instruction and document enumeration.
	Options      GenerationOptions `json:"options"`       // Generation parameters.
}

// LLMClient abstracts the provider actually serving completions (Gemini SDK,
// an OpenAI-compatible endpoint, a local runtime). Transport-level concerns
// such as rate limiting and response decompression live behind this boundary.
type LLMClient interface {
	// Generate produces a text completion for the request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close releases any resources the client holds.
	Close() error
}
