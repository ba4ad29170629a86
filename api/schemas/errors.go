package schemas

import "errors"

// -- Resolution Error Taxonomy --

// Sentinel errors shared across the resolution pipeline. Callers classify
// failures with errors.Is; every one of these is surfaced synchronously, once,
// with no retry anywhere in the engine.
var (
	// ErrOracleContract marks an oracle response that is empty or structurally
	// malformed where a value was required.
	ErrOracleContract = errors.New("oracle response violates contract")

	// ErrUnknownElement marks an oracle-returned element id with no entry in
	// the snapshot's selector map.
	ErrUnknownElement = errors.New("element id not present in snapshot selector map")

	// ErrTargetUnattached marks a locator, cached or freshly resolved, that
	// matches zero attached elements in the live document.
	ErrTargetUnattached = errors.New("target matches no attached element")

	// ErrInvalidCommand marks a command outside the closed primitive set or
	// with a malformed argument list.
	ErrInvalidCommand = errors.New("invalid interaction command")
)

// Settle failures are never fatal; they are logged with a reason code derived
// from which of these the wait error wraps.
var (
	// ErrSettleTimeout marks a quiescence wait that exhausted its deadline
	// while the document was still mutating.
	ErrSettleTimeout = errors.New("document did not settle before deadline")

	// ErrSettleInstrumentation marks a quiescence wait that could not install
	// or read its in-page instrumentation.
	ErrSettleInstrumentation = errors.New("settle instrumentation unavailable")

	// ErrSettleInterrupted marks a quiescence wait cut short by navigation or
	// the session going away.
	ErrSettleInterrupted = errors.New("settle wait interrupted")
)

// SettleReason maps a settle error to the reason code that appears in the
// structured warning log. Unrecognized errors report as "unknown".
func SettleReason(err error) string {
	switch {
	case errors.Is(err, ErrSettleTimeout):
		return "timeout"
	case errors.Is(err, ErrSettleInstrumentation):
		return "instrumentation_unavailable"
	case errors.Is(err, ErrSettleInterrupted):
		return "navigation_interrupted"
	default:
		return "unknown"
	}
}
