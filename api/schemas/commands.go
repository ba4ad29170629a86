package schemas

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var commandJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// -- Interaction Command Schemas --

// CommandMethod names one interaction primitive. The set is closed: anything
// outside it is rejected when a response or cached payload is parsed, before
// any execution is attempted.
type CommandMethod string

const (
	MethodClick   CommandMethod = "click"   // Pointer click at the element center.
	MethodFill    CommandMethod = "fill"    // Clear a text control, then type the given text.
	MethodSelect  CommandMethod = "select"  // Select one or more option values of a <select>.
	MethodCheck   CommandMethod = "check"   // Set a checkbox or radio to checked.
	MethodUncheck CommandMethod = "uncheck" // Clear a checkbox.
	MethodHover   CommandMethod = "hover"   // Move the pointer over the element center.
	MethodPress   CommandMethod = "press"   // Send a named key to the element after focusing it.
)

// Known reports whether m belongs to the closed primitive set.
func (m CommandMethod) Known() bool {
	switch m {
	case MethodClick, MethodFill, MethodSelect, MethodCheck, MethodUncheck, MethodHover, MethodPress:
		return true
	}
	return false
}

// ValidateArgs checks the argument list against the fixed signature of m.
func (m CommandMethod) ValidateArgs(args []string) error {
	switch m {
	case MethodClick, MethodCheck, MethodUncheck, MethodHover:
		if len(args) != 0 {
			return fmt.Errorf("%s takes no arguments, got %d", m, len(args))
		}
	case MethodFill:
		if len(args) != 1 {
			return fmt.Errorf("fill takes exactly one text argument, got %d", len(args))
		}
	case MethodPress:
		if len(args) != 1 || args[0] == "" {
			return errors.New("press takes exactly one non-empty key name")
		}
	case MethodSelect:
		if len(args) == 0 {
			return errors.New("select requires at least one option value")
		}
	default:
		return fmt.Errorf("unknown interaction method %q", string(m))
	}
	return nil
}

// Target addresses the element a command operates on. It is a tagged union:
// either a numeric element id that is only meaningful relative to the snapshot
// that produced it, or a locator string resolvable against the live document.
type Target struct {
	elementID int
	locator   string
	isID      bool
}

// TargetForElement builds a snapshot-relative element id target.
func TargetForElement(id int) Target {
	return Target{elementID: id, isID: true}
}

// TargetForLocator builds a live-document locator target.
func TargetForLocator(locator string) Target {
	return Target{locator: locator}
}

// ElementID returns the snapshot-relative id and whether the target is one.
func (t Target) ElementID() (int, bool) {
	return t.elementID, t.isID
}

// Locator returns the locator string and whether the target is one.
func (t Target) Locator() (string, bool) {
	if t.isID || t.locator == "" {
		return "", false
	}
	return t.locator, true
}

// IsZero reports whether the target carries neither an id nor a locator.
func (t Target) IsZero() bool {
	return !t.isID && t.locator == ""
}

// String renders the target for logs.
func (t Target) String() string {
	if t.isID {
		return "#" + strconv.Itoa(t.elementID)
	}
	return t.locator
}

// UnmarshalJSON accepts either a JSON number (element id) or a JSON string
// (locator). Anything else violates the command contract.
func (t *Target) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return errors.New("command target is missing")
	}
	if trimmed[0] == '"' {
		var s string
		if err := commandJSON.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode target locator: %w", err)
		}
		if strings.TrimSpace(s) == "" {
			return errors.New("command target locator is empty")
		}
		*t = TargetForLocator(s)
		return nil
	}
	var n float64
	if err := commandJSON.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("command target must be an element id or a locator string: %w", err)
	}
	id := int(n)
	if float64(id) != n || id < 0 {
		return fmt.Errorf("command target element id must be a non-negative integer, got %v", n)
	}
	*t = TargetForElement(id)
	return nil
}

// MarshalJSON emits the id as a number and the locator as a string.
func (t Target) MarshalJSON() ([]byte, error) {
	if t.isID {
		return commandJSON.Marshal(t.elementID)
	}
	if t.locator == "" {
		return nil, errors.New("cannot encode an unresolved command target")
	}
	return commandJSON.Marshal(t.locator)
}

// Command is one resolved DOM interaction: a target, a primitive from the
// closed method set, and the primitive's arguments in order. A command is
// valid only relative to the document state its target was resolved against.
type Command struct {
	Target Target        `json:"target"`
	Method CommandMethod `json:"method"`
	Args   []string      `json:"args,omitempty"`
}

// UnmarshalJSON decodes a command while normalizing primitive argument values
// (numbers, booleans) to their string form.
func (c *Command) UnmarshalJSON(data []byte) error {
	var wire struct {
		Target Target        `json:"target"`
		Method CommandMethod `json:"method"`
		Args   []interface{} `json:"args"`
	}
	if err := commandJSON.Unmarshal(data, &wire); err != nil {
		return err
	}
	args, err := normalizeArgs(wire.Args)
	if err != nil {
		return err
	}
	c.Target = wire.Target
	c.Method = wire.Method
	c.Args = args
	return nil
}

// Validate enforces the closed method set, the method's argument signature,
// and the presence of a target.
func (c Command) Validate() error {
	if c.Target.IsZero() {
		return errors.New("command target is missing")
	}
	if !c.Method.Known() {
		return fmt.Errorf("unknown interaction method %q", string(c.Method))
	}
	return c.Method.ValidateArgs(c.Args)
}

func normalizeArgs(raw []interface{}) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		switch arg := v.(type) {
		case string:
			out[i] = arg
		case float64:
			out[i] = strconv.FormatFloat(arg, 'f', -1, 64)
		case bool:
			out[i] = strconv.FormatBool(arg)
		default:
			return nil, fmt.Errorf("command argument %d has unsupported type %T", i, v)
		}
	}
	return out, nil
}

// ParseCommandList decodes a command payload in any of its accepted shapes: a
// single command object, a bare array of commands, or an object wrapping the
// array under a "commands" key. The result is always a non-empty, validated
// list; a payload with no commands is a contract violation.
func ParseCommandList(data []byte) ([]Command, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty command payload")
	}

	var cmds []Command
	switch trimmed[0] {
	case '[':
		if err := commandJSON.Unmarshal(trimmed, &cmds); err != nil {
			return nil, fmt.Errorf("decode command list: %w", err)
		}
	case '{':
		var wrapper struct {
			Commands []Command `json:"commands"`
		}
		err := commandJSON.Unmarshal(trimmed, &wrapper)
		switch {
		case err == nil && len(wrapper.Commands) > 0:
			cmds = wrapper.Commands
		case err == nil && wrapper.Commands != nil:
			return nil, errors.New("command payload contains no commands")
		default:
			var single Command
			if err := commandJSON.Unmarshal(trimmed, &single); err != nil {
				return nil, fmt.Errorf("decode command: %w", err)
			}
			cmds = []Command{single}
		}
	default:
		return nil, errors.New("command payload must be a JSON object or array")
	}

	if len(cmds) == 0 {
		return nil, errors.New("command payload contains no commands")
	}
	for i, cmd := range cmds {
		if err := cmd.Validate(); err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
	}
	return cmds, nil
}

// EncodeCommands serializes a command list for storage or transport.
func EncodeCommands(cmds []Command) (string, error) {
	if len(cmds) == 0 {
		return "", errors.New("cannot encode an empty command list")
	}
	return commandJSON.MarshalToString(cmds)
}
