package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// Scripts report through a small status protocol instead of throwing:
// "ok", "not_found" (no attached element), "not_visible", or "error" with a
// message. Throwing inside Evaluate loses the distinction between a missing
// element and a broken expression.
const (
	evalOK         = "ok"
	evalNotFound   = "not_found"
	evalNotVisible = "not_visible"
	evalError      = "error"
)

// jsResolve locates the first node a selector addresses. Shared preamble for
// every command script.
const jsResolve = `function resolve(sel, isXPath) {
		if (isXPath) {
			return document.evaluate(sel, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		}
		return document.querySelector(sel);
	}`

const countMatchesJS = `(function(sel, isXPath) {
	try {
		if (isXPath) {
			return document.evaluate(sel, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null).snapshotLength;
		}
		return document.querySelectorAll(sel).length;
	} catch (e) {
		return -1;
	}
})(%s, %t)`

// elementPointJS scrolls the element into view and returns its center in
// viewport coordinates. The fresh getBoundingClientRect after the scroll
// matters: the pre-scroll rect is stale.
const elementPointJS = `(function(sel, isXPath) {
	` + jsResolve + `
	const node = resolve(sel, isXPath);
	if (!node) return {status: "not_found"};
	node.scrollIntoView({block: "center", inline: "center", behavior: "instant"});
	const rect = node.getBoundingClientRect();
	const style = window.getComputedStyle(node);
	if (rect.width <= 0 || rect.height <= 0 || style.display === "none" || style.visibility === "hidden") {
		return {status: "not_visible"};
	}
	return {status: "ok", x: rect.left + rect.width / 2, y: rect.top + rect.height / 2};
})(%s, %t)`

// fillJS sets the value through the prototype setter so framework-controlled
// inputs observe the change, then fires the events a user edit would.
const fillJS = `(function(sel, isXPath, value) {
	` + jsResolve + `
	const node = resolve(sel, isXPath);
	if (!node) return {status: "not_found"};
	node.scrollIntoView({block: "center", inline: "center", behavior: "instant"});
	node.focus();
	const tag = node.tagName ? node.tagName.toLowerCase() : "";
	if (tag === "input" || tag === "textarea") {
		const proto = tag === "input" ? window.HTMLInputElement.prototype : window.HTMLTextAreaElement.prototype;
		Object.getOwnPropertyDescriptor(proto, "value").set.call(node, value);
	} else if (node.isContentEditable) {
		node.textContent = value;
	} else {
		return {status: "error", message: "element does not accept text input"};
	}
	node.dispatchEvent(new Event("input", {bubbles: true}));
	node.dispatchEvent(new Event("change", {bubbles: true}));
	return {status: "ok"};
})(%s, %t, %s)`

const focusJS = `(function(sel, isXPath) {
	` + jsResolve + `
	const node = resolve(sel, isXPath);
	if (!node) return {status: "not_found"};
	node.scrollIntoView({block: "center", inline: "center", behavior: "instant"});
	node.focus();
	return {status: "ok"};
})(%s, %t)`

// setCheckedJS only clicks on a state mismatch, so repeated commands are
// idempotent.
const setCheckedJS = `(function(sel, isXPath, want) {
	` + jsResolve + `
	const node = resolve(sel, isXPath);
	if (!node) return {status: "not_found"};
	node.scrollIntoView({block: "center", inline: "center", behavior: "instant"});
	const tag = node.tagName ? node.tagName.toLowerCase() : "";
	if (tag === "input" && (node.type === "checkbox" || node.type === "radio")) {
		if (node.checked !== want) node.click();
		return {status: "ok"};
	}
	const role = node.getAttribute("role");
	if (role === "checkbox" || role === "radio" || role === "switch") {
		if ((node.getAttribute("aria-checked") === "true") !== want) node.click();
		return {status: "ok"};
	}
	return {status: "error", message: "element is not a checkbox, radio or switch"};
})(%s, %t, %t)`

// selectOptionsJS matches requested values against option value, label, and
// trimmed text. Unmatched values fail the whole command rather than silently
// selecting a subset.
const selectOptionsJS = `(function(sel, isXPath, values) {
	` + jsResolve + `
	const node = resolve(sel, isXPath);
	if (!node) return {status: "not_found"};
	if (!node.tagName || node.tagName.toLowerCase() !== "select") {
		return {status: "error", message: "element is not a select"};
	}
	if (!node.multiple && values.length > 1) {
		return {status: "error", message: "select accepts a single option"};
	}
	const wanted = new Set(values);
	const matched = new Set();
	for (const option of Array.from(node.options)) {
		const keys = [option.value, option.label, option.text.trim()];
		const hit = keys.some(k => wanted.has(k));
		if (node.multiple) {
			option.selected = hit;
		} else if (hit) {
			node.value = option.value;
		}
		if (hit) {
			for (const k of keys) {
				if (wanted.has(k)) matched.add(k);
			}
		}
	}
	const missing = values.filter(v => !matched.has(v));
	if (missing.length > 0) {
		return {status: "error", message: "no option matches: " + missing.join(", ")};
	}
	node.dispatchEvent(new Event("input", {bubbles: true}));
	node.dispatchEvent(new Event("change", {bubbles: true}));
	return {status: "ok"};
})(%s, %t, %s)`

// evalStatus is the decoded form of the script status protocol.
type evalStatus struct {
	Status  string  `json:"status"`
	Message string  `json:"message,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
}

// namedKeys maps the key names commands use to the chromedp key runes that
// produce full keydown/char/keyup sequences.
var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
	"Space":      " ",
}

// chordFor translates a command key argument into a chromedp key string.
// Single printable characters pass through as-is.
func chordFor(key string) (string, error) {
	if chord, ok := namedKeys[key]; ok {
		return chord, nil
	}
	if utf8.RuneCountInString(key) == 1 {
		return key, nil
	}
	return "", fmt.Errorf("unsupported key %q", key)
}

// normalizeLocator strips an explicit scheme prefix and reports whether the
// locator is an XPath expression. Bare locators starting with "/" or "(" are
// XPath; everything else is treated as a CSS selector.
func normalizeLocator(locator string) (sel string, isXPath bool) {
	trimmed := strings.TrimSpace(locator)
	if rest, ok := strings.CutPrefix(trimmed, "xpath="); ok {
		return rest, true
	}
	if rest, ok := strings.CutPrefix(trimmed, "css="); ok {
		return rest, false
	}
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "(") {
		return trimmed, true
	}
	return trimmed, false
}

// jsEncode renders a value as a JSON literal safe to splice into a script.
func jsEncode(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(raw)
}

// CountMatches reports how many attached elements the locator resolves to in
// the current document.
func (p *Page) CountMatches(ctx context.Context, locator string) (int, error) {
	sel, isXPath := normalizeLocator(locator)
	if sel == "" {
		return 0, errors.New("empty locator")
	}

	script := fmt.Sprintf(countMatchesJS, jsEncode(sel), isXPath)
	var count int
	if err := p.run(ctx, chromedp.Evaluate(script, &count)); err != nil {
		return 0, fmt.Errorf("count matches for %q: %w", locator, err)
	}
	if count < 0 {
		return 0, fmt.Errorf("locator %q is not a valid selector expression", locator)
	}
	return count, nil
}

// Execute applies one resolved command to the live document. The target must
// be a locator; a snapshot-relative element id reaching this point is a
// contract violation, not something to resolve here.
func (p *Page) Execute(ctx context.Context, cmd schemas.Command) error {
	locator, ok := cmd.Target.Locator()
	if !ok {
		return fmt.Errorf("%w: target %s is not a locator", schemas.ErrInvalidCommand, cmd.Target.String())
	}
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("%w: %v", schemas.ErrInvalidCommand, err)
	}

	p.logger.Debug("executing command",
		zap.String("method", string(cmd.Method)),
		zap.String("target", locator),
		zap.Strings("args", cmd.Args),
	)

	var err error
	switch cmd.Method {
	case schemas.MethodClick:
		err = p.click(ctx, locator)
	case schemas.MethodHover:
		err = p.hover(ctx, locator)
	case schemas.MethodFill:
		err = p.fill(ctx, locator, cmd.Args[0])
	case schemas.MethodPress:
		err = p.press(ctx, locator, cmd.Args[0])
	case schemas.MethodCheck:
		err = p.setChecked(ctx, locator, true)
	case schemas.MethodUncheck:
		err = p.setChecked(ctx, locator, false)
	case schemas.MethodSelect:
		err = p.selectOptions(ctx, locator, cmd.Args)
	default:
		err = fmt.Errorf("%w: method %q", schemas.ErrInvalidCommand, cmd.Method)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", cmd.Method, locator, err)
	}
	return nil
}

// evalCommand runs a command script and maps its status onto errors.
func (p *Page) evalCommand(ctx context.Context, script string) (evalStatus, error) {
	var res evalStatus
	if err := p.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return res, err
	}
	switch res.Status {
	case evalOK:
		return res, nil
	case evalNotFound:
		return res, schemas.ErrTargetUnattached
	case evalNotVisible:
		return res, errors.New("element is not visible")
	case evalError:
		return res, errors.New(res.Message)
	}
	return res, fmt.Errorf("unexpected script result %q", res.Status)
}

// elementPoint locates the element and returns its viewport center.
func (p *Page) elementPoint(ctx context.Context, locator string) (evalStatus, error) {
	sel, isXPath := normalizeLocator(locator)
	return p.evalCommand(ctx, fmt.Sprintf(elementPointJS, jsEncode(sel), isXPath))
}

// click dispatches a real mouse press and release at the element center, so
// the full pointer event sequence fires the way a user's click would.
func (p *Page) click(ctx context.Context, locator string) error {
	pt, err := p.elementPoint(ctx, locator)
	if err != nil {
		return err
	}
	return p.run(ctx,
		input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y),
		input.DispatchMouseEvent(input.MousePressed, pt.X, pt.Y).
			WithButton(input.Left).
			WithButtons(1).
			WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, pt.X, pt.Y).
			WithButton(input.Left).
			WithClickCount(1),
	)
}

// hover moves the pointer over the element center without pressing.
func (p *Page) hover(ctx context.Context, locator string) error {
	pt, err := p.elementPoint(ctx, locator)
	if err != nil {
		return err
	}
	return p.run(ctx, input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y))
}

func (p *Page) fill(ctx context.Context, locator, value string) error {
	sel, isXPath := normalizeLocator(locator)
	_, err := p.evalCommand(ctx, fmt.Sprintf(fillJS, jsEncode(sel), isXPath, jsEncode(value)))
	return err
}

// press focuses the element, then sends the key through the keyboard layer
// so keydown, char, and keyup all fire.
func (p *Page) press(ctx context.Context, locator, key string) error {
	chord, err := chordFor(key)
	if err != nil {
		return err
	}
	sel, isXPath := normalizeLocator(locator)
	if _, err := p.evalCommand(ctx, fmt.Sprintf(focusJS, jsEncode(sel), isXPath)); err != nil {
		return err
	}
	return p.run(ctx, chromedp.KeyEvent(chord))
}

func (p *Page) setChecked(ctx context.Context, locator string, want bool) error {
	sel, isXPath := normalizeLocator(locator)
	_, err := p.evalCommand(ctx, fmt.Sprintf(setCheckedJS, jsEncode(sel), isXPath, want))
	return err
}

func (p *Page) selectOptions(ctx context.Context, locator string, values []string) error {
	sel, isXPath := normalizeLocator(locator)
	_, err := p.evalCommand(ctx, fmt.Sprintf(selectOptionsJS, jsEncode(sel), isXPath, jsEncode(values)))
	return err
}
