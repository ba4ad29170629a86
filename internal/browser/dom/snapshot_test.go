package dom_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaTriXy/stagehand/internal/browser/dom"
)

const loginPageHTML = `
	<html>
	<body>
		<nav>
			<a href="/home">Home</a>
			<a href="/settings" aria-label="Settings">Settings</a>
		</nav>
		<form action="/login" method="post">
			<input type="hidden" name="csrf" value="tok-123">
			<input type="email" name="email" placeholder="Email address">
			<input type="password" name="password" placeholder="Password">
			<select name="locale">
				<option value="">Choose...</option>
				<option value="en">English</option>
				<optgroup label="Beta" disabled>
					<option value="eo">Esperanto</option>
				</optgroup>
			</select>
			<button id="login-btn" type="submit">
				Log
				in
			</button>
			<button disabled>Not yet</button>
			<button aria-hidden="true">Invisible</button>
			<a href="/reset" style="display: none">Forgot password</a>
		</form>
	</body>
	</html>
	`

func TestAnalyze(t *testing.T) {
	doc, err := dom.Parse(loginPageHTML)
	require.NoError(t, err)

	analysis := dom.Analyze(doc, 0)

	t.Run("should number elements sequentially from one", func(t *testing.T) {
		require.NotEmpty(t, analysis.Elements)
		for i, e := range analysis.Elements {
			assert.Equal(t, i+1, e.ID)
		}
	})

	t.Run("should exclude hidden and disabled elements", func(t *testing.T) {
		for _, e := range analysis.Elements {
			assert.NotEqual(t, "hidden", e.Attrs["type"], "hidden inputs must not be listed")
			_, disabled := e.Attrs["disabled"]
			assert.False(t, disabled, "disabled elements must not be listed")
			assert.NotEqual(t, "true", e.Attrs["aria-hidden"])
			assert.NotContains(t, e.Attrs["style"], "display: none")
		}
	})

	t.Run("should produce locators that select exactly one node", func(t *testing.T) {
		for _, e := range analysis.Elements {
			nodes, err := htmlquery.QueryAll(doc, e.XPath)
			require.NoError(t, err, "locator %q must be a valid expression", e.XPath)
			assert.Len(t, nodes, 1, "locator %q must be unique", e.XPath)
		}
	})

	t.Run("should collapse whitespace in element text", func(t *testing.T) {
		var login *dom.Element
		for i := range analysis.Elements {
			if analysis.Elements[i].Attrs["id"] == "login-btn" {
				login = &analysis.Elements[i]
			}
		}
		require.NotNil(t, login, "the login button must be listed")
		assert.Equal(t, "Log in", login.Text)
	})

	t.Run("should extract select options with optgroup disabled state", func(t *testing.T) {
		var sel *dom.Element
		for i := range analysis.Elements {
			if analysis.Elements[i].Tag == "select" {
				sel = &analysis.Elements[i]
			}
		}
		require.NotNil(t, sel)
		require.Len(t, sel.Options, 3)
		assert.Equal(t, dom.SelectOption{Value: "Choose...", Label: "Choose...", Disabled: false}, sel.Options[0])
		assert.Equal(t, dom.SelectOption{Value: "en", Label: "English", Disabled: false}, sel.Options[1])
		assert.Equal(t, dom.SelectOption{Value: "eo", Label: "Esperanto", Disabled: true}, sel.Options[2])
	})

	t.Run("should assign stable unique fingerprints", func(t *testing.T) {
		seen := make(map[string]bool)
		for _, e := range analysis.Elements {
			require.NotEmpty(t, e.Fingerprint)
			assert.False(t, seen[e.Fingerprint], "fingerprint %s repeated", e.Fingerprint)
			seen[e.Fingerprint] = true
		}

		again := dom.Analyze(doc, 0)
		require.Len(t, again.Elements, len(analysis.Elements))
		for i := range again.Elements {
			assert.Equal(t, analysis.Elements[i].Fingerprint, again.Elements[i].Fingerprint)
		}
	})

	t.Run("should count elements beyond the limit", func(t *testing.T) {
		limited := dom.Analyze(doc, 2)
		assert.Len(t, limited.Elements, 2)
		assert.Equal(t, len(analysis.Elements)-2, limited.Omitted)
	})
}

func TestAnalyzeDuplicateIDs(t *testing.T) {
	doc, err := dom.Parse(`
		<html><body>
			<button id="dup">First</button>
			<button id="dup">Second</button>
		</body></html>`)
	require.NoError(t, err)

	analysis := dom.Analyze(doc, 0)
	require.Len(t, analysis.Elements, 2)
	assert.Zero(t, analysis.Unresolvable)

	t.Run("should fall back to positional paths when an id is ambiguous", func(t *testing.T) {
		first, second := analysis.Elements[0], analysis.Elements[1]
		assert.Equal(t, `//*[@id='dup']`, first.XPath)
		assert.Equal(t, "/html[1]/body[1]/button[2]", second.XPath)

		for _, e := range analysis.Elements {
			nodes, err := htmlquery.QueryAll(doc, e.XPath)
			require.NoError(t, err)
			assert.Len(t, nodes, 1)
		}
	})
}

func TestSnapshot(t *testing.T) {
	t.Run("should render numbered lines matching the selector map", func(t *testing.T) {
		snapshot, err := dom.BuildSnapshot(loginPageHTML, 0)
		require.NoError(t, err)

		for id := range snapshot.Selectors {
			assert.Contains(t, snapshot.Text, fmt.Sprintf("[%d] <", id))
		}
		lines := strings.Count(snapshot.Text, "\n")
		assert.Equal(t, len(snapshot.Selectors), lines)
	})

	t.Run("should render descriptive attributes and options", func(t *testing.T) {
		snapshot, err := dom.BuildSnapshot(loginPageHTML, 0)
		require.NoError(t, err)

		assert.Contains(t, snapshot.Text, `<input name="email" type="email" placeholder="Email address">`)
		assert.Contains(t, snapshot.Text, `<button id="login-btn" type="submit"> Log in`)
		assert.Contains(t, snapshot.Text, `options: "Choose...", "en", "eo" (disabled)`)
	})

	t.Run("should note omitted elements", func(t *testing.T) {
		snapshot, err := dom.BuildSnapshot(loginPageHTML, 1)
		require.NoError(t, err)
		assert.Contains(t, snapshot.Text, "more interactive elements not shown")
		assert.Len(t, snapshot.Selectors, 1)
	})

	t.Run("should describe an empty document", func(t *testing.T) {
		snapshot, err := dom.BuildSnapshot(`<html><body><p>Just text.</p></body></html>`, 0)
		require.NoError(t, err)
		assert.Contains(t, snapshot.Text, "(no interactive elements found)")
		assert.Empty(t, snapshot.Selectors)
	})

	t.Run("should be deterministic across rebuilds", func(t *testing.T) {
		first, err := dom.BuildSnapshot(loginPageHTML, 0)
		require.NoError(t, err)
		second, err := dom.BuildSnapshot(loginPageHTML, 0)
		require.NoError(t, err)

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("snapshot mismatch (-first +second):\n%s", diff)
		}
	})
}
