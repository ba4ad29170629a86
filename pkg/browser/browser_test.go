package browser

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaTriXy/stagehand/internal/config"
)

func TestNormalizeLocator(t *testing.T) {
	testCases := []struct {
		name      string
		locator   string
		wantSel   string
		wantXPath bool
	}{
		{"absolute xpath", "/html/body/div[1]", "/html/body/div[1]", true},
		{"double-slash xpath", "//button[@id='go']", "//button[@id='go']", true},
		{"grouped xpath", "(//a)[2]", "(//a)[2]", true},
		{"explicit xpath prefix", "xpath=//input", "//input", true},
		{"explicit css prefix", "css=#login", "#login", false},
		{"id selector", "#login", "#login", false},
		{"class selector", "button.primary", "button.primary", false},
		{"surrounding whitespace", "  .hint  ", ".hint", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sel, isXPath := normalizeLocator(tc.locator)
			assert.Equal(t, tc.wantSel, sel)
			assert.Equal(t, tc.wantXPath, isXPath)
		})
	}
}

func TestChordFor(t *testing.T) {
	t.Run("should map named keys to their key runes", func(t *testing.T) {
		chord, err := chordFor("Enter")
		require.NoError(t, err)
		assert.Equal(t, kb.Enter, chord)

		chord, err = chordFor("Escape")
		require.NoError(t, err)
		assert.Equal(t, kb.Escape, chord)

		chord, err = chordFor("ArrowDown")
		require.NoError(t, err)
		assert.Equal(t, kb.ArrowDown, chord)

		chord, err = chordFor("Space")
		require.NoError(t, err)
		assert.Equal(t, " ", chord)
	})

	t.Run("should pass single printable characters through", func(t *testing.T) {
		for _, key := range []string{"a", "Z", "7", "ß", "中"} {
			chord, err := chordFor(key)
			require.NoError(t, err)
			assert.Equal(t, key, chord)
		}
	})

	t.Run("should reject unknown key names", func(t *testing.T) {
		for _, key := range []string{"", "Return", "ctrl+a", "F13"} {
			_, err := chordFor(key)
			assert.Error(t, err, "key %q", key)
		}
	})
}

func TestJSEncode(t *testing.T) {
	t.Run("should escape quotes and backslashes", func(t *testing.T) {
		encoded := jsEncode(`va"lu\e`)
		assert.Equal(t, `"va\"lu\\e"`, encoded)
	})

	t.Run("should neutralize markup that could close a script", func(t *testing.T) {
		encoded := jsEncode("</script><script>alert(1)")
		assert.NotContains(t, encoded, "<")
		assert.NotContains(t, encoded, ">")
	})

	t.Run("should encode string slices as arrays", func(t *testing.T) {
		assert.Equal(t, `["a","b"]`, jsEncode([]string{"a", "b"}))
	})
}

func TestPollInterval(t *testing.T) {
	testCases := []struct {
		quiet time.Duration
		want  time.Duration
	}{
		{500 * time.Millisecond, 125 * time.Millisecond},
		{40 * time.Millisecond, 25 * time.Millisecond},
		{10 * time.Second, 250 * time.Millisecond},
		{1 * time.Second, 250 * time.Millisecond},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, pollInterval(tc.quiet), "quiet %s", tc.quiet)
	}
}

// TestCommandScripts renders every script template with representative
// arguments and checks that no format verbs survive unfilled. A mismatch
// between a template and its Sprintf call would otherwise only surface
// against a live browser.
func TestCommandScripts(t *testing.T) {
	rendered := map[string]string{
		"count":  fmt.Sprintf(countMatchesJS, jsEncode("//a[@href]"), true),
		"point":  fmt.Sprintf(elementPointJS, jsEncode("#login"), false),
		"fill":   fmt.Sprintf(fillJS, jsEncode("#email"), false, jsEncode(`bob"@example.com`)),
		"focus":  fmt.Sprintf(focusJS, jsEncode("//input[1]"), true),
		"check":  fmt.Sprintf(setCheckedJS, jsEncode("#tos"), false, true),
		"select": fmt.Sprintf(selectOptionsJS, jsEncode("#locale"), false, jsEncode([]string{"en", "de"})),
	}

	for name, script := range rendered {
		t.Run(name, func(t *testing.T) {
			assert.NotContains(t, script, "%!", "unfilled or mismatched format verb")
			assert.NotContains(t, script, "%s")
			assert.NotContains(t, script, "%t")
		})
	}
}

func TestAllocatorOptions(t *testing.T) {
	base := config.BrowserConfig{
		Headless:     true,
		WindowWidth:  1280,
		WindowHeight: 900,
	}

	t.Run("should include the chromedp defaults", func(t *testing.T) {
		opts := allocatorOptions(base)
		assert.Greater(t, len(opts), 6)
	})

	t.Run("should add binary path and user agent only when configured", func(t *testing.T) {
		plain := allocatorOptions(base)

		custom := base
		custom.ChromePath = "/usr/bin/chromium"
		custom.UserAgent = "stagehand-test"
		assert.Len(t, allocatorOptions(custom), len(plain)+2)
	})

	t.Run("should produce options for headful mode too", func(t *testing.T) {
		headful := base
		headful.Headless = false
		assert.NotEmpty(t, allocatorOptions(headful))
	})
}

type ctxKey string

func TestCombineContext(t *testing.T) {
	t.Run("should carry values from the primary context", func(t *testing.T) {
		primary := context.WithValue(context.Background(), ctxKey("tab"), "t1")
		combined, cancel := combineContext(primary, context.Background())
		defer cancel()

		assert.Equal(t, "t1", combined.Value(ctxKey("tab")))
	})

	t.Run("should cancel when the secondary context ends", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		combined, cancel := combineContext(context.Background(), secondary)
		defer cancel()

		cancelSecondary()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not cancelled")
		}
	})

	t.Run("should cancel when the primary context ends", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := combineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not cancelled")
		}
	})
}
