package dom

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

var hasherPool = sync.Pool{
	New: func() interface{} { return xxhash.New() },
}

// fingerprintOf derives a compact, stable identity for an element from its
// description and locator. Two snapshots of the same document assign the
// same fingerprint to the same element, which makes log lines comparable
// across runs without dumping markup.
func fingerprintOf(description, xpath string) string {
	hasher := hasherPool.Get().(*xxhash.Digest)
	defer func() {
		hasher.Reset()
		hasherPool.Put(hasher)
	}()

	_, _ = hasher.WriteString(description)
	_, _ = hasher.WriteString("|")
	_, _ = hasher.WriteString(xpath)
	return strconv.FormatUint(hasher.Sum64(), 16)
}

// Digest returns a short content hash of arbitrary text. Used to correlate
// log lines about the same snapshot without logging the snapshot itself.
func Digest(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// describe serializes the identifying parts of an element into a readable
// one-line form, e.g. button#login.primary[type="submit"][text="Log in"].
func describe(e Element) string {
	var sb strings.Builder
	sb.WriteString(e.Tag)
	attrs := e.Attrs

	if id := attrs["id"]; id != "" {
		sb.WriteString("#" + id)
	}

	// Classes that look like generated CSS-in-JS hashes (short, digit-bearing)
	// churn between builds and would break cross-run stability.
	if cls := attrs["class"]; cls != "" {
		classes := strings.Fields(cls)
		sort.Strings(classes)
		var stable []string
		for _, c := range classes {
			if len(c) > 5 || !strings.ContainsAny(c, "0123456789") {
				stable = append(stable, c)
			}
		}
		if len(stable) > 0 && len(stable) < 5 {
			sb.WriteString("." + strings.Join(stable, "."))
		}
	}

	for _, key := range []string{"name", "type", "role", "href", "aria-label", "placeholder", "data-testid"} {
		if val := attrs[key]; val != "" {
			val = strings.ReplaceAll(truncate(strings.TrimSpace(val), 64), `"`, "'")
			fmt.Fprintf(&sb, `[%s="%s"]`, key, val)
		}
	}

	if e.Text != "" {
		fmt.Fprintf(&sb, `[text="%s"]`, strings.ReplaceAll(e.Text, `"`, "'"))
	}
	return sb.String()
}
