package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// DeriveKey maps an instruction's raw text to its cache key. The digest is
// computed over the exact bytes of the instruction: no trimming, case
// folding, or other normalization happens first, so "Click login" and
// "click login" resolve to different keys. The result is a 64-character
// lowercase hex string that is stable across process restarts.
func DeriveKey(instruction string) schemas.CacheKey {
	sum := sha256.Sum256([]byte(instruction))
	return schemas.CacheKey(hex.EncodeToString(sum[:]))
}
