// resolve.go — Object key resolution for verified delivery tokens.
//
// Pure data transformation, no I/O. The token's storage_key is authoritative:
// the gateway never derives keys from clip IDs, so key layout changes on the
// origin side never require a gateway deploy.
package token

import (
	"path"
	"strings"
)

// ThumbSuffix is appended (replacing the extension) when deriving a thumbnail
// key from a video storage key.
const ThumbSuffix = "_thumb.jpg"

// ResolveKey derives the backing object key for a verified token.
//
// Returns ok=false when the token carries no storage key — a legacy or
// misconfigured token that must be answered 404, not 403: the credential is
// valid, there is simply nothing addressable behind it.
//
// For thumbnail requests a thumb-scope token already points directly at the
// thumbnail object. A play-scope token points at the video object, so the
// thumbnail key is derived: extension stripped, ThumbSuffix appended
// ("a/b/clip.mp4" → "a/b/clip_thumb.jpg").
func ResolveKey(tok *Token, wantThumb bool) (string, bool) {
	if tok.StorageKey == "" {
		return "", false
	}
	if !wantThumb || tok.Scope == ScopeThumb {
		return tok.StorageKey, true
	}
	key := tok.StorageKey
	if ext := path.Ext(key); ext != "" {
		key = strings.TrimSuffix(key, ext)
	}
	return key + ThumbSuffix, true
}
