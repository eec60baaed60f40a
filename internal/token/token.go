// Package token implements signed delivery tokens for the ViralClip edge
// gateway.
//
// A delivery token is a self-contained capability: possession of a token that
// is well-signed, unexpired, and scope-appropriate is necessary and sufficient
// for access to exactly one clip. The gateway never stores or looks a token
// up — verification is a pure function of (signed string, secret, now), which
// is what lets the gateway fan out across edge instances with no coordination
// beyond the shared secret.
//
// Wire format:
//
//	base64url(payload JSON) + "." + base64url(HMAC-SHA256(payload, secret))
//
// Tokens are minted and signed by the origin API with the same shared secret
// (DELIVERY_SECRET). The gateway only verifies.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Scope is the permitted operation class carried inside a token.
type Scope string

// Valid token scopes.
const (
	ScopePlay  Scope = "play"  // inline playback
	ScopeDL    Scope = "dl"    // download (attachment disposition)
	ScopeThumb Scope = "thumb" // thumbnail only
)

// ErrInvalid is returned for every verification failure: malformed encoding,
// signature mismatch, decode error, schema violation, or expiry. Collapsing
// all failure modes into one value gives callers a single decision point and
// avoids leaking which check rejected the token.
var ErrInvalid = errors.New("token: invalid delivery token")

// Token is the decoded payload of a verified delivery token.
type Token struct {
	// CID identifies the target clip. Must match the clip ID in the
	// request path or the request is rejected.
	CID string `json:"cid"`

	// UID is the owning account, carried for audit logging only. It is
	// not independently re-verified here.
	UID string `json:"uid"`

	// Scope is the permitted operation class.
	Scope Scope `json:"scope"`

	// Exp is the Unix second after which the token is void.
	Exp int64 `json:"exp"`

	// StorageKey is the backing object key. Empty means the token was
	// minted before keys were recorded (legacy) and cannot be served.
	StorageKey string `json:"storage_key,omitempty"`

	// Share marks a publicly cacheable link. Relaxes Cache-Control only,
	// never the authorization check.
	Share bool `json:"share,omitempty"`

	// Watermark is present in the token schema but is not consumed by the
	// streaming path. Watermarking, if it happens at all, happens at the
	// encoding stage upstream.
	Watermark bool `json:"watermark,omitempty"`
}

// AllowsVideo reports whether the scope permits the video route.
func (s Scope) AllowsVideo() bool { return s == ScopePlay || s == ScopeDL }

// AllowsThumbnail reports whether the scope permits the thumbnail route.
// Playback tokens may also fetch the poster frame for the same clip.
func (s Scope) AllowsThumbnail() bool { return s == ScopeThumb || s == ScopePlay }

func (s Scope) valid() bool {
	return s == ScopePlay || s == ScopeDL || s == ScopeThumb
}

// Verify parses and cryptographically validates a signed delivery token.
//
// It never panics and never returns a partial token: on any failure the
// result is (nil, ErrInvalid). The signature is checked with hmac.Equal, a
// constant-time comparison, before the payload is decoded — an attacker
// cannot learn partial signature correctness from response timing.
func Verify(signed string, secret []byte, now time.Time) (*Token, error) {
	parts := strings.Split(signed, ".")
	if len(parts) != 2 {
		return nil, ErrInvalid
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalid
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalid
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, ErrInvalid
	}

	var tok Token
	if err := json.Unmarshal(payload, &tok); err != nil {
		return nil, ErrInvalid
	}
	if tok.CID == "" || tok.UID == "" || !tok.Scope.valid() || tok.Exp == 0 {
		return nil, ErrInvalid
	}
	if tok.Exp <= now.Unix() {
		return nil, ErrInvalid
	}
	return &tok, nil
}

// Sign produces the wire form of a token. The gateway itself never signs —
// this exists for tests and for the origin API's reference implementation.
func Sign(tok *Token, secret []byte) (string, error) {
	payload, err := json.Marshal(tok)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}
