// handler.go — Media route handlers: token authorization and dispatch.
//
// The authorization is a pure capability check. A token that is well-signed,
// unexpired, scope-appropriate, and bound to the requested clip is necessary
// and sufficient — no session, identity, or rate lookup happens here.
//
// Status taxonomy:
//
//	401 — no sig parameter supplied (no credential)
//	403 — credential rejected: malformed, bad signature, expired,
//	      cid mismatch, or scope not permitted on this route
//	404 — token has no resolvable storage key, or the key is absent
//	      from the store
//	500 — object store transport failure (generic body only)
package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/vmatresu/viralclipai-sub000/internal/metrics"
	"github.com/vmatresu/viralclipai-sub000/internal/store"
	"github.com/vmatresu/viralclipai-sub000/internal/token"
	"github.com/vmatresu/viralclipai-sub000/pkg/telemetry"
)

func (g *Gateway) handleVideo(w http.ResponseWriter, r *http.Request) {
	g.serveMedia(w, r, false)
}

func (g *Gateway) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	g.serveMedia(w, r, true)
}

// serveMedia runs the full authorize-resolve-stream pipeline for one request.
func (g *Gateway) serveMedia(w http.ResponseWriter, r *http.Request, wantThumb bool) {
	clipID := chi.URLParam(r, "clipID")

	sig := r.URL.Query().Get("sig")
	if sig == "" {
		// No credential at all — distinct from a rejected one.
		metrics.AuthFailures.WithLabelValues("missing").Inc()
		writeError(w, http.StatusUnauthorized, "token_missing", "sig query parameter required")
		return
	}

	tok, err := token.Verify(sig, g.secret, g.now())
	if err != nil {
		metrics.AuthFailures.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusForbidden, "token_invalid", "delivery token rejected")
		return
	}

	// The token is bound to exactly one clip. A valid token for clip A
	// replayed against clip B's URL is a forgery attempt, not a typo.
	if tok.CID != clipID {
		metrics.AuthFailures.WithLabelValues("cid_mismatch").Inc()
		writeError(w, http.StatusForbidden, "token_invalid", "delivery token rejected")
		return
	}

	scopeOK := tok.Scope.AllowsVideo()
	if wantThumb {
		scopeOK = tok.Scope.AllowsThumbnail()
	}
	if !scopeOK {
		metrics.AuthFailures.WithLabelValues("scope_mismatch").Inc()
		writeError(w, http.StatusForbidden, "token_invalid", "delivery token rejected")
		return
	}

	key, ok := token.ResolveKey(tok, wantThumb)
	if !ok {
		// Legacy token without a storage key: valid credential, nothing
		// addressable behind it.
		writeError(w, http.StatusNotFound, "not_found", "no object for this clip")
		return
	}

	obj, err := g.store.Get(r.Context(), key, parseRange(r.Header.Get("Range")))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.StoreErrors.WithLabelValues("not_found").Inc()
			writeError(w, http.StatusNotFound, "not_found", "no object for this clip")
			return
		}
		metrics.StoreErrors.WithLabelValues("transport").Inc()
		g.log.WithFields(logrus.Fields{
			"cid": tok.CID,
			"uid": tok.UID,
			"key": key,
		}).WithError(err).Error("object store fetch failed")
		telemetry.CaptureError(err, map[string]string{
			"cid":       tok.CID,
			"operation": "store_get",
		})
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	defer obj.Body.Close()

	g.writeObject(w, r, tok, obj, wantThumb)
}
