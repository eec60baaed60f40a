// stream.go — Byte-range parsing and outbound response construction.
//
// The response body is forwarded from the store's stream with io.Copy —
// never materialized. Memory stays O(1) in object size.
package gateway

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/vmatresu/viralclipai-sub000/internal/metrics"
	"github.com/vmatresu/viralclipai-sub000/internal/store"
	"github.com/vmatresu/viralclipai-sub000/internal/token"
)

// Fixed content types, one per asset kind. Deliberately ignores the real
// container format — clients key off these exact values.
const (
	videoContentType = "video/mp4"
	thumbContentType = "image/jpeg"
)

// Cache-Control values. Thumbnails are low-sensitivity and always public;
// video is public only for share links.
const (
	cacheShared  = "public, max-age=3600"
	cachePrivate = "private, no-store"
	cacheThumb   = "public, max-age=86400"
)

// parseRange parses an inbound Range header of the form "bytes=start-end"
// with end optional ("bytes=start-" means through end of object). Anything
// absent or unparsable degrades to a full-object fetch — the client then
// gets a plain 200.
func parseRange(header string) *store.Range {
	if header == "" || !strings.HasPrefix(header, "bytes=") {
		return nil
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		// Multi-range requests are not supported; serve the whole object.
		return nil
	}
	startStr, endStr, found := strings.Cut(spec, "-")
	if !found || startStr == "" {
		return nil
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil
	}
	if endStr == "" {
		return &store.Range{Start: start, End: -1}
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return nil
	}
	return &store.Range{Start: start, End: end}
}

// writeObject builds the outbound response for a fetched object and streams
// the body. For HEAD requests all headers are written and the body skipped.
func (g *Gateway) writeObject(w http.ResponseWriter, r *http.Request, tok *token.Token, obj *store.Object, isThumb bool) {
	h := w.Header()

	kind := "video"
	if isThumb {
		h.Set("Content-Type", thumbContentType)
		h.Set("Cache-Control", cacheThumb)
		kind = "thumbnail"
	} else {
		h.Set("Content-Type", videoContentType)
		if tok.Share {
			h.Set("Cache-Control", cacheShared)
		} else {
			h.Set("Cache-Control", cachePrivate)
		}
		if tok.Scope == token.ScopeDL {
			h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tok.CID+".mp4"))
		}
	}

	h.Set("Accept-Ranges", "bytes")
	if n := obj.Length(); n >= 0 {
		h.Set("Content-Length", strconv.FormatInt(n, 10))
	}
	g.cors.Apply(h, r.Header.Get("Origin"))

	if obj.Partial {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", obj.Start, obj.End, obj.Size))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if r.Method == http.MethodHead {
		return
	}

	// Stream straight through; a broken client connection mid-copy is
	// routine at the edge, not an error worth reporting.
	n, _ := io.Copy(w, obj.Body)
	metrics.BytesServed.WithLabelValues(kind).Add(float64(n))
}
