// Package cors computes the cross-origin header sets for the delivery
// gateway.
//
// Browser-hosted <video> elements perform cross-origin ranged fetches, so
// every successful media response must carry the allow/expose set, not just
// preflight responses. Unknown origins get a 403 preflight with zero CORS
// headers — the browser then blocks the request on its side as well.
//
// The allow-list is configuration data, injected at construction. No env
// reads happen here.
package cors

import (
	"net/http"
	"strings"
)

// Header values shared by preflight and media responses.
const (
	allowMethods  = "GET, HEAD, OPTIONS"
	allowHeaders  = "Range, Content-Type"
	exposeHeaders = "Content-Length, Content-Type, Accept-Ranges, Content-Range"
	maxAge        = "86400" // preflight cache: 24h
)

// Policy is an origin allow-list. The zero value allows nothing.
type Policy struct {
	origins  []string
	wildcard bool
}

// New builds a Policy from configured origins. A single "*" entry allows any
// origin. Entries are compared exactly (scheme + host + optional port);
// trailing slashes are stripped.
func New(origins []string) *Policy {
	p := &Policy{}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			p.wildcard = true
			continue
		}
		p.origins = append(p.origins, o)
	}
	return p
}

// Allowed reports whether the given Origin header value may access the
// gateway. An empty origin (curl, server-to-server) is not a CORS request
// and is always allowed through without headers.
func (p *Policy) Allowed(origin string) bool {
	if p.wildcard {
		return true
	}
	for _, o := range p.origins {
		if origin == o {
			return true
		}
	}
	return false
}

// Apply sets the CORS header set for a successful media response. No headers
// are written for non-CORS requests or disallowed origins.
func (p *Policy) Apply(h http.Header, origin string) {
	if origin == "" || !p.Allowed(origin) {
		return
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Expose-Headers", exposeHeaders)
	h.Add("Vary", "Origin")
}

// Preflight answers an OPTIONS request. Allowed origins get 204 with the
// full header set; anything else gets 403 with no CORS headers at all.
func (p *Policy) Preflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || !p.Allowed(origin) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	h.Set("Access-Control-Expose-Headers", exposeHeaders)
	h.Set("Access-Control-Max-Age", maxAge)
	h.Add("Vary", "Origin")
	w.WriteHeader(http.StatusNoContent)
}
