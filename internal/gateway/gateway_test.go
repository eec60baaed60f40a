// gateway_test.go — Handler tests for the delivery gateway: authorization
// taxonomy, range semantics, response headers, CORS, and error mapping.
// Runs entirely against an in-memory object store.
package gateway_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vmatresu/viralclipai-sub000/internal/cors"
	"github.com/vmatresu/viralclipai-sub000/internal/gateway"
	"github.com/vmatresu/viralclipai-sub000/internal/store"
	"github.com/vmatresu/viralclipai-sub000/internal/token"
)

var testSecret = []byte("delivery-shared-secret-at-least-32-bytes")

// fakeStore is an in-memory object store with byte-range support.
type fakeStore struct {
	objects map[string][]byte
	// fail forces every Get to return a transport error.
	fail bool
}

func (f *fakeStore) Get(_ context.Context, key string, byteRange *store.Range) (*store.Object, error) {
	if f.fail {
		return nil, errors.New("connection reset by peer")
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	total := int64(len(data))
	if byteRange == nil {
		return &store.Object{Body: io.NopCloser(strings.NewReader(string(data))), Size: total}, nil
	}
	end := byteRange.End
	if end < 0 || end >= total {
		end = total - 1
	}
	return &store.Object{
		Body:    io.NopCloser(strings.NewReader(string(data[byteRange.Start : end+1]))),
		Size:    total,
		Start:   byteRange.Start,
		End:     end,
		Partial: true,
	}, nil
}

func quietLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("service", "delivery-test")
}

func newTestGateway(fs *fakeStore, origins ...string) http.Handler {
	if origins == nil {
		origins = []string{"https://app.viralclip.ai"}
	}
	g := gateway.New(testSecret, fs, cors.New(origins), quietLog())
	return g.Router()
}

func signToken(t *testing.T, tok *token.Token) string {
	t.Helper()
	signed, err := token.Sign(tok, testSecret)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return signed
}

func playToken(cid, key string) *token.Token {
	return &token.Token{
		CID:        cid,
		UID:        "u1",
		Scope:      token.ScopePlay,
		Exp:        time.Now().Add(time.Minute).Unix(),
		StorageKey: key,
	}
}

func do(h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ── Authorization taxonomy ────────────────────────────────────────────────────

func TestVideo_MissingSig_401(t *testing.T) {
	h := newTestGateway(&fakeStore{})
	w := do(h, http.MethodGet, "/v/clip123", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want 401 when no credential is supplied", w.Code)
	}
}

func TestVideo_GarbageSig_403(t *testing.T) {
	h := newTestGateway(&fakeStore{})
	w := do(h, http.MethodGet, "/v/clip123?sig=not.a.token", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d; want 403", w.Code)
	}
}

func TestVideo_ExpiredToken_403(t *testing.T) {
	tok := playToken("clip123", "u1/clip123/clip.mp4")
	tok.Exp = time.Now().Add(-time.Minute).Unix()
	h := newTestGateway(&fakeStore{objects: map[string][]byte{"u1/clip123/clip.mp4": []byte("x")}})

	w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, tok), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d; want 403 for expired token", w.Code)
	}
}

func TestVideo_CIDMismatch_403(t *testing.T) {
	h := newTestGateway(&fakeStore{objects: map[string][]byte{"k": []byte("x")}})

	// Token minted for clip999, replayed against clip123's URL.
	pairs := [][2]string{
		{"clip999", "clip123"},
		{"a", "b"},
		{"clip123x", "clip123"},
	}
	for _, p := range pairs {
		tok := playToken(p[0], "k")
		w := do(h, http.MethodGet, "/v/"+p[1]+"?sig="+signToken(t, tok), nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("token cid %q vs path cid %q: status = %d; want 403", p[0], p[1], w.Code)
		}
	}
}

func TestVideo_ThumbScope_403(t *testing.T) {
	tok := playToken("clip123", "k")
	tok.Scope = token.ScopeThumb
	h := newTestGateway(&fakeStore{objects: map[string][]byte{"k": []byte("x")}})

	w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, tok), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d; want 403 for thumb scope on video route", w.Code)
	}
}

func TestThumbnail_DLScope_403(t *testing.T) {
	tok := playToken("clip123", "k")
	tok.Scope = token.ScopeDL
	h := newTestGateway(&fakeStore{objects: map[string][]byte{"k": []byte("x")}})

	w := do(h, http.MethodGet, "/t/clip123?sig="+signToken(t, tok), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d; want 403 for dl scope on thumbnail route", w.Code)
	}
}

func TestVideo_LegacyTokenWithoutKey_404(t *testing.T) {
	tok := playToken("clip123", "")
	h := newTestGateway(&fakeStore{})

	w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, tok), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404 for token without storage key", w.Code)
	}
}

func TestVideo_StoreMiss_404(t *testing.T) {
	tok := playToken("clip123", "u1/clip123/clip.mp4")
	h := newTestGateway(&fakeStore{objects: map[string][]byte{}})

	w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, tok), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404 for key absent from store", w.Code)
	}
}

func TestVideo_StoreFailure_500Generic(t *testing.T) {
	tok := playToken("clip123", "u1/clip123/clip.mp4")
	h := newTestGateway(&fakeStore{fail: true})

	w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, tok), nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d; want 500 for store transport failure", w.Code)
	}
	if strings.Contains(w.Body.String(), "connection reset") {
		t.Error("500 body leaked internal error details")
	}
}

// ── Success paths ─────────────────────────────────────────────────────────────

func TestVideo_EndToEndDownload(t *testing.T) {
	body := strings.Repeat("v", 500)
	fs := &fakeStore{objects: map[string][]byte{"u1/abc/clip.mp4": []byte(body)}}
	h := newTestGateway(fs)

	tok := &token.Token{
		CID:        "abc",
		UID:        "u1",
		Scope:      token.ScopeDL,
		Exp:        time.Now().Add(time.Minute).Unix(),
		StorageKey: "u1/abc/clip.mp4",
	}
	w := do(h, http.MethodGet, "/v/abc?sig="+signToken(t, tok), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body: %s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="abc.mp4"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := w.Header().Get("Content-Length"); got != "500" {
		t.Errorf("Content-Length = %q; want 500", got)
	}
	if got := w.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q; want video/mp4", got)
	}
	if got := w.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q; want bytes", got)
	}
	if w.Body.Len() != 500 {
		t.Errorf("body length = %d; want 500", w.Body.Len())
	}
}

func TestVideo_PlayScope_NoDisposition(t *testing.T) {
	fs := &fakeStore{objects: map[string][]byte{"k.mp4": []byte("data")}}
	h := newTestGateway(fs)

	w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, playToken("clip123", "k.mp4")), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != "" {
		t.Errorf("Content-Disposition = %q; want unset for play scope", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "private, no-store" {
		t.Errorf("Cache-Control = %q; want private for non-share token", got)
	}
}

func TestVideo_ShareToken_PublicCache(t *testing.T) {
	fs := &fakeStore{objects: map[string][]byte{"k.mp4": []byte("data")}}
	h := newTestGateway(fs)

	tok := playToken("clip123", "k.mp4")
	tok.Share = true
	w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, tok), nil)
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q; want public bounded TTL for share token", got)
	}
}

func TestVideo_RangeRequest_206(t *testing.T) {
	body := strings.Repeat("x", 1000)
	fs := &fakeStore{objects: map[string][]byte{"k.mp4": []byte(body)}}
	h := newTestGateway(fs)

	w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, playToken("clip123", "k.mp4")),
		map[string]string{"Range": "bytes=0-99"})

	if w.Code != http.StatusPartialContent {
		t.Fatalf("status = %d; want 206", w.Code)
	}
	if got := w.Header().Get("Content-Range"); got != "bytes 0-99/1000" {
		t.Errorf("Content-Range = %q; want bytes 0-99/1000", got)
	}
	if got := w.Header().Get("Content-Length"); got != "100" {
		t.Errorf("Content-Length = %q; want 100", got)
	}
	if w.Body.Len() != 100 {
		t.Errorf("body length = %d; want 100", w.Body.Len())
	}
}

func TestVideo_OpenEndedRange(t *testing.T) {
	body := strings.Repeat("x", 1000)
	fs := &fakeStore{objects: map[string][]byte{"k.mp4": []byte(body)}}
	h := newTestGateway(fs)

	w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, playToken("clip123", "k.mp4")),
		map[string]string{"Range": "bytes=900-"})

	if w.Code != http.StatusPartialContent {
		t.Fatalf("status = %d; want 206", w.Code)
	}
	if got := w.Header().Get("Content-Range"); got != "bytes 900-999/1000" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestVideo_UnparsableRange_Full200(t *testing.T) {
	body := strings.Repeat("x", 1000)
	fs := &fakeStore{objects: map[string][]byte{"k.mp4": []byte(body)}}
	h := newTestGateway(fs)

	for _, rng := range []string{"bytes=broken", "items=0-99", "bytes=5-2", "bytes=0-1,5-9"} {
		w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, playToken("clip123", "k.mp4")),
			map[string]string{"Range": rng})
		if w.Code != http.StatusOK {
			t.Errorf("Range %q: status = %d; want 200 full object", rng, w.Code)
		}
		if w.Body.Len() != 1000 {
			t.Errorf("Range %q: body length = %d; want full 1000", rng, w.Body.Len())
		}
	}
}

func TestHead_HeadersWithoutBody(t *testing.T) {
	fs := &fakeStore{objects: map[string][]byte{"k.mp4": []byte(strings.Repeat("x", 250))}}
	h := newTestGateway(fs)

	w := do(h, http.MethodHead, "/v/clip123?sig="+signToken(t, playToken("clip123", "k.mp4")), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if got := w.Header().Get("Content-Length"); got != "250" {
		t.Errorf("Content-Length = %q; want 250", got)
	}
	if w.Body.Len() != 0 {
		t.Errorf("HEAD response carried %d body bytes", w.Body.Len())
	}
}

// ── Thumbnails ────────────────────────────────────────────────────────────────

func TestThumbnail_ThumbScopeDirectKey(t *testing.T) {
	fs := &fakeStore{objects: map[string][]byte{"foo.jpg": []byte("jpegbytes")}}
	h := newTestGateway(fs)

	tok := playToken("clip123", "foo.jpg")
	tok.Scope = token.ScopeThumb
	w := do(h, http.MethodGet, "/t/clip123?sig="+signToken(t, tok), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body: %s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("Content-Type = %q; want image/jpeg", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=86400" {
		t.Errorf("Cache-Control = %q; thumbnails always get the long public TTL", got)
	}
}

func TestThumbnail_DerivedFromPlayToken(t *testing.T) {
	// A play token pointing at a/b/clip.mp4 fetches a/b/clip_thumb.jpg
	// on the thumbnail route.
	fs := &fakeStore{objects: map[string][]byte{
		"a/b/clip.mp4":       []byte("video"),
		"a/b/clip_thumb.jpg": []byte("thumb"),
	}}
	h := newTestGateway(fs)

	w := do(h, http.MethodGet, "/t/clip123?sig="+signToken(t, playToken("clip123", "a/b/clip.mp4")), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if w.Body.String() != "thumb" {
		t.Errorf("body = %q; want the derived thumbnail object", w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); got != "" {
		t.Errorf("Content-Disposition = %q; thumbnails never get attachment disposition", got)
	}
}

// ── CORS ──────────────────────────────────────────────────────────────────────

func TestOptions_AllowedOrigin_204(t *testing.T) {
	h := newTestGateway(&fakeStore{})
	w := do(h, http.MethodOptions, "/v/clip123", map[string]string{"Origin": "https://app.viralclip.ai"})

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d; want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.viralclip.ai" {
		t.Errorf("Allow-Origin = %q; want the origin echoed", got)
	}
}

func TestOptions_DisallowedOrigin_403NoHeaders(t *testing.T) {
	h := newTestGateway(&fakeStore{})
	w := do(h, http.MethodOptions, "/v/clip123", map[string]string{"Origin": "https://evil.example.com"})

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d; want 403", w.Code)
	}
	for name := range w.Header() {
		if strings.HasPrefix(name, "Access-Control") {
			t.Errorf("disallowed preflight leaked CORS header %s", name)
		}
	}
}

func TestOptions_AnyPath_Preflights(t *testing.T) {
	// OPTIONS routes to preflight regardless of path, even unknown ones.
	h := newTestGateway(&fakeStore{})
	w := do(h, http.MethodOptions, "/nonsense/path", map[string]string{"Origin": "https://app.viralclip.ai"})
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d; want 204 for OPTIONS on any path", w.Code)
	}
}

func TestVideo_SuccessCarriesCORSHeaders(t *testing.T) {
	fs := &fakeStore{objects: map[string][]byte{"k.mp4": []byte("data")}}
	h := newTestGateway(fs)

	w := do(h, http.MethodGet, "/v/clip123?sig="+signToken(t, playToken("clip123", "k.mp4")),
		map[string]string{"Origin": "https://app.viralclip.ai"})

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.viralclip.ai" {
		t.Errorf("Allow-Origin = %q on media response", got)
	}
	expose := w.Header().Get("Access-Control-Expose-Headers")
	for _, want := range []string{"Content-Length", "Accept-Ranges", "Content-Range"} {
		if !strings.Contains(expose, want) {
			t.Errorf("Expose-Headers %q missing %s — ranged media fetches would break in browsers", expose, want)
		}
	}
}

// ── Misc routes ───────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	h := newTestGateway(&fakeStore{})
	w := do(h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d; want 200", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q; want OK", w.Body.String())
	}
}

func TestUnknownRoute_404(t *testing.T) {
	h := newTestGateway(&fakeStore{})
	for _, path := range []string{"/", "/x/clip123", "/v/", "/admin"} {
		w := do(h, http.MethodGet, path, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d; want 404", path, w.Code)
		}
	}
}

func TestRequestID_Present(t *testing.T) {
	h := newTestGateway(&fakeStore{})
	w := do(h, http.MethodGet, "/health", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing from response")
	}
}

// Statelessness check: many concurrent requests against one gateway instance
// must not interfere. Run with -race.
func TestConcurrentRequests(t *testing.T) {
	body := strings.Repeat("x", 100)
	fs := &fakeStore{objects: map[string][]byte{"k.mp4": []byte(body)}}
	h := newTestGateway(fs)
	sig := signToken(t, playToken("clip123", "k.mp4"))

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			w := do(h, http.MethodGet, "/v/clip123?sig="+sig, nil)
			if w.Code != http.StatusOK {
				done <- fmt.Errorf("status %d", w.Code)
				return
			}
			done <- nil
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent request failed: %v", err)
		}
	}
}
