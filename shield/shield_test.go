package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chain(h http.Handler, mws []func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestAPIStack(t *testing.T) {
	var gotMethod string
	var readErr error
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_, readErr = io.ReadAll(r.Body)
		w.Write([]byte("ok"))
	}), APIStack(8))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/pages", nil))
	if gotMethod != http.MethodGet {
		t.Errorf("HEAD should reach handlers as GET, got %s", gotMethod)
	}
	for k, want := range map[string]string{
		"Content-Security-Policy": DefaultHeaders().CSP,
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
	} {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader("short")))
	if readErr != nil {
		t.Errorf("body under the cap: %v", readErr)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader("much longer than eight")))
	if readErr == nil {
		t.Error("body over the cap should fail to read")
	}
}

func TestSecurityHeaders_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(HeaderConfig{XFrameOptions: "SAMEORIGIN"})(http.NotFoundHandler()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Error("configured header missing")
	}
	if _, ok := rec.Header()["Content-Security-Policy"]; ok {
		t.Error("empty fields should not be sent")
	}
}
