package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/share"

	"github.com/go-chi/chi/v5"
)

func newRouter(secret []byte) http.Handler {
	r := chi.NewRouter()
	r.Route("/scenes/{id}", func(r chi.Router) {
		r.Use(ShareToken(secret))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ClaimsFromContext(r.Context()); !ok && len(secret) > 0 {
				w.WriteHeader(http.StatusTeapot)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		r.Put("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func mustIssue(t *testing.T, secret []byte, id string, mode share.Mode) string {
	t.Helper()
	tok, err := share.Issue(secret, id, mode, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return tok
}

func TestShareToken(t *testing.T) {
	secret := []byte("s3cret")
	router := newRouter(secret)

	view := mustIssue(t, secret, "abc123", share.ModeView)
	edit := mustIssue(t, secret, "abc123", share.ModeEdit)
	other := mustIssue(t, secret, "other", share.ModeEdit)

	tests := []struct {
		name   string
		method string
		target string
		header string
		want   int
	}{
		{"missing token", http.MethodGet, "/scenes/abc123/", "", http.StatusUnauthorized},
		{"malformed header", http.MethodGet, "/scenes/abc123/", "Token " + edit, http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/scenes/abc123/", "Bearer nope", http.StatusUnauthorized},
		{"view token read", http.MethodGet, "/scenes/abc123/", "Bearer " + view, http.StatusOK},
		{"view token via query", http.MethodGet, "/scenes/abc123/?token=" + view, "", http.StatusOK},
		{"view token write", http.MethodPut, "/scenes/abc123/", "Bearer " + view, http.StatusForbidden},
		{"edit token write", http.MethodPut, "/scenes/abc123/", "Bearer " + edit, http.StatusOK},
		{"other scene", http.MethodGet, "/scenes/abc123/", "Bearer " + other, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d (%s)", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestShareToken_NoSecret(t *testing.T) {
	router := newRouter(nil)
	req := httptest.NewRequest(http.MethodPut, "/scenes/abc123/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}
