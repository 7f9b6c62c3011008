package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/godwinm8/Stateless-2D-Editor/share"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type contextKey string

const ClaimsContextKey = contextKey("share-claims")

// ClaimsFromContext returns the share claims accepted for the request, if any.
func ClaimsFromContext(ctx context.Context) (*share.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*share.Claims)
	return claims, ok
}

func tokenFrom(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.Split(h, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", false
		}
		return parts[1], true
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, true
	}
	return "", false
}

func readOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// ShareToken requires a share token on every request when secret is set. Tokens are bound to
// the scene named by the "id" route parameter, and view tokens are refused on writes. With an
// empty secret every request passes.
func ShareToken(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := tokenFrom(r)
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Share token is required"})
				return
			}

			claims, err := share.Parse(secret, tokenString)
			if err != nil {
				logrus.WithError(err).Debug("Rejected share token")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Invalid token"})
				return
			}

			if id := chi.URLParam(r, "id"); id != "" && id != claims.SceneID {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, map[string]string{"error": "Token is not valid for this scene"})
				return
			}
			if claims.ViewOnly() && !readOnly(r.Method) {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, map[string]string{"error": "Token is view-only"})
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
