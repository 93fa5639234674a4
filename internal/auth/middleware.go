package auth

import (
	"context"
	"net/http"

	gcontext "github.com/gorilla/context"
	"github.com/gorilla/sessions"
)

type contextKey string

const storeKey contextKey = "sessionStore"

// SessionMiddleware binds the signed cookie store to each request so
// handlers can treat it as a plain Store. gorilla/sessions keeps its
// per-request registry in gorilla/context, which is cleared on return.
func SessionMiddleware(s sessions.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer gcontext.Clear(r)
			store := BindCookieStore(s, w, r)
			ctx := context.WithValue(r.Context(), storeKey, store)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StoreFromContext returns the store bound by SessionMiddleware.
func StoreFromContext(ctx context.Context) (*CookieStore, bool) {
	s, ok := ctx.Value(storeKey).(*CookieStore)
	return s, ok
}
