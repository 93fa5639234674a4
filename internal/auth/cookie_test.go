package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	gcontext "github.com/gorilla/context"
)

func TestCookieStore_PersistsAcrossRequests(t *testing.T) {
	sessions := NewCookieSessions([]byte("0123456789abcdef0123456789abcdef"), false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/session", nil)
	store := BindCookieStore(sessions, rec, req)
	if err := store.SetMany(context.Background(), map[string]string{
		KeyIsLoggedIn: "true",
		KeyUserID:     "5",
	}); err != nil {
		t.Fatalf("set many: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected a session cookie")
	}
	if cookies[0].MaxAge != int(SessionTTL.Seconds()) {
		t.Fatalf("expected 30 day cookie, got %d", cookies[0].MaxAge)
	}

	next := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	for _, c := range cookies {
		next.AddCookie(c)
	}
	reader := BindCookieStore(sessions, httptest.NewRecorder(), next)
	v, ok, err := reader.Get(context.Background(), KeyUserID)
	if err != nil || !ok || v != "5" {
		t.Fatalf("expected user id from cookie, got %q %v %v", v, ok, err)
	}
}

func TestSessionMiddleware_BindsStore(t *testing.T) {
	sessions := NewCookieSessions([]byte("0123456789abcdef0123456789abcdef"), false)
	called := false
	h := SessionMiddleware(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := StoreFromContext(r.Context()); !ok {
			t.Fatalf("store not bound")
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatalf("next not called")
	}
}

func TestSessionMiddleware_ReleasesRequestRegistry(t *testing.T) {
	sessions := NewCookieSessions([]byte("0123456789abcdef0123456789abcdef"), false)
	h := SessionMiddleware(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, _ := StoreFromContext(r.Context())
		if _, _, err := store.Get(r.Context(), KeyUserID); err != nil {
			t.Fatalf("get: %v", err)
		}
	}))

	reqs := make([]*http.Request, 20)
	for i := range reqs {
		reqs[i] = httptest.NewRequest(http.MethodGet, "/api/session", nil)
		h.ServeHTTP(httptest.NewRecorder(), reqs[i])
	}
	for i, r := range reqs {
		if vals := gcontext.GetAll(r); len(vals) != 0 {
			t.Fatalf("request %d still holds %d context entries", i, len(vals))
		}
	}
}
