package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

const cookieSessionName = "photostockage_state"

// NewCookieSessions configures the signed cookie store used by the web
// deployment. The cookie lives as long as a login does.
func NewCookieSessions(secret []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.MaxAge(int(SessionTTL.Seconds()))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	return store
}

// CookieStore is a Store bound to one request/response pair.
type CookieStore struct {
	sessions sessions.Store
	w        http.ResponseWriter
	r        *http.Request
}

func BindCookieStore(s sessions.Store, w http.ResponseWriter, r *http.Request) *CookieStore {
	return &CookieStore{sessions: s, w: w, r: r}
}

func (c *CookieStore) session() (*sessions.Session, error) {
	sess, err := c.sessions.Get(c.r, cookieSessionName)
	if err != nil && sess == nil {
		return nil, fmt.Errorf("cookie store: %w", err)
	}
	// A cookie signed with a rotated secret yields a fresh session plus an
	// error; starting over is the right outcome.
	return sess, nil
}

func (c *CookieStore) Get(_ context.Context, key string) (string, bool, error) {
	sess, err := c.session()
	if err != nil {
		return "", false, err
	}
	v, ok := sess.Values[key].(string)
	return v, ok, nil
}

func (c *CookieStore) Set(_ context.Context, key, value string) error {
	sess, err := c.session()
	if err != nil {
		return err
	}
	sess.Values[key] = value
	return sess.Save(c.r, c.w)
}

func (c *CookieStore) Delete(_ context.Context, keys ...string) error {
	sess, err := c.session()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(sess.Values, k)
	}
	return sess.Save(c.r, c.w)
}

// SetMany writes several keys with a single Set-Cookie header.
func (c *CookieStore) SetMany(_ context.Context, values map[string]string) error {
	sess, err := c.session()
	if err != nil {
		return err
	}
	for k, v := range values {
		sess.Values[k] = v
	}
	return sess.Save(c.r, c.w)
}
