// Package views holds one controller per data-bearing view of the site.
// Controllers fetch, derive and mutate; they expose plain data so any front
// end can render them. Every controller is mounted against a lifetime
// context and unmounted when the view goes away.
package views

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petermazzocco/photostockage/internal/auth"
	"github.com/petermazzocco/photostockage/internal/backend"
	"github.com/petermazzocco/photostockage/internal/upload"
)

// Route targets used by controllers.
const (
	RouteHome      = "/"
	RouteLogin     = "/login"
	RouteDashboard = "/dashboard"
)

// Navigator changes the current view.
type Navigator interface {
	Navigate(path string)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type ConfirmerFunc func(prompt string) bool

func (f ConfirmerFunc) Confirm(prompt string) bool { return f(prompt) }

// Deps is what every controller is built from.
type Deps struct {
	Session *auth.Synchronizer
	API     *backend.Client
	// Origin is rooted at the same-origin server (uploads, email).
	Origin  *backend.Client
	Uploads *upload.Pipeline
	Nav     Navigator
	Confirm Confirmer
	Log     zerolog.Logger
}

func (d Deps) navigate(path string) {
	if d.Nav != nil {
		d.Nav.Navigate(path)
	}
}

func (d Deps) confirm(prompt string) bool {
	if d.Confirm == nil {
		return false
	}
	return d.Confirm.Confirm(prompt)
}

// sessionWatch keeps a view's copy of the session current.
type sessionWatch struct {
	session *auth.Synchronizer

	mu     sync.Mutex
	sess   auth.Session
	authed bool
	unsub  func()
	hooks  []func()
}

func (w *sessionWatch) start(ctx context.Context) {
	w.refresh(ctx)
	w.mu.Lock()
	if w.unsub == nil {
		w.unsub = w.session.Subscribe(func() { w.refresh(ctx) })
	}
	w.mu.Unlock()
}

func (w *sessionWatch) stop() {
	w.mu.Lock()
	unsub := w.unsub
	w.unsub = nil
	w.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (w *sessionWatch) refresh(ctx context.Context) {
	sess := w.session.Current(ctx)
	authed := sess.Authenticated(w.session.Now())
	w.mu.Lock()
	w.sess, w.authed = sess, authed
	hooks := append([]func(){}, w.hooks...)
	w.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (w *sessionWatch) onChange(fn func()) {
	w.mu.Lock()
	w.hooks = append(w.hooks, fn)
	w.mu.Unlock()
}

func (w *sessionWatch) current() (auth.Session, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sess, w.authed
}
