package views

import (
	"context"
	"sync"

	"github.com/petermazzocco/photostockage/internal/auth"
)

// Header is the site header: navigation, avatar and session actions.
type Header struct {
	d     Deps
	watch *sessionWatch
	err   string
}

func NewHeader(d Deps) *Header {
	return &Header{d: d, watch: &sessionWatch{session: d.Session}}
}

func (h *Header) Mount(ctx context.Context) { h.watch.start(ctx) }
func (h *Header) Unmount()                  { h.watch.stop() }
func (h *Header) OnChange(fn func())        { h.watch.onChange(fn) }

func (h *Header) Authenticated() bool {
	_, ok := h.watch.current()
	return ok
}

// Links are the session actions shown on the right of the header.
func (h *Header) Links() []string {
	if h.Authenticated() {
		return []string{"Logout"}
	}
	return []string{"Sign Up", "Login"}
}

// UserIcon is the avatar path, "" for the default icon.
func (h *Header) UserIcon() string {
	s, ok := h.watch.current()
	if !ok {
		return ""
	}
	return s.UserIcon
}

func (h *Header) Message() string { return h.err }

// Logout ends the backend session first. Local state is only cleared when
// the backend accepted.
func (h *Header) Logout(ctx context.Context) error {
	if err := h.d.API.Logout(ctx); err != nil {
		h.d.Log.Warn().Err(err).Msg("logout failed")
		h.err = err.Error()
		return err
	}
	h.err = ""
	if err := h.d.Session.Logout(ctx); err != nil {
		return err
	}
	h.d.navigate(RouteHome)
	return nil
}

// Role chosen from the persisted access level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// MenuItem is one dashboard entry.
type MenuItem struct {
	ID    string
	Label string
}

var (
	adminMenu = []MenuItem{
		{"account", "My Account"},
		{"photos", "Photos"},
		{"categories", "Categories"},
		{"comments", "Comments"},
		{"users", "Users"},
		{"logout", "Logout"},
	}
	userMenu = []MenuItem{
		{"account", "My Account"},
		{"addPhoto", "Add Photo"},
		{"myPhotos", "My Photos"},
		{"myComment", "My Comments"},
		{"favorites", "My Likes"},
		{"downloads", "My Downloads"},
		{"logout", "Logout"},
	}
)

// Dashboard guards the dashboard and picks the menu for the role.
type Dashboard struct {
	d     Deps
	watch *sessionWatch

	mu       sync.Mutex
	role     Role
	selected MenuItem
}

func NewDashboard(d Deps) *Dashboard {
	db := &Dashboard{d: d, watch: &sessionWatch{session: d.Session}}
	db.watch.onChange(db.check)
	return db
}

func (db *Dashboard) Mount(ctx context.Context) { db.watch.start(ctx) }
func (db *Dashboard) Unmount()                  { db.watch.stop() }

// check re-evaluates access after every session change.
func (db *Dashboard) check() {
	sess, ok := db.watch.current()
	if !ok || sess.UserID == "" {
		db.mu.Lock()
		db.role = ""
		db.selected = MenuItem{}
		db.mu.Unlock()
		db.d.navigate(RouteLogin)
		return
	}
	role := RoleUser
	if sess.AccessLevel == auth.AccessAdmin {
		role = RoleAdmin
	}
	db.mu.Lock()
	if role != db.role {
		db.role = role
		db.selected = menuFor(role)[0]
	}
	db.mu.Unlock()
}

// Role is "" until access was granted.
func (db *Dashboard) Role() Role {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.role
}

func (db *Dashboard) Menu() []MenuItem { return menuFor(db.Role()) }

func menuFor(r Role) []MenuItem {
	switch r {
	case RoleAdmin:
		return adminMenu
	case RoleUser:
		return userMenu
	}
	return nil
}

func (db *Dashboard) Selected() MenuItem {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.selected
}

// Select switches the visible panel. The logout entry ends the session.
func (db *Dashboard) Select(ctx context.Context, id string) error {
	for _, item := range db.Menu() {
		if item.ID != id {
			continue
		}
		if id == "logout" {
			if err := db.d.Session.Logout(ctx); err != nil {
				return err
			}
			db.d.navigate(RouteLogin)
			return nil
		}
		db.mu.Lock()
		db.selected = item
		db.mu.Unlock()
		db.d.navigate(RouteDashboard)
		return nil
	}
	return nil
}

// CookieConsent is the first-visit banner.
type CookieConsent struct {
	d Deps
}

func NewCookieConsent(d Deps) *CookieConsent { return &CookieConsent{d: d} }

// Visible reports whether the banner should be shown.
func (c *CookieConsent) Visible(ctx context.Context) bool {
	v, ok, err := c.d.Session.Store().Get(ctx, auth.KeyCookieConsent)
	if err != nil {
		c.d.Log.Debug().Err(err).Msg("read cookie consent")
		return true
	}
	return !ok || v != "accepted"
}

func (c *CookieConsent) Accept(ctx context.Context) error {
	return c.d.Session.Store().Set(ctx, auth.KeyCookieConsent, "accepted")
}
