package auth

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Persisted client state keys.
const (
	KeyIsLoggedIn    = "isLoggedIn"
	KeyTokenExpires  = "tokenExpires"
	KeyUserID        = "userId"
	KeyAccessLevel   = "access_level"
	KeyUserIcon      = "user_icon"
	KeyCookieConsent = "cookieConsent"
)

// SessionTTL is fixed from login time and never refreshed.
const SessionTTL = 30 * 24 * time.Hour

// sessionKeys are cleared on logout, account deletion and expiry.
// cookieConsent survives all of them.
var sessionKeys = []string{KeyIsLoggedIn, KeyTokenExpires, KeyUserIcon, KeyUserID, KeyAccessLevel}

type AccessLevel string

const (
	AccessUser  AccessLevel = "user"
	AccessAdmin AccessLevel = "admin"
)

// ParseAccessLevel reads the persisted form. The backend token carries a
// boolean admin flag, so "true" is the only value that means admin.
func ParseAccessLevel(s string) AccessLevel {
	if strings.TrimSpace(s) == "true" {
		return AccessAdmin
	}
	return AccessUser
}

func (a AccessLevel) persisted() string {
	if a == AccessAdmin {
		return "true"
	}
	return "false"
}

// Session is the client-held belief about who is logged in. It is not
// verified client-side.
type Session struct {
	IsLoggedIn  bool
	ExpiresAt   time.Time
	UserID      string
	AccessLevel AccessLevel
	UserIcon    string
}

// NewSession builds the session written after a successful login.
func NewSession(userID string, level AccessLevel, icon string, now time.Time) Session {
	return Session{
		IsLoggedIn:  true,
		ExpiresAt:   now.Add(SessionTTL),
		UserID:      userID,
		AccessLevel: level,
		UserIcon:    icon,
	}
}

// Authenticated is a pure function of the session and the clock.
func (s Session) Authenticated(now time.Time) bool {
	if !s.IsLoggedIn || s.ExpiresAt.IsZero() {
		return false
	}
	return now.UnixMilli() < s.ExpiresAt.UnixMilli()
}

// Expired reports a session that claims to be logged in but ran out of time.
func (s Session) Expired(now time.Time) bool {
	return s.IsLoggedIn && !s.Authenticated(now)
}

func (s Session) IsAdmin() bool { return s.AccessLevel == AccessAdmin }

func (s Session) values() map[string]string {
	return map[string]string{
		KeyIsLoggedIn:   strconv.FormatBool(s.IsLoggedIn),
		KeyTokenExpires: strconv.FormatInt(s.ExpiresAt.UnixMilli(), 10),
		KeyUserID:       s.UserID,
		KeyAccessLevel:  s.AccessLevel.persisted(),
		KeyUserIcon:     s.UserIcon,
	}
}

// parseExpiry reads epoch milliseconds. Older writers stored a float, so
// fractions and exponents are accepted and truncated.
func parseExpiry(v string) time.Time {
	ms, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms))
}

// Load reads the persisted keys. Missing or malformed values, and read
// errors, all yield a logged-out session.
func Load(ctx context.Context, store Store, log zerolog.Logger) Session {
	return sessionFrom(func(key string) string {
		v, ok, err := store.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("session read failed")
			return ""
		}
		if !ok {
			return ""
		}
		return v
	})
}

func sessionFrom(get func(key string) string) Session {
	var s Session
	s.IsLoggedIn = get(KeyIsLoggedIn) == "true"
	s.ExpiresAt = parseExpiry(get(KeyTokenExpires))
	s.UserID = get(KeyUserID)
	s.AccessLevel = ParseAccessLevel(get(KeyAccessLevel))
	s.UserIcon = get(KeyUserIcon)
	return s
}
