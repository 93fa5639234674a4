package auth

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (failingStore) Set(context.Context, string, string) error { return errors.New("disk on fire") }
func (failingStore) Delete(context.Context, ...string) error   { return errors.New("disk on fire") }

func TestLoad_AuthenticatedTruthTable(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	future := strconv.FormatInt(now.UnixMilli()+1, 10)
	past := strconv.FormatInt(now.UnixMilli()-1, 10)
	exact := strconv.FormatInt(now.UnixMilli(), 10)

	cases := []struct {
		name     string
		values   map[string]string
		expected bool
	}{
		{"logged in, future expiry", map[string]string{KeyIsLoggedIn: "true", KeyTokenExpires: future}, true},
		{"logged in, past expiry", map[string]string{KeyIsLoggedIn: "true", KeyTokenExpires: past}, false},
		{"logged in, expiry equals now", map[string]string{KeyIsLoggedIn: "true", KeyTokenExpires: exact}, false},
		{"flag false", map[string]string{KeyIsLoggedIn: "false", KeyTokenExpires: future}, false},
		{"flag capitalised", map[string]string{KeyIsLoggedIn: "True", KeyTokenExpires: future}, false},
		{"missing expiry", map[string]string{KeyIsLoggedIn: "true"}, false},
		{"malformed expiry", map[string]string{KeyIsLoggedIn: "true", KeyTokenExpires: "tomorrow"}, false},
		{"padded expiry", map[string]string{KeyIsLoggedIn: "true", KeyTokenExpires: " " + future + "\n"}, true},
		{"fractional expiry", map[string]string{KeyIsLoggedIn: "true", KeyTokenExpires: future + ".75"}, true},
		{"exponent expiry", map[string]string{KeyIsLoggedIn: "true", KeyTokenExpires: "1.700000000001e12"}, true},
		{"fraction truncated to now", map[string]string{KeyIsLoggedIn: "true", KeyTokenExpires: exact + ".9"}, false},
		{"NaN expiry", map[string]string{KeyIsLoggedIn: "true", KeyTokenExpires: "NaN"}, false},
		{"infinite expiry", map[string]string{KeyIsLoggedIn: "true", KeyTokenExpires: "Infinity"}, false},
		{"empty store", map[string]string{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore()
			for k, v := range tc.values {
				_ = store.Set(context.Background(), k, v)
			}
			got := Load(context.Background(), store, zerolog.Nop()).Authenticated(now)
			if got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestLoad_ReadErrorMeansLoggedOut(t *testing.T) {
	s := Load(context.Background(), failingStore{}, zerolog.Nop())
	if s.Authenticated(time.Now()) {
		t.Fatalf("expected logged-out session on read error")
	}
}

func TestNewSession_ThirtyDayValidity(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession("42", AccessAdmin, "/images/users/a.png", now)

	if got := s.ExpiresAt.Sub(now); got != 30*24*time.Hour {
		t.Fatalf("expected 30 days validity, got %v", got)
	}
	if !s.Authenticated(now.Add(29 * 24 * time.Hour)) {
		t.Fatalf("expected session valid after 29 days")
	}
	if s.Authenticated(now.Add(31 * 24 * time.Hour)) {
		t.Fatalf("expected session expired after 31 days")
	}
	if !s.IsAdmin() {
		t.Fatalf("expected admin session")
	}
}

func TestParseAccessLevel(t *testing.T) {
	if ParseAccessLevel("true") != AccessAdmin {
		t.Fatalf(`"true" must mean admin`)
	}
	for _, v := range []string{"", "false", "1", "admin"} {
		if ParseAccessLevel(v) != AccessUser {
			t.Fatalf("%q must mean user", v)
		}
	}
}

func TestSessionValuesRoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	store := NewMemoryStore()
	in := NewSession("7", AccessUser, "/images/users/x.jpg", now)
	for k, v := range in.values() {
		_ = store.Set(context.Background(), k, v)
	}

	out := Load(context.Background(), store, zerolog.Nop())
	if out.UserID != "7" || out.UserIcon != "/images/users/x.jpg" || out.AccessLevel != AccessUser {
		t.Fatalf("unexpected session: %+v", out)
	}
	if !out.ExpiresAt.Equal(in.ExpiresAt) {
		t.Fatalf("expiry mismatch: %v vs %v", out.ExpiresAt, in.ExpiresAt)
	}
}
