package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// batchSetter is implemented by stores that can write several keys at once.
type batchSetter interface {
	SetMany(ctx context.Context, values map[string]string) error
}

// Synchronizer is the session context handed to every view. Reads are
// side-effect free; every write is followed by exactly one signal.
type Synchronizer struct {
	store  Store
	broker Broker
	now    func() time.Time
	log    zerolog.Logger
}

type Option func(*Synchronizer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func NewSynchronizer(store Store, broker Broker, log zerolog.Logger, opts ...Option) *Synchronizer {
	if broker == nil {
		broker = NewLocalBroker()
	}
	s := &Synchronizer{store: store, broker: broker, now: time.Now, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) Now() time.Time { return s.now() }

func (s *Synchronizer) Store() Store { return s.store }

func (s *Synchronizer) Current(ctx context.Context) Session {
	return Load(ctx, s.store, s.log)
}

func (s *Synchronizer) IsAuthenticated(ctx context.Context) bool {
	return s.Current(ctx).Authenticated(s.now())
}

// Login persists a fresh session and signals subscribers.
func (s *Synchronizer) Login(ctx context.Context, sess Session) error {
	values := sess.values()
	if b, ok := s.store.(batchSetter); ok {
		if err := b.SetMany(ctx, values); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	} else {
		for _, k := range []string{KeyUserID, KeyAccessLevel, KeyUserIcon, KeyTokenExpires, KeyIsLoggedIn} {
			if err := s.store.Set(ctx, k, values[k]); err != nil {
				return fmt.Errorf("login: %w", err)
			}
		}
	}
	s.log.Info().Str("user_id", sess.UserID).Time("expires_at", sess.ExpiresAt).Msg("session started")
	return s.Notify(ctx)
}

// Logout removes the session keys. Clearing is idempotent.
func (s *Synchronizer) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, sessionKeys...); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.log.Info().Msg("session cleared")
	return s.Notify(ctx)
}

// SetUserIcon updates the displayed identity after a profile change.
func (s *Synchronizer) SetUserIcon(ctx context.Context, path string) error {
	if err := s.store.Set(ctx, KeyUserIcon, path); err != nil {
		return fmt.Errorf("set user icon: %w", err)
	}
	return s.Notify(ctx)
}

func (s *Synchronizer) Notify(ctx context.Context) error {
	return s.broker.Publish(ctx)
}

// Subscribe calls fn after every session change, local or remote.
func (s *Synchronizer) Subscribe(fn func()) (unsubscribe func()) {
	return s.broker.Subscribe(fn)
}

// ExpireIfStale is the only place an expired session gets cleared. The
// expiry is checked again at delete time so a login landing in between
// survives.
func (s *Synchronizer) ExpireIfStale(ctx context.Context) (bool, error) {
	now := s.now()
	if !s.Current(ctx).Expired(now) {
		return false, nil
	}

	var cleared bool
	if d, ok := s.store.(conditionalDeleter); ok {
		var err error
		cleared, err = d.DeleteIf(ctx, func(values map[string]string) bool {
			return sessionFrom(func(k string) string { return values[k] }).Expired(now)
		}, sessionKeys...)
		if err != nil {
			return false, fmt.Errorf("expire: %w", err)
		}
	} else if s.Current(ctx).Expired(now) {
		if err := s.store.Delete(ctx, sessionKeys...); err != nil {
			return false, fmt.Errorf("expire: %w", err)
		}
		cleared = true
	}
	if !cleared {
		s.log.Debug().Msg("session renewed before expiry cleared it")
		return false, nil
	}
	s.log.Info().Msg("expired session removed")
	return true, s.Notify(ctx)
}

// RunExpiry checks for an expired session every interval until ctx ends.
func (s *Synchronizer) RunExpiry(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.ExpireIfStale(ctx); err != nil {
			s.log.Warn().Err(err).Msg("expiry check failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
