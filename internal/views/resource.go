package views

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrStale is returned by Reload when a newer request was issued, or the
	// resource was unmounted, before the answer arrived. The answer is
	// dropped.
	ErrStale      = errors.New("views: stale response discarded")
	ErrNotMounted = errors.New("views: resource not mounted")
)

// Fetcher loads the remote data behind a Resource.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Snapshot is what a view renders.
type Snapshot[T any] struct {
	Data    T
	Err     error
	Loading bool
}

// Resource holds one remote collection for the lifetime of a mount.
type Resource[T any] struct {
	name     string
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	fetch    Fetcher[T]
	seq      uint64
	data     T
	err      error
	loading  bool
	settled  bool
	mounted  bool
	life     context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	onChange []func()
}

// NewResource builds an unmounted resource. A positive refresh re-runs
// fetch on that interval while mounted.
func NewResource[T any](name string, fetch Fetcher[T], refresh time.Duration, log zerolog.Logger) *Resource[T] {
	return &Resource[T]{
		name:     name,
		fetch:    fetch,
		interval: refresh,
		log:      log.With().Str("resource", name).Logger(),
	}
}

// Mount runs the initial load and starts the refresh ticker. Mounting a
// mounted resource does nothing.
func (r *Resource[T]) Mount(ctx context.Context) error {
	r.mu.Lock()
	if r.mounted {
		r.mu.Unlock()
		return nil
	}
	r.life, r.cancel = context.WithCancel(ctx)
	r.mounted = true
	life := r.life
	if r.interval > 0 {
		r.wg.Add(1)
		go r.refreshLoop(life)
	}
	r.mu.Unlock()

	err := r.Reload(life)
	if errors.Is(err, ErrStale) {
		return nil
	}
	return err
}

func (r *Resource[T]) refreshLoop(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.Reload(ctx); err != nil && !errors.Is(err, ErrStale) {
				r.log.Debug().Err(err).Msg("refresh failed")
			}
		}
	}
}

// Reload fetches again. The answer is applied only when no newer Reload
// was issued in the meantime and the resource is still mounted.
func (r *Resource[T]) Reload(ctx context.Context) error {
	r.mu.Lock()
	if !r.mounted {
		r.mu.Unlock()
		return ErrNotMounted
	}
	r.seq++
	seq := r.seq
	fetch := r.fetch
	life := r.life
	// Only a resource with nothing to show enters the loading state.
	// Refreshes swap the data in when they settle.
	flipped := !r.settled && !r.loading
	if !r.settled {
		r.loading = true
	}
	r.mu.Unlock()
	if flipped {
		r.changed()
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(life, cancel)
	data, err := fetch(ctx)
	stop()
	cancel()

	r.mu.Lock()
	if !r.mounted || seq != r.seq {
		r.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		var zero T
		r.data = zero
		r.log.Debug().Err(err).Msg("fetch failed")
	} else {
		r.data = data
	}
	r.err = err
	r.loading = false
	r.settled = true
	r.mu.Unlock()
	r.changed()
	return err
}

// refetch is Reload after a mutation the backend already accepted. A
// stale answer means a newer load was issued after the mutation, so it
// carries the change and counts as success.
func (r *Resource[T]) refetch(ctx context.Context) error {
	if err := r.Reload(ctx); err != nil && !errors.Is(err, ErrStale) {
		return err
	}
	return nil
}

// SetFetcher re-scopes the resource. Call Reload to apply it; the data
// in hand no longer matches, so that load shows as loading.
func (r *Resource[T]) SetFetcher(fetch Fetcher[T]) {
	r.mu.Lock()
	r.fetch = fetch
	r.settled = false
	r.mu.Unlock()
}

// Unmount cancels in-flight requests and stops the refresh ticker. Answers
// that arrive later are dropped.
func (r *Resource[T]) Unmount() {
	r.mu.Lock()
	if !r.mounted {
		r.mu.Unlock()
		return
	}
	r.mounted = false
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Resource[T]) Mounted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mounted
}

func (r *Resource[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot[T]{Data: r.data, Err: r.err, Loading: r.loading}
}

// Message is the text shown in place of the content, or "".
func (r *Resource[T]) Message() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		return ""
	}
	return r.err.Error()
}

// OnChange registers a re-render hook. Hooks run outside the lock.
func (r *Resource[T]) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = append(r.onChange, fn)
	r.mu.Unlock()
}

func (r *Resource[T]) changed() {
	r.mu.Lock()
	hooks := append([]func(){}, r.onChange...)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
