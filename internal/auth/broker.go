package auth

import (
	"context"
	"sync"
)

// Broker carries zero-payload "session changed" signals. Subscribers
// re-read the store; nothing else travels with the signal.
type Broker interface {
	Publish(ctx context.Context) error
	Subscribe(fn func()) (unsubscribe func())
}

// LocalBroker fans a signal out to in-process subscribers synchronously.
type LocalBroker struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]func()
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[uint64]func())}
}

func (b *LocalBroker) Publish(_ context.Context) error {
	b.deliver()
	return nil
}

func (b *LocalBroker) deliver() {
	b.mu.RLock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// Subscribe registers fn. The returned function may be called any number
// of times.
func (b *LocalBroker) Subscribe(fn func()) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Subscribers is the number of live subscriptions.
func (b *LocalBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
