package lock

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Keyed is an in-process lock table with one lock per resource key. Several
// keys are always taken in sorted order so overlapping callers cannot deadlock.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyed returns an empty lock table.
func NewKeyed() *Keyed {
	return &Keyed{slots: make(map[string]*slot)}
}

// Acquire locks every key and returns the function releasing them.
func (k *Keyed) Acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]string, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			k.unlock(held[i])
		}
	}
	for _, key := range sorted {
		if err := k.lock(ctx, key); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}
	return release, nil
}

// WithLock satisfies Locker for single-process deployments. ttl is ignored.
func (k *Keyed) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	release, err := k.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (k *Keyed) lock(ctx context.Context, key string) error {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.drop(key, s)
		return ctx.Err()
	}
}

func (k *Keyed) unlock(key string) {
	k.mu.Lock()
	s := k.slots[key]
	k.mu.Unlock()
	<-s.ch
	k.drop(key, s)
}

func (k *Keyed) drop(key string, s *slot) {
	k.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}
