// Package state holds the latest result of each client operation and
// broadcasts changes to any number of subscribers.
package state

import (
	"sync"

	"github.com/cuongbtq/enach-client/internal/resource"
)

// Holder is the single source of truth for one operation. A nil value means
// the operation has not been attempted.
type Holder[T any] struct {
	mu     sync.Mutex
	latest *resource.Resource[T]
	gen    uint64
	nextID int
	subs   map[int]chan *resource.Resource[T]
}

// NewHolder returns an empty holder
func NewHolder[T any]() *Holder[T] {
	return &Holder[T]{subs: make(map[int]chan *resource.Resource[T])}
}

// Get returns the latest value, nil if the operation was never attempted
func (h *Holder[T]) Get() *resource.Resource[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Set publishes r to every subscriber
func (h *Holder[T]) Set(r *resource.Resource[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
	h.publishLocked(r)
}

// Reset returns the holder to "not attempted". Subscribers receive nil.
func (h *Holder[T]) Reset() {
	h.Set(nil)
}

// Subscribe returns a channel that first carries the current value, if any,
// then every change. A slow reader skips intermediate values but always
// sees the latest one. cancel closes the channel.
func (h *Holder[T]) Subscribe() (<-chan *resource.Resource[T], func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan *resource.Resource[T], 1)
	if h.latest != nil {
		ch <- h.latest
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Track publishes Loading, then the settled value of call. A later Set,
// Reset or Track supersedes it and its result is dropped.
func (h *Holder[T]) Track(call *resource.Call[T]) *resource.Call[T] {
	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.publishLocked(resource.Loading[T]())
	h.mu.Unlock()

	go func() {
		r := call.Result()

		h.mu.Lock()
		defer h.mu.Unlock()
		if h.gen == gen {
			h.publishLocked(r)
		}
	}()
	return call
}

func (h *Holder[T]) publishLocked(r *resource.Resource[T]) {
	h.latest = r
	for _, ch := range h.subs {
		select {
		case ch <- r:
		default:
			// drop the stale value so the reader converges on r
			select {
			case <-ch:
			default:
			}
			ch <- r
		}
	}
}
