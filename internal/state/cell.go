// Package state holds latest-value cells with synchronous change listeners.
package state

import "sync"

// Cell stores one value and notifies subscribers on every Set.
type Cell[T any] struct {
	mu        sync.Mutex
	value     T
	nextID    uint64
	listeners []listener[T]
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the value and calls every listener, in subscription order,
// before returning. Listeners run outside the lock and may call Get.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	ls := make([]listener[T], len(c.listeners))
	copy(ls, c.listeners)
	c.mu.Unlock()

	for _, l := range ls {
		l.fn(v)
	}
}

// Subscribe registers fn for future updates. The current value is not
// replayed. The returned func removes the listener and is safe to call twice.
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener[T]{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Cell[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}
