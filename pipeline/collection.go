package pipeline

import (
	"sync"

	"github.com/gammazero/deque"
)

// Collection is the work queue a series reads from. Items are removed in
// insertion order by the series that owns the run; any goroutine, a running
// step included, may Append more work at any time. Appending wakes idle
// workers of every series reading the collection.
type Collection struct {
	mu      sync.Mutex
	items   deque.Deque[interface{}]
	changed chan struct{}
}

// NewCollection returns a collection holding items in order.
func NewCollection(items ...interface{}) *Collection {
	c := &Collection{changed: make(chan struct{})}
	for _, it := range items {
		c.items.PushBack(it)
	}
	return c
}

// Append adds items to the back of the collection.
func (c *Collection) Append(items ...interface{}) {
	if len(items) == 0 {
		return
	}
	c.mu.Lock()
	c.init()
	for _, it := range items {
		c.items.PushBack(it)
	}
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

// Len reports the number of items waiting.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// popOrWatch removes the front item, or, when the collection is empty,
// returns a channel that is closed by the next Append.
func (c *Collection) popOrWatch() (item interface{}, ok bool, changed <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	if c.items.Len() == 0 {
		return nil, false, c.changed
	}
	return c.items.PopFront(), true, nil
}

// Drain empties the collection and returns what it held, front first.
func (c *Collection) Drain() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, 0, c.items.Len())
	for c.items.Len() > 0 {
		out = append(out, c.items.PopFront())
	}
	return out
}

func (c *Collection) init() {
	if c.changed == nil {
		c.changed = make(chan struct{})
	}
}
