package snapshot

import (
	"sync"

	"github.com/flagdeck/flagdeck/events"
)

type subCh = chan events.Event

type notifier struct {
	mu   sync.Mutex
	subs map[subCh]struct{}
}

// Subscribe registers a stream listener and returns its channel plus an
// unsubscribe func. The channel is closed on unsubscribe.
func (c *Cache) Subscribe() (<-chan events.Event, func()) {
	ch := make(subCh, 8)
	c.notify.mu.Lock()
	if c.notify.subs == nil {
		c.notify.subs = make(map[subCh]struct{})
	}
	c.notify.subs[ch] = struct{}{}
	c.notify.mu.Unlock()

	unsub := func() {
		c.notify.mu.Lock()
		if _, ok := c.notify.subs[ch]; ok {
			delete(c.notify.subs, ch)
			close(ch)
		}
		c.notify.mu.Unlock()
	}
	return ch, unsub
}

// Publish delivers an event to every subscriber without blocking. A
// subscriber whose buffer is full misses the event; slow clients catch
// up on reconnect via the init snapshot.
func (c *Cache) Publish(e events.Event) {
	c.notify.mu.Lock()
	for ch := range c.notify.subs {
		select {
		case ch <- e:
		default:
		}
	}
	c.notify.mu.Unlock()
}

// Subscribers reports the current subscriber count.
func (c *Cache) Subscribers() int {
	c.notify.mu.Lock()
	defer c.notify.mu.Unlock()
	return len(c.notify.subs)
}
