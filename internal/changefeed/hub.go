package changefeed

import (
	"context"
	"sync"
)

// Hub is an in-process Transport. Publish delivers synchronously to every
// matching subscriber.
type Hub struct {
	mu        sync.RWMutex
	next      int
	subs      map[int]hubSub
	reconnect map[int]func()
}

type hubSub struct {
	sub Subscription
	h   Handler
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]hubSub), reconnect: make(map[int]func())}
}

func (h *Hub) Subscribe(_ context.Context, sub Subscription, fn Handler) (Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.subs[id] = hubSub{sub: sub, h: fn}
	return hubHandle{hub: h, id: id}, nil
}

// Publish delivers e to every subscriber of e.Table whose filter matches.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	var targets []Handler
	for _, s := range h.subs {
		if s.sub.Table == e.Table && s.sub.Filter.MatchesEvent(e) {
			targets = append(targets, s.h)
		}
	}
	h.mu.RUnlock()
	for _, fn := range targets {
		fn(e)
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) OnReconnect(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.reconnect[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.reconnect, id)
		h.mu.Unlock()
	}
}

// SimulateReconnect runs every reconnect callback.
func (h *Hub) SimulateReconnect() {
	h.mu.RLock()
	fns := make([]func(), 0, len(h.reconnect))
	for _, fn := range h.reconnect {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

type hubHandle struct {
	hub *Hub
	id  int
}

func (hh hubHandle) Unsubscribe() error {
	hh.hub.mu.Lock()
	delete(hh.hub.subs, hh.id)
	hh.hub.mu.Unlock()
	return nil
}
