package rtstore

import (
	"context"
	"sync"
)

// Feed is an in-process Notifier. Notify delivers synchronously to every
// handler listening on the event's parent.
type Feed struct {
	mu        sync.RWMutex
	listeners map[string]map[int]Handler
	next      int
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{listeners: make(map[string]map[int]Handler)}
}

func (f *Feed) Notify(_ context.Context, evt Event) error {
	f.mu.RLock()
	hs := make([]Handler, 0, len(f.listeners[evt.Parent]))
	for _, h := range f.listeners[evt.Parent] {
		hs = append(hs, h)
	}
	f.mu.RUnlock()

	for _, h := range hs {
		h(evt)
	}
	return nil
}

func (f *Feed) Listen(parent string, h Handler) (func(), error) {
	p, err := Clean(parent)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	id := f.next
	f.next++
	if f.listeners[p] == nil {
		f.listeners[p] = make(map[int]Handler)
	}
	f.listeners[p][id] = h
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners[p], id)
			if len(f.listeners[p]) == 0 {
				delete(f.listeners, p)
			}
			f.mu.Unlock()
		})
	}, nil
}

// Listeners reports how many handlers are registered on parent.
func (f *Feed) Listeners(parent string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners[parent])
}

// SubscribeVia registers h on n and ties the registration to ctx.
func SubscribeVia(ctx context.Context, n Notifier, path string, h Handler) (func(), error) {
	p, err := Clean(path)
	if err != nil {
		return nil, err
	}
	cancel, err := n.Listen(p, h)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, cancel)
	return func() {
		stop()
		cancel()
	}, nil
}
