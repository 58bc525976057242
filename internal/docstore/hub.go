package docstore

import (
	"context"
	"sync"
)

// hub fans collection-change notifications out to live subscriptions. Every
// backend funnels its writes through broadcast; the postgres backend also
// feeds it from LISTEN/NOTIFY so changes made by other processes arrive too.
type hub struct {
	mu   sync.Mutex
	subs map[int]*hubSub
	next int
}

type hubSub struct {
	collection string
	notify     chan struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[int]*hubSub)}
}

func (h *hub) add(collection string) (int, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	s := &hubSub{collection: collection, notify: make(chan struct{}, 1)}
	h.subs[id] = s
	return id, s.notify
}

func (h *hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// broadcast wakes every subscription watching the collection. The notify
// channel is buffered with capacity one: back-to-back changes coalesce into a
// single refresh, which is fine because each refresh re-reads the full set.
func (h *hub) broadcast(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if s.collection != collection {
			continue
		}
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

// runSubscription implements Store.Subscribe on top of the hub for any
// backend. The initial result set is fetched before returning so setup errors
// surface to the caller, but every delivery (the initial one included) happens
// on the subscription's own goroutine: callbacks never run on the subscriber's
// stack, and snapshots for one subscription arrive strictly in order. cancel
// blocks until any in-flight delivery has finished; fn is never called after
// cancel returns.
func runSubscription(ctx context.Context, h *hub, collection string, fetch func(context.Context) ([]Document, error), fn func(Snapshot)) (func(), error) {
	// Register before the initial fetch. A write landing between the fetch
	// and registration queues a notify in the buffered channel, so the
	// goroutine refreshes right after the initial delivery instead of
	// missing it.
	id, notify := h.add(collection)
	docs, err := fetch(ctx)
	if err != nil {
		h.remove(id)
		return nil, err
	}
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}
		var seq uint64 = 1
		fn(Snapshot{Docs: docs, Seq: seq})
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-notify:
			}
			docs, err := fetch(ctx)
			if err != nil {
				// Keep the previous snapshot; the next change triggers
				// another attempt.
				continue
			}
			select {
			case <-stop:
				return
			default:
			}
			seq++
			fn(Snapshot{Docs: docs, Seq: seq})
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.remove(id)
			close(stop)
			wg.Wait()
		})
	}
	return cancel, nil
}
