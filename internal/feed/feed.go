// Package feed fans committed activity entries out to live listeners
// (dashboard sockets). Durable history lives in the activities table;
// the feed only carries notifications.
package feed

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/state"
)

type Feed struct {
	mu   sync.RWMutex
	subs map[string]chan state.Activity
}

func New() *Feed {
	return &Feed{subs: map[string]chan state.Activity{}}
}

// Subscribe returns a channel of activity entries that closes when ctx is
// cancelled.
func (f *Feed) Subscribe(ctx context.Context) <-chan state.Activity {
	ch := make(chan state.Activity, 64)
	id := ulid.Make().String()

	f.mu.Lock()
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Broadcast delivers an entry to every live subscriber. Slow subscribers
// are skipped rather than blocking the caller.
func (f *Feed) Broadcast(act state.Activity) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- act:
		default:
			// Drop if subscriber is slow.
		}
	}
}
