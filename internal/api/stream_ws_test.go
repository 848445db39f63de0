package api

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/feed"
	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/state"
)

type fakeWSWriter struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeWSWriter) Write(_ context.Context, _ websocket.MessageType, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeWSWriter) first() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil, false
	}
	return f.messages[0], true
}

func TestStreamActivitiesWriter(t *testing.T) {
	activityFeed := feed.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &fakeWSWriter{}
	go func() {
		_ = streamActivities(ctx, activityFeed, writer)
	}()

	deadline := time.After(2 * time.Second)
	for activityFeed.SubscriberCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("stream never subscribed")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	activityFeed.Broadcast(state.Activity{ID: "act-1", Type: "status_update", Message: `started "Fix the login flow"`})

	deadline = time.After(2 * time.Second)
	for {
		if payload, ok := writer.first(); ok {
			var act state.Activity
			if err := json.Unmarshal(payload, &act); err != nil {
				t.Fatalf("decode ws payload: %v", err)
			}
			if act.ID != "act-1" {
				t.Fatalf("unexpected activity %+v", act)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for ws message")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
