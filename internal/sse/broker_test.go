package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/moodlog/internal/models"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe(0)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.PublishFileDeleted("a.png")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: file.deleted") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"key":"a.png"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishRecordEvent_StatsThrottlePerUser(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	// First event for user 1 triggers stats.updated, the second is throttled.
	b.PublishRecordEvent(models.RecordEvent{Kind: models.EventRecordCreated, RecordID: 1, UserID: 1})
	b.PublishRecordEvent(models.RecordEvent{Kind: models.EventRecordUpdated, RecordID: 1, UserID: 1})
	// A different user has its own throttle window.
	b.PublishRecordEvent(models.RecordEvent{Kind: models.EventRecordCreated, RecordID: 2, UserID: 2})

	time.Sleep(50 * time.Millisecond)
	statsCount := 0
	recordCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "event: stats.updated") {
				statsCount++
			} else if strings.Contains(s, "event: record.") {
				recordCount++
			}
		default:
			break loop
		}
	}

	if recordCount != 3 {
		t.Errorf("record events = %d, want 3", recordCount)
	}
	if statsCount != 2 {
		t.Errorf("stats events = %d, want 2 (one per user)", statsCount)
	}
}

func TestRecordEventPayload(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	b.PublishRecordEvent(models.RecordEvent{Kind: models.EventRecordDeleted, RecordID: 9, UserID: 4})

	var msgs []string
	for len(msgs) < 2 {
		select {
		case msg := <-ch:
			msgs = append(msgs, string(msg))
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %q", msgs)
		}
	}
	if !strings.Contains(msgs[0], "event: record.deleted") || !strings.Contains(msgs[0], `"recordId":9`) {
		t.Errorf("record event = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], `data: {"userId":4}`) {
		t.Errorf("stats event = %q", msgs[1])
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: models.EventRecordUpdated, Data: map[string]int64{"recordId": 3}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: record.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe(0)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: models.EventRecordUpdated, Data: map[string]int64{"recordId": 3}})
	b.PublishRecordEvent(models.RecordEvent{Kind: models.EventRecordUpdated, UserID: 1})
	b.PublishFileDeleted("x.png")
}

func TestScopedStreams(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	mine := b.Subscribe(1)
	defer b.Unsubscribe(mine)
	other := b.Subscribe(2)
	defer b.Unsubscribe(other)
	all := b.Subscribe(0)
	defer b.Unsubscribe(all)

	b.PublishRecordEvent(models.RecordEvent{Kind: models.EventRecordCreated, RecordID: 5, UserID: 1})
	b.PublishFileDeleted("gone.png")
	time.Sleep(50 * time.Millisecond)

	count := func(ch chan []byte) (records, files int) {
		for {
			select {
			case msg := <-ch:
				s := string(msg)
				if strings.Contains(s, "event: record.created") {
					records++
				}
				if strings.Contains(s, "event: file.deleted") {
					files++
				}
			default:
				return records, files
			}
		}
	}

	if r, f := count(mine); r != 1 || f != 1 {
		t.Errorf("owner stream: records=%d files=%d, want 1 1", r, f)
	}
	if r, f := count(other); r != 0 || f != 1 {
		t.Errorf("other user's stream: records=%d files=%d, want 0 1", r, f)
	}
	if r, f := count(all); r != 1 || f != 1 {
		t.Errorf("unscoped stream: records=%d files=%d, want 1 1", r, f)
	}
}

func TestPublishTo(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe(3)
	defer b.Unsubscribe(ch)

	b.PublishTo(4, Event{Type: "note", Data: 1})
	b.PublishTo(3, Event{Type: "note", Data: 2})

	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), "data: 2") {
			t.Errorf("got %q, want the event for user 3", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSSEHandler_RejectsBadUserID(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	for _, raw := range []string{"abc", "0", "-2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/events?user_id="+raw, nil)
		w := httptest.NewRecorder()
		b.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("user_id=%s: status = %d, want 400", raw, w.Code)
		}
	}
	if b.ClientCount() != 0 {
		t.Error("rejected requests must not subscribe")
	}
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	b.heartbeat = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events?user_id=7", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), ": keepalive") {
		t.Errorf("expected keepalive comments, got %q", w.Body.String())
	}
}
