// Package sse streams journal changes to browsers as Server-Sent Events.
//
// A stream may be scoped to one user with ?user_id=N; it then receives only
// that user's record and statistics events plus global events such as
// file.deleted. Unscoped streams receive everything.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/moodlog/internal/models"
)

// EventStatsUpdated tells a user's dashboards to refetch their statistics.
const EventStatsUpdated = "stats.updated"

const (
	clientBuffer      = 64
	defaultHeartbeat  = 25 * time.Second
	defaultStatsDelay = 2 * time.Second
)

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type statsUpdate struct {
	UserID int64 `json:"userId"`
}

// envelope is an event addressed to one user's streams, or to all streams
// when owner is zero.
type envelope struct {
	owner int64
	event Event
}

type subscription struct {
	ch     chan []byte
	userID int64
}

// Broker fans events out to SSE streams.
//
// All mutable state (streams and the per-user stats throttle) belongs to the
// loop goroutine; the exported methods only talk to it over channels.
type Broker struct {
	statsEvery time.Duration
	heartbeat  time.Duration

	joinCh   chan subscription
	leaveCh  chan chan []byte
	sendCh   chan envelope
	recordCh chan models.RecordEvent
	countCh  chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. statsThrottle is the minimum gap between two
// stats.updated events for the same user.
func NewBroker(statsThrottle time.Duration) *Broker {
	if statsThrottle <= 0 {
		statsThrottle = defaultStatsDelay
	}
	b := &Broker{
		statsEvery: statsThrottle,
		heartbeat:  defaultHeartbeat,
		joinCh:     make(chan subscription),
		leaveCh:    make(chan chan []byte),
		sendCh:     make(chan envelope, 256),
		recordCh:   make(chan models.RecordEvent, 256),
		countCh:    make(chan chan int),
		stopCh:     make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go b.loop()
	return b
}

func encodeEvent(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}

func (b *Broker) loop() {
	defer close(b.stopped)

	streams := make(map[chan []byte]int64)
	lastStats := make(map[int64]time.Time)

	deliver := func(env envelope) {
		msg, err := encodeEvent(env.event)
		if err != nil {
			return
		}
		for ch, userID := range streams {
			if env.owner != 0 && userID != 0 && userID != env.owner {
				continue
			}
			select {
			case ch <- msg:
			default:
				// Slow reader; drop rather than stall every stream.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range streams {
				close(ch)
			}
			return

		case sub := <-b.joinCh:
			streams[sub.ch] = sub.userID

		case ch := <-b.leaveCh:
			if _, ok := streams[ch]; ok {
				delete(streams, ch)
				close(ch)
			}

		case env := <-b.sendCh:
			deliver(env)

		case ev := <-b.recordCh:
			deliver(envelope{owner: ev.UserID, event: Event{Type: ev.Kind, Data: ev}})
			now := time.Now()
			if now.Sub(lastStats[ev.UserID]) >= b.statsEvery {
				lastStats[ev.UserID] = now
				deliver(envelope{owner: ev.UserID, event: Event{Type: EventStatsUpdated, Data: statsUpdate{UserID: ev.UserID}}})
			}

		case resp := <-b.countCh:
			resp <- len(streams)
		}
	}
}

// Close stops the loop and closes every stream channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a stream for userID, or for all users when userID is 0.
// The returned channel is closed on Unsubscribe or Close.
func (b *Broker) Subscribe(userID int64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.joinCh <- subscription{ch: ch, userID: userID}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a stream and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leaveCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of open streams.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to every stream.
func (b *Broker) Publish(event Event) {
	b.send(envelope{event: event})
}

// PublishTo sends an event to the streams of one user and to unscoped streams.
func (b *Broker) PublishTo(userID int64, event Event) {
	b.send(envelope{owner: userID, event: event})
}

func (b *Broker) send(env envelope) {
	if b.closed.Load() {
		return
	}
	select {
	case b.sendCh <- env:
	case <-b.stopped:
	}
}

// PublishRecordEvent forwards a record change to its owner's streams,
// followed by a stats.updated event throttled per user.
func (b *Broker) PublishRecordEvent(ev models.RecordEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.recordCh <- ev:
	case <-b.stopped:
	}
}

// PublishFileDeleted announces that an attachment blob disappeared from disk.
func (b *Broker) PublishFileDeleted(key string) {
	b.Publish(Event{Type: models.EventFileDeleted, Data: map[string]string{"key": key}})
}

// ServeHTTP streams events (GET /api/events[?user_id=N]). Idle streams get a
// comment line every heartbeat so proxies keep them open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "user_id must be a positive integer", http.StatusBadRequest)
			return
		}
		userID = id
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(userID)
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
