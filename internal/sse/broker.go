// Package sse implements a Server-Sent Events broker for record and schema
// change events.
package sse

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/modelstore/internal/models"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// RecordEvent is the payload of record.* events.
type RecordEvent struct {
	Type string   `json:"type"`
	ID   string   `json:"id"`
	Keys []string `json:"keys,omitempty"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets the interval of keep-alive comments written to idle
// connections. Zero disables them.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) {
		b.heartbeat = d
	}
}

// WithNormalizer maps ?type= filter values to the canonical model names
// record events carry.
func WithNormalizer(fn func(raw string) string) Option {
	return func(b *Broker) {
		if fn != nil {
			b.normalize = fn
		}
	}
}

// delivery is an event on its way to the clients. model scopes record
// events; an empty model reaches every client.
type delivery struct {
	event    Event
	model    string
	throttle bool
}

type client struct {
	ch chan []byte
	// models restricts record events to these types; nil means all.
	models map[string]struct{}
}

func (c *client) wants(model string) bool {
	if model == "" || c.models == nil {
		return true
	}
	_, ok := c.models[model]
	return ok
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set, the event sequence and
// the store.updated throttle. Public methods talk to it over channels.
type Broker struct {
	storeMin  time.Duration
	heartbeat time.Duration
	normalize func(raw string) string

	subscribeCh   chan *client
	unsubscribeCh chan chan []byte
	deliverCh     chan delivery
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. storeThrottle is the minimum interval
// between store.updated events.
func NewBroker(storeThrottle time.Duration, opts ...Option) *Broker {
	if storeThrottle <= 0 {
		storeThrottle = 2 * time.Second
	}

	b := &Broker{
		storeMin:      storeThrottle,
		heartbeat:     15 * time.Second,
		normalize:     func(raw string) string { return raw },
		subscribeCh:   make(chan *client),
		unsubscribeCh: make(chan chan []byte),
		deliverCh:     make(chan delivery, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func frame(seq uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString("id: ")
	sb.WriteString(strconv.FormatUint(seq, 10))
	sb.WriteString("\nevent: ")
	sb.WriteString(event.Type)
	sb.WriteString("\ndata: ")
	sb.Write(payload)
	sb.WriteString("\n\n")
	return []byte(sb.String()), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]*client)
	var (
		seq       uint64
		lastStore time.Time
	)

	broadcast := func(event Event, model string) {
		seq++
		raw, err := frame(seq, event)
		if err != nil {
			return
		}
		for _, c := range clients {
			if !c.wants(model) {
				continue
			}
			select {
			case c.ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case d := <-b.deliverCh:
			broadcast(d.event, d.model)
			if !d.throttle {
				continue
			}
			if now := time.Now(); now.Sub(lastStore) >= b.storeMin {
				lastStore = now
				broadcast(Event{Type: "store.updated", Data: map[string]string{}}, "")
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. When modelTypes is
// non-empty the client only receives record events for those types. Blank
// entries are ignored.
func (b *Broker) Subscribe(modelTypes ...string) chan []byte {
	c := &client{ch: make(chan []byte, 64)}
	for _, t := range modelTypes {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if c.models == nil {
			c.models = make(map[string]struct{}, len(modelTypes))
		}
		c.models[b.normalize(t)] = struct{}{}
	}
	if b.closed.Load() {
		close(c.ch)
		return c.ch
	}

	select {
	case b.subscribeCh <- c:
	case <-b.stopped:
		close(c.ch)
	}
	return c.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.deliver(delivery{event: event})
}

// PublishRecordEvent publishes record.<kind> for id and a throttled
// store.updated event. kind is "updated" or "unloaded".
func (b *Broker) PublishRecordEvent(kind string, id models.Identifier, keys []string) {
	b.deliver(delivery{
		event:    Event{Type: "record." + kind, Data: RecordEvent{Type: id.Type, ID: id.ID, Keys: keys}},
		model:    id.Type,
		throttle: true,
	})
}

// PublishSchemaEvent publishes schema.<kind> for a schema source path and a
// throttled store.updated event. kind is "created", "updated" or "deleted".
func (b *Broker) PublishSchemaEvent(kind, path string) {
	b.deliver(delivery{
		event:    Event{Type: "schema." + kind, Data: map[string]string{"path": path}},
		throttle: true,
	})
}

func (b *Broker) deliver(d delivery) {
	if b.closed.Load() {
		return
	}
	select {
	case b.deliverCh <- d:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). Repeated ?type=
// parameters restrict record events to those model types.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	ch := b.Subscribe(r.URL.Query()["type"]...)
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": ping\n\n"))
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
