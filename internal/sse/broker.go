// Package sse streams ledger validation results to HTTP clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Event types.
const (
	TypeLedgerValidated = "ledger.validated"
	TypeLedgerRemoved   = "ledger.removed"
	TypeReportUpdated   = "report.updated"
)

// keepAlive is how often an idle stream gets a comment line so proxies do
// not close it.
const keepAlive = 25 * time.Second

// clientBuffer is the number of frames queued per client before new ones
// are dropped for it.
const clientBuffer = 64

// Event is one frame sent to every subscriber.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// LedgerData is the payload of ledger.* events.
type LedgerData struct {
	Path       string   `json:"path"`
	OK         bool     `json:"ok"`
	Violations []string `json:"violations,omitempty"`
}

// ReportData is the payload of report.updated: totals over the latest
// result of every ledger the broker has seen.
type ReportData struct {
	OK         bool `json:"ok"`
	Ledgers    int  `json:"ledgers"`
	Failing    int  `json:"failing"`
	Violations int  `json:"violations"`
}

// Broker fans validation events out to SSE clients and keeps a running
// tally of the latest result per ledger. report.updated is coalesced: at
// most one per throttle window, with a trailing frame so the last state is
// always delivered.
type Broker struct {
	throttle time.Duration

	mu         sync.Mutex
	clients    map[chan []byte]struct{}
	tally      map[string]int
	lastReport time.Time
	pending    *time.Timer
	closed     bool
}

// NewBroker creates a broker that emits report.updated at most once per
// reportThrottle.
func NewBroker(reportThrottle time.Duration) *Broker {
	if reportThrottle <= 0 {
		reportThrottle = 2 * time.Second
	}
	return &Broker{
		throttle: reportThrottle,
		clients:  make(map[chan []byte]struct{}),
		tally:    make(map[string]int),
	}
}

// Close disconnects every client. Later publishes are ignored.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
	for ch := range b.clients {
		close(ch)
	}
	b.clients = nil
}

// Subscribe registers a client. When results are already known, the
// current report is queued as its first frame.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clients[ch] = struct{}{}
	if len(b.tally) > 0 {
		if raw, err := frame(Event{Type: TypeReportUpdated, Data: b.reportLocked()}); err == nil {
			ch <- raw
		}
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcastLocked(event)
}

// PublishValidated records the latest result for path and announces it.
func (b *Broker) PublishValidated(path string, violations []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.tally[path] = len(violations)
	b.broadcastLocked(Event{Type: TypeLedgerValidated, Data: LedgerData{
		Path:       path,
		OK:         len(violations) == 0,
		Violations: violations,
	}})
	b.scheduleReportLocked()
}

// PublishRemoved drops path from the tally and announces it.
func (b *Broker) PublishRemoved(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	delete(b.tally, path)
	b.broadcastLocked(Event{Type: TypeLedgerRemoved, Data: LedgerData{Path: path, OK: true}})
	b.scheduleReportLocked()
}

func (b *Broker) scheduleReportLocked() {
	if b.pending != nil {
		return
	}
	wait := b.throttle - time.Since(b.lastReport)
	if wait <= 0 {
		b.sendReportLocked()
		return
	}
	b.pending = time.AfterFunc(wait, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.pending = nil
		if !b.closed {
			b.sendReportLocked()
		}
	})
}

func (b *Broker) sendReportLocked() {
	b.lastReport = time.Now()
	b.broadcastLocked(Event{Type: TypeReportUpdated, Data: b.reportLocked()})
}

func (b *Broker) reportLocked() ReportData {
	r := ReportData{Ledgers: len(b.tally)}
	for _, n := range b.tally {
		if n > 0 {
			r.Failing++
			r.Violations += n
		}
	}
	r.OK = r.Failing == 0
	return r
}

// broadcastLocked never blocks: a client whose buffer is full misses the
// frame.
func (b *Broker) broadcastLocked(event Event) {
	if b.closed {
		return
	}
	raw, err := frame(event)
	if err != nil {
		return
	}
	for ch := range b.clients {
		select {
		case ch <- raw:
		default:
		}
	}
}

func frame(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), nil
}

// ServeHTTP streams events until the client goes away or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}
