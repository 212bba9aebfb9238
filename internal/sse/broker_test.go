package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishValidated(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishValidated("l/issue-1-ledger.yml", []string{"tasks[0].id must be a non-empty string"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: ledger.validated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"l/issue-1-ledger.yml"`) || !strings.Contains(s, `"ok":false`) {
			t.Errorf("missing data in %q", s)
		}
		if !strings.Contains(s, "tasks[0].id must be a non-empty string") {
			t.Errorf("missing violation in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

// drain collects every frame already queued on ch.
func drain(ch chan []byte) []string {
	var frames []string
	for {
		select {
		case msg := <-ch:
			frames = append(frames, string(msg))
		default:
			return frames
		}
	}
}

func countType(frames []string, typ string) int {
	n := 0
	for _, f := range frames {
		if strings.HasPrefix(f, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestLedgerEvents_ReportThrottle(t *testing.T) {
	b := NewBroker(300 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishValidated("a.yml", nil)
	b.PublishRemoved("b.yml")
	b.PublishValidated("c.yml", []string{"c.yml: version must be 1"})

	time.Sleep(50 * time.Millisecond)
	frames := drain(ch)
	if n := countType(frames, TypeLedgerValidated) + countType(frames, TypeLedgerRemoved); n != 3 {
		t.Errorf("ledger events = %d, want 3", n)
	}
	if n := countType(frames, TypeReportUpdated); n != 1 {
		t.Errorf("report events = %d, want 1 (throttled)", n)
	}

	time.Sleep(400 * time.Millisecond)
	trailing := drain(ch)
	if len(trailing) != 1 || countType(trailing, TypeReportUpdated) != 1 {
		t.Fatalf("trailing frames = %q, want one report.updated", trailing)
	}
	want := `{"ok":false,"ledgers":2,"failing":1,"violations":1}`
	if !strings.Contains(trailing[0], want) {
		t.Errorf("trailing report = %q, want %s", trailing[0], want)
	}
}

func TestSubscribe_ReceivesCurrentReport(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()

	b.PublishValidated("a.yml", []string{"x", "y"})
	b.PublishValidated("b.yml", nil)
	b.PublishRemoved("a.yml")

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "event: report.updated\n") {
			t.Errorf("first frame = %q, want report.updated", s)
		}
		if !strings.Contains(s, `{"ok":true,"ledgers":1,"failing":0,"violations":0}`) {
			t.Errorf("report = %q", s)
		}
	default:
		t.Fatal("no snapshot queued on subscribe")
	}
}

func TestSubscribe_NoSnapshotBeforeResults(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	if frames := drain(ch); len(frames) != 0 {
		t.Errorf("frames = %q, want none", frames)
	}
}

type syncRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishRemoved("x.yml")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.body(); !strings.Contains(body, "event: ledger.removed") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// capacity is 64; the extra events must not block
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
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

	b.Publish(Event{Type: TypeReportUpdated, Data: map[string]string{}})
	b.PublishValidated("x.yml", nil)
}
