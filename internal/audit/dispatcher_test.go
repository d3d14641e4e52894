package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherDeliversToChannelSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: EventLogin, PrincipalID: "p1", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != EventLogin || ev.PrincipalID != "p1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestDisabledDispatcherIsNilSafe(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}

type blockingSink struct{ release chan struct{} }

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: EventRefresh})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a stalled sink")
	}

	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: EventLogout, PrincipalID: "p2"})
	sink.Emit(context.Background(), Event{EventType: EventLogin, Error: "invalid credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.PrincipalID != "p2" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestZapSinkLogsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: EventPasswordReset, PrincipalID: "p3", IP: "10.1.1.1", Success: true})

	entries := logs.FilterMessage("audit event").All()
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["principal_id"] != "p3" || fields["event_type"] != EventPasswordReset {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if entries[0].LoggerName != "audit" {
		t.Fatalf("expected logger name audit, got %q", entries[0].LoggerName)
	}
}

type countingSink struct{ n atomic.Uint64 }

func (s *countingSink) Emit(context.Context, Event) { s.n.Add(1) }

func TestDispatcherCountsEmitAfterClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: EventLogin})
	if d.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", d.Dropped())
	}
	if sink.n.Load() != 0 {
		t.Fatal("no event may reach the sink after Close")
	}
}

func TestDispatcherAccountsForEveryEventRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		sink := &countingSink{}
		d := NewDispatcher(Config{Enabled: true, BufferSize: 8, DropIfFull: round%2 == 0}, sink)

		const emitters, perEmitter = 8, 25
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(emitters)
		for i := 0; i < emitters; i++ {
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < perEmitter; j++ {
					d.Emit(context.Background(), Event{EventType: EventRefresh})
				}
			}()
		}
		close(start)
		d.Close()
		wg.Wait()

		if got := sink.n.Load() + d.Dropped(); got != emitters*perEmitter {
			t.Fatalf("round %d: delivered+dropped = %d, want %d", round, got, emitters*perEmitter)
		}
	}
}

func TestDispatcherCloseReleasesBlockedEmit(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	// One event is held by the sink, one fills the buffer.
	d.Emit(context.Background(), Event{})
	d.Emit(context.Background(), Event{})

	emitted := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{})
		close(emitted)
	}()

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()

	select {
	case <-emitted:
	case <-time.After(2 * time.Second):
		t.Fatal("Close must release a blocked Emit")
	}
	close(sink.release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}
