package gateway

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
)

type fakeWatcher struct {
	id int32

	mu     sync.Mutex
	subs   []*messages.SubMessage
	code   int
	reason string
}

func (w *fakeWatcher) ownUserID() int32 { return w.id }

func (w *fakeWatcher) emit(sub *messages.SubMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, sub)
}

func (w *fakeWatcher) closeWith(code int, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.code, w.reason = code, reason
}

// take returns and clears the received sub-messages.
func (w *fakeWatcher) take() []*messages.SubMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	subs := w.subs
	w.subs = nil
	return subs
}

func (w *fakeWatcher) closed() (int, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.code, w.reason
}

func kinds(subs []*messages.SubMessage) []string {
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		switch {
		case sub.UserJoined != nil:
			out = append(out, "joined")
		case sub.UserMoved != nil:
			out = append(out, "moved")
		case sub.UserLeft != nil:
			out = append(out, "left")
		case sub.GroupUpdate != nil:
			out = append(out, "group")
		case sub.GroupDelete != nil:
			out = append(out, "group-delete")
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func cellPtr(x, y int32) *geometry.Cell { return &geometry.Cell{X: x, Y: y} }

func TestZoneMirrorDedup(t *testing.T) {
	here := geometry.Cell{X: 0, Y: 0}
	neighbour := geometry.Cell{X: 1, Y: 0}

	tests := []struct {
		name    string
		event   *messages.ZoneEvent
		wantA   []string // watches here and neighbour
		wantB   []string // watches here only
		wantOwn []string // watches here only, is user 9
	}{
		{
			name: "fresh join",
			event: messages.WrapZoneEvent(&messages.UserJoinedZoneMessage{
				UserID: 5, Name: "eve", Position: geometry.Position{X: 10, Y: 10},
			}),
			wantA:   []string{"joined"},
			wantB:   []string{"joined"},
			wantOwn: []string{"joined"},
		},
		{
			name: "enter from a watched cell",
			event: messages.WrapZoneEvent(&messages.UserJoinedZoneMessage{
				UserID: 5, Name: "eve", Position: geometry.Position{X: 10, Y: 10}, FromZone: cellPtr(1, 0),
			}),
			wantA:   []string{"moved"},
			wantB:   []string{"joined"},
			wantOwn: []string{"joined"},
		},
		{
			name:    "leave towards a watched cell",
			event:   messages.WrapZoneEvent(&messages.UserLeftZoneMessage{UserID: 5, ToZone: cellPtr(1, 0)}),
			wantA:   nil,
			wantB:   []string{"left"},
			wantOwn: []string{"left"},
		},
		{
			name:    "leave the room",
			event:   messages.WrapZoneEvent(&messages.UserLeftZoneMessage{UserID: 5}),
			wantA:   []string{"left"},
			wantB:   []string{"left"},
			wantOwn: []string{"left"},
		},
		{
			name: "own user is never echoed",
			event: messages.WrapZoneEvent(&messages.UserJoinedZoneMessage{
				UserID: 9, Name: "self", Position: geometry.Position{X: 1, Y: 1},
			}),
			wantA:   []string{"joined"},
			wantB:   []string{"joined"},
			wantOwn: nil,
		},
		{
			name:    "group leaves towards a watched cell",
			event:   messages.WrapZoneEvent(&messages.GroupLeftZoneMessage{GroupID: 2, ToZone: cellPtr(1, 0)}),
			wantA:   nil,
			wantB:   []string{"group-delete"},
			wantOwn: []string{"group-delete"},
		},
		{
			name:  "move of an unknown user is ignored",
			event: messages.WrapZoneEvent(&messages.UserMovedMessage{UserID: 42}),
			wantA: nil,
			wantB: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewPositionDispatcher("room", 320, 0, nil, nil)
			m := newZoneMirror(d, here)

			a := &fakeWatcher{id: 1}
			b := &fakeWatcher{id: 2}
			own := &fakeWatcher{id: 9}
			for _, w := range []*fakeWatcher{a, b, own} {
				m.watchers[w] = struct{}{}
			}
			watched := map[zoneWatcher][]geometry.Cell{
				a:   {here, neighbour},
				b:   {here},
				own: {here},
			}
			watches := func(w zoneWatcher, cell geometry.Cell) bool {
				for _, c := range watched[w] {
					if c == cell {
						return true
					}
				}
				return false
			}

			m.apply(tt.event, watches)

			if got := kinds(a.take()); !equal(got, tt.wantA) {
				t.Errorf("watcher A got %v, want %v", got, tt.wantA)
			}
			if got := kinds(b.take()); !equal(got, tt.wantB) {
				t.Errorf("watcher B got %v, want %v", got, tt.wantB)
			}
			if got := kinds(own.take()); !equal(got, tt.wantOwn) {
				t.Errorf("own watcher got %v, want %v", got, tt.wantOwn)
			}
		})
	}
}

func TestZoneMirrorTracksContent(t *testing.T) {
	d := NewPositionDispatcher("room", 320, 0, nil, nil)
	m := newZoneMirror(d, geometry.Cell{})
	never := func(zoneWatcher, geometry.Cell) bool { return false }

	m.apply(messages.WrapZoneEvent(&messages.UserJoinedZoneMessage{UserID: 1, Name: "alice"}), never)
	m.apply(messages.WrapZoneEvent(&messages.UserJoinedZoneMessage{UserID: 2, Name: "bob"}), never)
	m.apply(messages.WrapZoneEvent(&messages.UserMovedMessage{
		UserID: 2, Position: geometry.Position{X: 50, Y: 60, Direction: geometry.Left, Moving: true},
	}), never)
	m.apply(messages.WrapZoneEvent(&messages.GroupUpdateZoneMessage{GroupID: 7, GroupSize: 2}), never)

	// A late watcher is replayed the content, without its own user.
	late := &fakeWatcher{id: 1}
	m.startListening(late)
	subs := late.take()
	if got := kinds(subs); !equal(got, []string{"joined", "group"}) {
		t.Fatalf("replay = %v, want [joined group]", got)
	}
	pos := subs[0].UserJoined.Position
	if subs[0].UserJoined.UserID != 2 || pos.X != 50 || pos.Y != 60 || pos.Direction != geometry.Left {
		t.Errorf("replayed user = %+v, want bob at its last position", subs[0].UserJoined)
	}

	m.stopListening(late)
	if got := kinds(late.take()); !equal(got, []string{"left", "group-delete"}) {
		t.Errorf("stop = %v, want [left group-delete]", got)
	}
	if len(m.watchers) != 0 {
		t.Errorf("watchers = %d after stopListening, want 0", len(m.watchers))
	}
}

// fakeUpstream serves zone streams fed by the test.
type fakeUpstream struct {
	mu      sync.Mutex
	streams map[geometry.Cell]*fakeZoneStream
	opened  int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{streams: make(map[geometry.Cell]*fakeZoneStream)}
}

func (u *fakeUpstream) listen(ctx context.Context, req *messages.ZoneRequest) (zoneStream, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	s := &fakeZoneStream{ctx: ctx, batches: make(chan *messages.ZoneBatch, 16)}
	u.streams[req.Cell()] = s
	u.opened++
	return s, nil
}

func (u *fakeUpstream) stream(t *testing.T, cell geometry.Cell) *fakeZoneStream {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		u.mu.Lock()
		s, ok := u.streams[cell]
		u.mu.Unlock()
		if ok {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no stream opened for cell %v", cell)
	return nil
}

func (u *fakeUpstream) openCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.opened
}

type fakeZoneStream struct {
	ctx     context.Context
	batches chan *messages.ZoneBatch
	msg     *messages.ZoneBatch

	mu  sync.Mutex
	err error
}

func (s *fakeZoneStream) Receive() bool {
	select {
	case b, ok := <-s.batches:
		if !ok {
			return false
		}
		s.msg = b
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *fakeZoneStream) Msg() *messages.ZoneBatch { return s.msg }

func (s *fakeZoneStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeZoneStream) Close() error { return nil }

// fail ends the stream, with err or as a clean end of stream.
func (s *fakeZoneStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.batches)
}

func (s *fakeZoneStream) push(events ...*messages.ZoneEvent) {
	s.batches <- &messages.ZoneBatch{Events: events}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcherSharesUpstream(t *testing.T) {
	up := newFakeUpstream()
	d := NewPositionDispatcher("room", 320, 0, up.listen, nil)
	defer d.Close()

	a := &fakeWatcher{id: 1}
	b := &fakeWatcher{id: 2}
	d.SetViewport(a, geometry.Viewport{Left: 0, Top: 0, Right: 100, Bottom: 100})
	d.SetViewport(b, geometry.Viewport{Left: 10, Top: 10, Right: 200, Bottom: 200})

	if got := d.Mirrors(); got != 1 {
		t.Fatalf("Mirrors() = %d, want 1", got)
	}
	stream := up.stream(t, geometry.Cell{})
	stream.push(messages.WrapZoneEvent(&messages.UserJoinedZoneMessage{UserID: 3, Name: "carol"}))

	var gotA, gotB []*messages.SubMessage
	waitFor(t, "both watchers to see carol", func() bool {
		gotA = append(gotA, a.take()...)
		gotB = append(gotB, b.take()...)
		return len(gotA) == 1 && len(gotB) == 1
	})
	if up.openCount() != 1 {
		t.Errorf("upstream streams = %d, want 1", up.openCount())
	}

	// Scrolling away makes the watcher forget the cell content.
	d.SetViewport(a, geometry.Viewport{Left: 400, Top: 0, Right: 500, Bottom: 100})
	if got := kinds(a.take()); !equal(got, []string{"left"}) {
		t.Errorf("after scrolling away A got %v, want [left]", got)
	}
	if got := d.Mirrors(); got != 2 {
		t.Errorf("Mirrors() = %d, want 2", got)
	}

	d.RemoveSession(b)
	if got := d.Mirrors(); got != 1 {
		t.Errorf("Mirrors() = %d after the last watcher of (0,0) left, want 1", got)
	}
}

func TestDispatcherIgnoresInvalidViewport(t *testing.T) {
	tests := []struct {
		name string
		vp   geometry.Viewport
	}{
		{"inverted", geometry.Viewport{Left: 100, Top: 0, Right: 0, Bottom: 100}},
		{"over the cell cap", geometry.Viewport{Left: 0, Top: 0, Right: 1000, Bottom: 1000}},
		{"full int32 range", geometry.Viewport{
			Left: math.MinInt32, Top: math.MinInt32, Right: math.MaxInt32, Bottom: math.MaxInt32,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newFakeUpstream()
			d := NewPositionDispatcher("room", 320, 4, up.listen, nil)
			defer d.Close()

			w := &fakeWatcher{id: 1}
			d.SetViewport(w, tt.vp)
			if got := d.Mirrors(); got != 0 {
				t.Errorf("Mirrors() = %d, want 0", got)
			}

			// An ignored viewport leaves the previous subscriptions alone.
			d.SetViewport(w, geometry.Viewport{Left: 0, Top: 0, Right: 100, Bottom: 100})
			d.SetViewport(w, tt.vp)
			if got := d.Mirrors(); got != 1 {
				t.Errorf("Mirrors() = %d after an ignored change, want 1", got)
			}
		})
	}
}

func TestDispatcherUpstreamFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason string
	}{
		{"end of stream", nil, CloseLostBack},
		{"stream error", errors.New("connection reset"), CloseErrorBack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newFakeUpstream()
			d := NewPositionDispatcher("room", 320, 0, up.listen, nil)
			defer d.Close()

			w := &fakeWatcher{id: 1}
			d.SetViewport(w, geometry.Viewport{Right: 10, Bottom: 10})
			up.stream(t, geometry.Cell{}).fail(tt.err)

			waitFor(t, "the watcher to be closed", func() bool {
				code, _ := w.closed()
				return code != 0
			})
			code, reason := w.closed()
			if code != websocket.CloseInternalServerErr || reason != tt.wantReason {
				t.Errorf("close = %d %q, want 1011 %q", code, reason, tt.wantReason)
			}
			if got := d.Mirrors(); got != 0 {
				t.Errorf("Mirrors() = %d after failure, want 0", got)
			}
		})
	}
}
