package room

import (
	"testing"

	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
)

type zoneEvent struct {
	kind     string
	listener Listener
	event    *messages.ZoneEvent
}

type signal struct {
	kind      string
	user      int32
	peer      int32
	initiator bool
}

// recorder is a Notifier that keeps everything it is told.
type recorder struct {
	joined  []int32
	left    []int32
	signals []signal
	zone    []zoneEvent
}

func (r *recorder) Joined(u *User, _ []messages.ItemStateMessage) { r.joined = append(r.joined, u.ID) }
func (r *recorder) Left(u *User)                                  { r.left = append(r.left, u.ID) }

func (r *recorder) GroupStart(u, peer *User, initiator bool) {
	r.signals = append(r.signals, signal{"start", u.ID, peer.ID, initiator})
}

func (r *recorder) GroupStop(u, peer *User) {
	r.signals = append(r.signals, signal{"stop", u.ID, peer.ID, false})
}

func (r *recorder) ZoneEnter(l Listener, e Entity, from *geometry.Cell) {
	r.zone = append(r.zone, zoneEvent{"enter", l, EnterEvent(e, from)})
}

func (r *recorder) ZoneMove(l Listener, e Entity) {
	r.zone = append(r.zone, zoneEvent{"move", l, MoveEvent(e)})
}

func (r *recorder) ZoneLeave(l Listener, e Entity, to *geometry.Cell) {
	r.zone = append(r.zone, zoneEvent{"leave", l, LeaveEvent(e, to)})
}

func (r *recorder) reset() {
	r.signals = nil
	r.zone = nil
}

// kinds returns the zone event kinds seen by l, in order.
func (r *recorder) kinds(l Listener) []string {
	var out []string
	for _, ev := range r.zone {
		if ev.listener == l {
			out = append(out, ev.kind)
		}
	}
	return out
}

type testListener struct{ owner int32 }

func (l *testListener) OwnerUserID() int32 { return l.owner }

type testConn struct {
	sent   []*messages.ServerMessage
	closed bool
}

func (c *testConn) Send(msg *messages.ServerMessage) { c.sent = append(c.sent, msg) }
func (c *testConn) Close()                           { c.closed = true }

type testAdmin struct{ got []*messages.ServerToAdmin }

func (a *testAdmin) SendAdmin(msg *messages.ServerToAdmin) { a.got = append(a.got, msg) }

func newTestRoom(t *testing.T, cfg Config) (*Room, *recorder) {
	t.Helper()
	id, err := ParseID("_/global/maps.example.org/office.json")
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	rec := &recorder{}
	return New(id, Details{}, cfg, rec, nil), rec
}

func join(t *testing.T, r *Room, name string, x, y int32) *User {
	t.Helper()
	u, err := r.Join(&testConn{}, &messages.JoinRoomMessage{
		UserUUID: "uuid-" + name,
		Name:     name,
		Position: geometry.Position{X: x, Y: y, Direction: geometry.Down},
	})
	if err != nil {
		t.Fatalf("Join(%s): %v", name, err)
	}
	return u
}

func moveTo(r *Room, u *User, x, y int32) {
	r.UpdatePosition(u, geometry.Position{X: x, Y: y, Direction: geometry.Right, Moving: true})
}

// checkGroups verifies that groups partition a subset of users and that no
// singleton survives.
func checkGroups(t *testing.T, r *Room) {
	t.Helper()
	seen := make(map[int32]int32)
	for _, g := range r.Groups() {
		if g.Size() < 2 {
			t.Errorf("group %d has %d members", g.ID(), g.Size())
		}
		for _, m := range g.Members() {
			if prev, dup := seen[m.ID]; dup {
				t.Errorf("user %d in groups %d and %d", m.ID, prev, g.ID())
			}
			seen[m.ID] = g.ID()
			if m.Group() != g {
				t.Errorf("user %d points at group %v, want %d", m.ID, m.Group(), g.ID())
			}
		}
	}
	for _, u := range r.Users() {
		if u.Group() != nil {
			if _, ok := seen[u.ID]; !ok {
				t.Errorf("user %d points at dead group %d", u.ID, u.Group().ID())
			}
		}
	}
}
