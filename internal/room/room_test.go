package room

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"google.golang.org/protobuf/proto"

	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		raw       string
		wantErr   bool
		anonymous bool
	}{
		{"_/global/maps.example.org/office.json", false, true},
		{"@/acme/hq/lobby", false, false},
		{"@/acme/hq", true, false},
		{"_/global", true, false},
		{"office", true, false},
		{"", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			id, err := ParseID(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRoomID) {
					t.Errorf("ParseID() error = %v, want ErrInvalidRoomID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID() error = %v", err)
			}
			if id.Anonymous != tt.anonymous {
				t.Errorf("Anonymous = %v, want %v", id.Anonymous, tt.anonymous)
			}
		})
	}

	id, _ := ParseID("@/acme/hq/lobby/annex")
	if id.Room != "lobby/annex" {
		t.Errorf("Room = %q, want lobby/annex", id.Room)
	}
}

func TestJoin_AssignsIDsFromOne(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	a := join(t, r, "a", 0, 0)
	b := join(t, r, "b", 5000, 5000)

	if a.ID != 1 || b.ID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", a.ID, b.ID)
	}
	if !slices.Equal(rec.joined, []int32{1, 2}) {
		t.Errorf("joined = %v, want [1 2]", rec.joined)
	}
	if r.UserByUUID("uuid-b") != b {
		t.Error("UserByUUID did not find b")
	}
}

func TestZone_CrossingBetweenWatchedCellsIsAMove(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	l := &testListener{}
	r.AddZoneListener(l, geometry.Cell{X: 0, Y: 0})
	r.AddZoneListener(l, geometry.Cell{X: 1, Y: 0})

	u := join(t, r, "a", 100, 100)
	moveTo(r, u, 400, 100)
	moveTo(r, u, 100, 100)
	moveTo(r, u, 400, 100)
	r.Leave(u)

	want := []string{"enter", "move", "move", "move", "leave"}
	if got := rec.kinds(l); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestZone_CrossingOutOfWatchedCell(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	l := &testListener{}
	r.AddZoneListener(l, geometry.Cell{X: 0, Y: 0})

	u := join(t, r, "a", 100, 100)
	moveTo(r, u, 400, 100)
	moveTo(r, u, 100, 100)

	if got, want := rec.kinds(l), []string{"enter", "leave", "enter"}; !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}

	leave := rec.zone[1].event.UserLeftZone
	if leave == nil || leave.ToZone == nil || *leave.ToZone != (geometry.Cell{X: 1, Y: 0}) {
		t.Errorf("leave = %+v, want ToZone {1 0}", leave)
	}
	enter := rec.zone[2].event.UserJoinedZone
	if enter == nil || enter.FromZone == nil || *enter.FromZone != (geometry.Cell{X: 1, Y: 0}) {
		t.Errorf("enter = %+v, want FromZone {1 0}", enter)
	}
}

func TestZone_ListenerNeverSeesItsOwner(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	u := join(t, r, "a", 10, 10)
	l := &testListener{owner: u.ID}

	users, _ := r.AddZoneListener(l, geometry.Cell{})
	if len(users) != 0 {
		t.Errorf("snapshot has %d users, want 0", len(users))
	}
	moveTo(r, u, 20, 20)
	if got := rec.kinds(l); len(got) != 0 {
		t.Errorf("owner listener got %v", got)
	}
}

func TestZone_Snapshot(t *testing.T) {
	r, _ := newTestRoom(t, Config{})
	join(t, r, "a", 10, 10)
	join(t, r, "b", 30, 10)
	join(t, r, "c", 1000, 10)

	users, groups := r.AddZoneListener(&testListener{}, geometry.Cell{})
	if len(users) != 2 || users[0].Name != "a" || users[1].Name != "b" {
		t.Errorf("snapshot users = %v, want a and b", users)
	}
	if len(groups) != 1 || groups[0].Size() != 2 {
		t.Errorf("snapshot groups = %v, want one group of two", groups)
	}
}

func TestRemoveZoneListener_Idempotent(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	l := &testListener{}
	cell := geometry.Cell{X: 2, Y: 2}

	r.AddZoneListener(l, cell)
	r.RemoveZoneListener(l, cell)
	r.RemoveZoneListener(l, cell)

	if r.ListenerCount() != 0 {
		t.Errorf("ListenerCount() = %d, want 0", r.ListenerCount())
	}
	if len(r.grid.zones) != 0 {
		t.Errorf("zones = %d, want empty zones cleaned up", len(r.grid.zones))
	}

	u := join(t, r, "a", 700, 700)
	moveTo(r, u, 710, 700)
	if got := rec.kinds(l); len(got) != 0 {
		t.Errorf("removed listener got %v", got)
	}
}

func TestRemoveListener_DropsEveryCell(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	l := &testListener{}
	for x := int32(0); x < 3; x++ {
		r.AddZoneListener(l, geometry.Cell{X: x})
	}
	r.RemoveListener(l)
	r.RemoveListener(l)

	join(t, r, "a", 650, 10)
	if got := rec.kinds(l); len(got) != 0 {
		t.Errorf("removed listener got %v", got)
	}
	if r.ListenerCount() != 0 {
		t.Errorf("ListenerCount() = %d, want 0", r.ListenerCount())
	}
}

func TestZone_PositionRoundTrip(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	l := &testListener{}
	r.AddZoneListener(l, geometry.Cell{X: 1, Y: 0})

	u := join(t, r, "a", 333, 17)
	want := geometry.Position{X: 350, Y: 19, Direction: geometry.Left, Moving: true}
	r.UpdatePosition(u, want)

	enter := rec.zone[0].event.UserJoinedZone
	if enter == nil || enter.Position.X != 333 || enter.Position.Y != 17 {
		t.Fatalf("enter = %+v, want position 333,17", enter)
	}
	moved := rec.zone[1].event.UserMoved
	if moved == nil || moved.Position != want {
		t.Errorf("moved = %+v, want %+v", moved, want)
	}
}

func TestGroup_TwoUsersStartWebRTC(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	a := join(t, r, "a", 100, 100)
	b := join(t, r, "b", 130, 100)

	groups := r.Groups()
	if len(groups) != 1 || groups[0].Size() != 2 {
		t.Fatalf("groups = %v, want one group of two", groups)
	}
	if a.Group() != groups[0] || b.Group() != groups[0] {
		t.Error("users do not point at the group")
	}
	x, y := groups[0].Centroid()
	if x != 115 || y != 100 {
		t.Errorf("centroid = %v,%v, want 115,100", x, y)
	}

	want := []signal{
		{"start", b.ID, a.ID, true},
		{"start", a.ID, b.ID, false},
	}
	if !slices.Equal(rec.signals, want) {
		t.Errorf("signals = %v, want %v", rec.signals, want)
	}
}

func TestGroup_JoinExistingGroup(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	a := join(t, r, "a", 100, 100)
	b := join(t, r, "b", 130, 100)
	rec.reset()
	c := join(t, r, "c", 115, 130)

	if c.Group() == nil || c.Group() != a.Group() {
		t.Fatal("c did not join the existing group")
	}
	want := []signal{
		{"start", c.ID, a.ID, true},
		{"start", a.ID, c.ID, false},
		{"start", c.ID, b.ID, true},
		{"start", b.ID, c.ID, false},
	}
	if !slices.Equal(rec.signals, want) {
		t.Errorf("signals = %v, want %v", rec.signals, want)
	}
}

func TestGroup_MaxPerGroup(t *testing.T) {
	r, _ := newTestRoom(t, Config{MaxPerGroup: 2})
	join(t, r, "a", 100, 100)
	join(t, r, "b", 130, 100)
	c := join(t, r, "c", 115, 130)

	if c.Group() != nil {
		t.Error("c joined a full group")
	}
	checkGroups(t, r)
}

func TestGroup_SingletonDissolves(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	l := &testListener{}
	r.AddZoneListener(l, geometry.Cell{})

	a := join(t, r, "a", 100, 100)
	b := join(t, r, "b", 130, 100)
	id := a.Group().ID()
	rec.reset()

	moveTo(r, b, 200, 100)

	if r.Group(id) != nil {
		t.Errorf("group %d still addressable", id)
	}
	if a.Group() != nil || b.Group() != nil {
		t.Error("users still grouped")
	}
	want := []signal{
		{"stop", a.ID, b.ID, false},
		{"stop", b.ID, a.ID, false},
	}
	if !slices.Equal(rec.signals, want) {
		t.Errorf("signals = %v, want %v", rec.signals, want)
	}

	var groupLeft bool
	for _, ev := range rec.zone {
		if ev.event.GroupLeftZone != nil && ev.event.GroupLeftZone.GroupID == id {
			groupLeft = true
		}
	}
	if !groupLeft {
		t.Error("listener did not see the group leave its zone")
	}
}

func TestGroup_StaysWithinRadius(t *testing.T) {
	r, _ := newTestRoom(t, Config{})
	a := join(t, r, "a", 100, 100)
	b := join(t, r, "b", 130, 100)

	moveTo(r, b, 170, 100)
	if b.Group() == nil || a.Group() != b.Group() {
		t.Fatal("group broke up while inside the radius")
	}
	if got := b.Group().Position(); got != (geometry.Point{X: 135, Y: 100}) {
		t.Errorf("Position() = %v, want {135 100}", got)
	}
}

func TestSetSilent(t *testing.T) {
	r, _ := newTestRoom(t, Config{})
	a := join(t, r, "a", 100, 100)
	b := join(t, r, "b", 130, 100)

	r.SetSilent(a, true)
	if a.Group() != nil || b.Group() != nil || len(r.Groups()) != 0 {
		t.Fatal("going silent did not dissolve the pair")
	}

	moveTo(r, b, 110, 100)
	if b.Group() != nil {
		t.Error("b grouped with a silent user")
	}

	r.SetSilent(a, false)
	if a.Group() == nil || a.Group() != b.Group() {
		t.Error("becoming audible did not regroup")
	}

	r.SetSilent(a, false)
	checkGroups(t, r)
}

func TestLeave_Idempotent(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	a := join(t, r, "a", 100, 100)
	b := join(t, r, "b", 130, 100)

	r.Leave(a)
	r.Leave(a)

	if !slices.Equal(rec.left, []int32{a.ID}) {
		t.Errorf("left = %v, want [%d]", rec.left, a.ID)
	}
	if r.User(a.ID) != nil {
		t.Error("left user still addressable")
	}
	if b.Group() != nil {
		t.Error("remaining user still grouped")
	}
	checkGroups(t, r)

	r.Leave(b)
	if !r.IsEmpty() {
		t.Error("IsEmpty() = false after every user left")
	}
}

func TestGroups_RandomWalkKeepsPartition(t *testing.T) {
	r, _ := newTestRoom(t, Config{ZoneSize: 64})
	rng := rand.New(rand.NewPCG(7, 11))

	var users []*User
	for i := 0; i < 10; i++ {
		users = append(users, join(t, r, string(rune('a'+i)), rng.Int32N(300), rng.Int32N(300)))
	}

	for step := 0; step < 2000; step++ {
		i := rng.IntN(len(users))
		u := users[i]
		switch op := rng.IntN(20); {
		case op == 0:
			r.SetSilent(u, !u.Silent())
		case op == 1:
			r.Leave(u)
			users[i] = join(t, r, u.Name, rng.Int32N(300), rng.Int32N(300))
		default:
			p := u.Position()
			moveTo(r, u, p.X+rng.Int32N(41)-20, p.Y+rng.Int32N(41)-20)
		}
		checkGroups(t, r)
		if t.Failed() {
			t.Fatalf("invariant broken at step %d", step)
		}
	}
}

func TestAdmin(t *testing.T) {
	r, _ := newTestRoom(t, Config{})
	a := join(t, r, "a", 0, 0)

	admin := &testAdmin{}
	r.AdminJoin(admin)
	if len(admin.got) != 1 || admin.got[0].MemberJoin == nil || admin.got[0].MemberJoin.UUID != a.UUID {
		t.Fatalf("replay = %+v, want MemberJoin for a", admin.got)
	}

	b := join(t, r, "b", 900, 900)
	r.Leave(b)
	if len(admin.got) != 3 {
		t.Fatalf("admin got %d messages, want 3", len(admin.got))
	}
	if admin.got[2].MemberLeave == nil || admin.got[2].MemberLeave.UUID != b.UUID {
		t.Errorf("last = %+v, want MemberLeave for b", admin.got[2])
	}

	r.Leave(a)
	if r.IsEmpty() {
		t.Error("IsEmpty() = true while an admin is attached")
	}
	r.AdminLeave(admin)
	if !r.IsEmpty() {
		t.Error("IsEmpty() = false after the admin left")
	}
}

func TestJoin_ClosingRoom(t *testing.T) {
	r, _ := newTestRoom(t, Config{})
	r.Close()
	_, err := r.Join(&testConn{}, &messages.JoinRoomMessage{UserUUID: "x"})
	if !errors.Is(err, ErrRoomClosing) {
		t.Errorf("Join() error = %v, want ErrRoomClosing", err)
	}
}

func TestBroadcast(t *testing.T) {
	r, _ := newTestRoom(t, Config{})
	a := join(t, r, "a", 0, 0)
	b := join(t, r, "b", 900, 0)

	r.Broadcast(messages.Error("hello"))
	for _, u := range []*User{a, b} {
		conn := u.Conn().(*testConn)
		if len(conn.sent) != 1 {
			t.Errorf("user %d got %d messages, want 1", u.ID, len(conn.sent))
		}
	}
}

func TestItemStates(t *testing.T) {
	r, _ := newTestRoom(t, Config{})

	if _, err := ParseItemState("{not json"); err == nil {
		t.Error("ParseItemState accepted invalid JSON")
	}

	state, err := ParseItemState(`{"open": true, "code": [1, 2]}`)
	if err != nil {
		t.Fatalf("ParseItemState: %v", err)
	}
	r.SetItemState(4, state)
	other, _ := ParseItemState(`"plain"`)
	r.SetItemState(2, other)

	items := r.ItemStates()
	if len(items) != 2 || items[0].ItemID != 2 || items[1].ItemID != 4 {
		t.Fatalf("items = %+v, want ids 2 and 4", items)
	}
	back, err := ParseItemState(items[1].StateJSON)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if !proto.Equal(back, state) {
		t.Errorf("state changed across render: %s", items[1].StateJSON)
	}
}
