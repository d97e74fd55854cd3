package room

import "github.com/davidmehren/workadventure/internal/geometry"

// Group is a conversation bubble of users close to each other.
type Group struct {
	id      int32
	members []*User
	x, y    float64
	deleted bool

	cell   geometry.Cell
	inGrid bool
}

func (g *Group) ID() int32 { return g.id }

func (g *Group) Size() int { return len(g.members) }

// Members returns the users in join order.
func (g *Group) Members() []*User {
	out := make([]*User, len(g.members))
	copy(out, g.members)
	return out
}

// Centroid is the mean position of the members.
func (g *Group) Centroid() (x, y float64) { return g.x, g.y }

// Position is the centroid truncated to whole pixels.
func (g *Group) Position() geometry.Point {
	return geometry.Point{X: int32(g.x), Y: int32(g.y)}
}

func (g *Group) has(u *User) bool { return u.group == g }

// join adds u and asks every existing member to open a peer connection
// with it. The joiner initiates.
func (g *Group) join(u *User, n Notifier) {
	g.members = append(g.members, u)
	u.group = g
	for _, member := range g.members {
		if member == u {
			continue
		}
		n.GroupStart(u, member, true)
		n.GroupStart(member, u, false)
	}
	g.recompute()
}

// leave removes u and tears down its peer connections in both directions.
func (g *Group) leave(u *User, n Notifier) {
	for i, member := range g.members {
		if member == u {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	u.group = nil
	for _, member := range g.members {
		n.GroupStop(member, u)
		n.GroupStop(u, member)
	}
	g.recompute()
}

// recompute refreshes the centroid and reports whether it moved.
func (g *Group) recompute() bool {
	if len(g.members) == 0 {
		return false
	}
	var sx, sy float64
	for _, member := range g.members {
		sx += member.x()
		sy += member.y()
	}
	nx, ny := sx/float64(len(g.members)), sy/float64(len(g.members))
	moved := nx != g.x || ny != g.y
	g.x, g.y = nx, ny
	return moved
}

func (g *Group) gridCell(size int32) geometry.Cell {
	return geometry.CellAt(g.x, g.y, size)
}

func (g *Group) zoneState() (*geometry.Cell, *bool) { return &g.cell, &g.inGrid }
