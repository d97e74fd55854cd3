package room

import (
	"slices"

	"github.com/davidmehren/workadventure/internal/geometry"
)

// Entity is a user or a group placed on the grid.
type Entity interface {
	gridCell(size int32) geometry.Cell
	zoneState() (cell *geometry.Cell, inGrid *bool)
}

// Listener is a remote subscriber to one or more cells. Listeners must be
// comparable; pointer types are.
type Listener interface {
	// OwnerUserID is the user that owns the listener, or 0 when it is
	// shared. A listener never hears about its owner.
	OwnerUserID() int32
}

type zone struct {
	cell      geometry.Cell
	users     map[int32]*User
	groups    map[int32]*Group
	listeners map[Listener]struct{}
}

func (z *zone) add(e Entity) {
	switch v := e.(type) {
	case *User:
		z.users[v.ID] = v
	case *Group:
		z.groups[v.id] = v
	}
}

func (z *zone) remove(e Entity) {
	switch v := e.(type) {
	case *User:
		delete(z.users, v.ID)
	case *Group:
		delete(z.groups, v.id)
	}
}

func (z *zone) empty() bool {
	return len(z.users) == 0 && len(z.groups) == 0 && len(z.listeners) == 0
}

// grid indexes entities and listeners by cell and emits enter, move and
// leave notifications so that a listener covering both cells of a
// crossing sees a move instead of a leave and an enter.
type grid struct {
	size     int32
	zones    map[geometry.Cell]*zone
	cellsOf  map[Listener]map[geometry.Cell]struct{}
	notifier Notifier
}

func newGrid(size int32, n Notifier) *grid {
	return &grid{
		size:     size,
		zones:    make(map[geometry.Cell]*zone),
		cellsOf:  make(map[Listener]map[geometry.Cell]struct{}),
		notifier: n,
	}
}

func (g *grid) zoneAt(cell geometry.Cell) *zone {
	z := g.zones[cell]
	if z == nil {
		z = &zone{
			cell:      cell,
			users:     make(map[int32]*User),
			groups:    make(map[int32]*Group),
			listeners: make(map[Listener]struct{}),
		}
		g.zones[cell] = z
	}
	return z
}

func (g *grid) cleanup(z *zone) {
	if z != nil && z.empty() {
		delete(g.zones, z.cell)
	}
}

func hidden(l Listener, e Entity) bool {
	u, ok := e.(*User)
	return ok && l.OwnerUserID() == u.ID
}

func (g *grid) enter(e Entity) {
	cell, inGrid := e.zoneState()
	*cell = e.gridCell(g.size)
	*inGrid = true

	z := g.zoneAt(*cell)
	z.add(e)
	for l := range z.listeners {
		if !hidden(l, e) {
			g.notifier.ZoneEnter(l, e, nil)
		}
	}
}

func (g *grid) move(e Entity) {
	cell, inGrid := e.zoneState()
	if !*inGrid {
		g.enter(e)
		return
	}

	oldCell := *cell
	newCell := e.gridCell(g.size)
	if oldCell == newCell {
		for l := range g.zones[oldCell].listeners {
			if !hidden(l, e) {
				g.notifier.ZoneMove(l, e)
			}
		}
		return
	}

	oldZone := g.zones[oldCell]
	newZone := g.zoneAt(newCell)
	oldZone.remove(e)
	newZone.add(e)
	*cell = newCell

	for l := range oldZone.listeners {
		if _, both := newZone.listeners[l]; both || hidden(l, e) {
			continue
		}
		g.notifier.ZoneLeave(l, e, &newCell)
	}
	for l := range newZone.listeners {
		if hidden(l, e) {
			continue
		}
		if _, both := oldZone.listeners[l]; both {
			g.notifier.ZoneMove(l, e)
		} else {
			g.notifier.ZoneEnter(l, e, &oldCell)
		}
	}
	g.cleanup(oldZone)
}

func (g *grid) leave(e Entity) {
	cell, inGrid := e.zoneState()
	if !*inGrid {
		return
	}
	*inGrid = false

	z := g.zones[*cell]
	if z == nil {
		return
	}
	z.remove(e)
	for l := range z.listeners {
		if !hidden(l, e) {
			g.notifier.ZoneLeave(l, e, nil)
		}
	}
	g.cleanup(z)
}

// addListener subscribes l to cell and returns what l should already know,
// ordered by id.
func (g *grid) addListener(l Listener, cell geometry.Cell) ([]*User, []*Group) {
	z := g.zoneAt(cell)
	z.listeners[l] = struct{}{}

	cells := g.cellsOf[l]
	if cells == nil {
		cells = make(map[geometry.Cell]struct{})
		g.cellsOf[l] = cells
	}
	cells[cell] = struct{}{}

	users := make([]*User, 0, len(z.users))
	for _, u := range z.users {
		if !hidden(l, u) {
			users = append(users, u)
		}
	}
	slices.SortFunc(users, func(a, b *User) int { return int(a.ID - b.ID) })

	groups := make([]*Group, 0, len(z.groups))
	for _, gr := range z.groups {
		groups = append(groups, gr)
	}
	slices.SortFunc(groups, func(a, b *Group) int { return int(a.id - b.id) })

	return users, groups
}

func (g *grid) removeListener(l Listener, cell geometry.Cell) {
	if cells := g.cellsOf[l]; cells != nil {
		delete(cells, cell)
		if len(cells) == 0 {
			delete(g.cellsOf, l)
		}
	}
	z := g.zones[cell]
	if z == nil {
		return
	}
	delete(z.listeners, l)
	g.cleanup(z)
}

func (g *grid) removeAll(l Listener) {
	for cell := range g.cellsOf[l] {
		g.removeListener(l, cell)
	}
}

// around calls fn for every existing zone a circle of the given radius
// can touch.
func (g *grid) around(x, y, radius float64, fn func(z *zone)) {
	min, max := geometry.Neighborhood(x, y, radius, g.size)
	for cy := min.Y; cy <= max.Y; cy++ {
		for cx := min.X; cx <= max.X; cx++ {
			if z := g.zones[geometry.Cell{X: cx, Y: cy}]; z != nil {
				fn(z)
			}
		}
	}
}

func (g *grid) listenerCount() int { return len(g.cellsOf) }
