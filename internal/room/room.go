package room

import (
	"errors"
	"log/slog"
	"math"
	"slices"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
)

// ErrRoomClosing is returned by Join once the room has been closed.
var ErrRoomClosing = errors.New("room is closing")

// Default clustering and grid parameters.
const (
	DefaultZoneSize          = 320
	DefaultFormationDistance = 64
	DefaultGroupRadius       = 48
)

// Config holds the clustering and grid parameters of a room.
type Config struct {
	ZoneSize          int32
	FormationDistance float64
	GroupRadius       float64
	// MaxPerGroup caps group size. Zero means no cap.
	MaxPerGroup int
}

func (c Config) withDefaults() Config {
	if c.ZoneSize <= 0 {
		c.ZoneSize = DefaultZoneSize
	}
	if c.FormationDistance <= 0 {
		c.FormationDistance = DefaultFormationDistance
	}
	if c.GroupRadius <= 0 {
		c.GroupRadius = DefaultGroupRadius
	}
	return c
}

// Details is the map metadata of a private room.
type Details struct {
	MapURL string
	Policy int
	Tags   []string
}

// Room is the authoritative state of one map instance.
type Room struct {
	id       ID
	details  Details
	cfg      Config
	notifier Notifier
	logger   *slog.Logger

	nextUserID  int32
	nextGroupID int32
	users       map[int32]*User
	byUUID      map[string]*User
	groups      map[int32]*Group
	items       map[int32]*structpb.Value
	admins      map[Admin]struct{}
	grid        *grid
	closing     bool
}

// New creates an empty room.
func New(id ID, details Details, cfg Config, n Notifier, logger *slog.Logger) *Room {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Room{
		id:       id,
		details:  details,
		cfg:      cfg,
		notifier: n,
		logger:   logger.With("room_id", id.Raw),
		users:    make(map[int32]*User),
		byUUID:   make(map[string]*User),
		groups:   make(map[int32]*Group),
		items:    make(map[int32]*structpb.Value),
		admins:   make(map[Admin]struct{}),
		grid:     newGrid(cfg.ZoneSize, n),
	}
}

func (r *Room) ID() ID           { return r.id }
func (r *Room) Details() Details { return r.details }
func (r *Room) Config() Config   { return r.cfg }

// Join registers a user from its join request.
func (r *Room) Join(conn Conn, req *messages.JoinRoomMessage) (*User, error) {
	if r.closing {
		return nil, ErrRoomClosing
	}

	r.nextUserID++
	u := &User{
		ID:              r.nextUserID,
		UUID:            req.UserUUID,
		Name:            req.Name,
		IPAddress:       req.IPAddress,
		CharacterLayers: req.CharacterLayers,
		Tags:            req.Tags,
		conn:            conn,
		position:        req.Position,
	}
	r.users[u.ID] = u
	r.byUUID[u.UUID] = u

	r.grid.enter(u)
	r.notifier.Joined(u, r.ItemStates())
	r.updateUserGroup(u)

	for admin := range r.admins {
		admin.SendAdmin(memberJoin(u))
	}
	r.logger.Debug("user joined", "user_id", u.ID, "user_uuid", u.UUID)
	return u, nil
}

// Leave removes a user. Calling it twice is harmless.
func (r *Room) Leave(u *User) {
	if u.left {
		return
	}
	u.left = true

	if u.group != nil {
		r.leaveGroup(u)
	}
	delete(r.users, u.ID)
	if r.byUUID[u.UUID] == u {
		delete(r.byUUID, u.UUID)
	}
	r.grid.leave(u)
	r.notifier.Left(u)

	for admin := range r.admins {
		admin.SendAdmin(memberLeave(u))
	}
	r.logger.Debug("user left", "user_id", u.ID, "user_uuid", u.UUID)
}

// UpdatePosition moves a user and re-evaluates its group.
func (r *Room) UpdatePosition(u *User, pos geometry.Position) {
	if u.left {
		return
	}
	u.position = pos
	r.grid.move(u)

	if u.silent {
		return
	}
	if g := u.group; g != nil && g.recompute() {
		r.grid.move(g)
	}
	r.updateUserGroup(u)
}

// SetSilent toggles whether a user can be grouped.
func (r *Room) SetSilent(u *User, silent bool) {
	if u.left || u.silent == silent {
		return
	}
	u.silent = silent
	if silent {
		if u.group != nil {
			r.leaveGroup(u)
		}
		return
	}
	r.updateUserGroup(u)
}

func (r *Room) updateUserGroup(u *User) {
	if u.silent {
		return
	}

	if g := u.group; g != nil {
		if geometry.Distance(u.x(), u.y(), g.x, g.y) > r.cfg.GroupRadius {
			r.leaveGroup(u)
		}
		return
	}

	peer, group := r.searchClosest(u)
	switch {
	case group != nil:
		r.joinGroup(group, u)
	case peer != nil:
		r.nextGroupID++
		g := &Group{id: r.nextGroupID}
		r.groups[g.id] = g
		g.join(peer, r.notifier)
		g.join(u, r.notifier)
		r.grid.enter(g)
		r.logger.Debug("group created", "group_id", g.id, "user_id", u.ID, "peer_id", peer.ID)
	}
}

func (r *Room) joinGroup(g *Group, u *User) {
	g.join(u, r.notifier)
	r.grid.move(g)
}

// leaveGroup removes u from its group and dissolves groups left with a
// single member.
func (r *Room) leaveGroup(u *User) {
	g := u.group
	if g == nil {
		return
	}
	g.leave(u, r.notifier)

	if g.Size() > 1 {
		r.grid.move(g)
		return
	}

	r.grid.leave(g)
	for _, member := range g.Members() {
		g.leave(member, r.notifier)
	}
	g.deleted = true
	delete(r.groups, g.id)
	r.logger.Debug("group dissolved", "group_id", g.id)
}

// searchClosest looks at the cells around u for the nearest ungrouped
// audible user and the nearest group with room, both within formation
// distance. At most one of the results is non-nil. A group wins a tie.
func (r *Room) searchClosest(u *User) (*User, *Group) {
	var (
		bestUser  *User
		bestGroup *Group
		best      = math.Inf(1)
	)
	limit := r.cfg.FormationDistance

	r.grid.around(u.x(), u.y(), limit, func(z *zone) {
		for _, g := range z.groups {
			if r.cfg.MaxPerGroup > 0 && g.Size() >= r.cfg.MaxPerGroup {
				continue
			}
			d := geometry.Distance(u.x(), u.y(), g.x, g.y)
			if d > limit {
				continue
			}
			if d < best || (d == best && (bestGroup == nil || g.id < bestGroup.id)) {
				best, bestGroup, bestUser = d, g, nil
			}
		}
		for _, other := range z.users {
			if other == u || other.group != nil || other.silent {
				continue
			}
			d := geometry.Distance(u.x(), u.y(), other.x(), other.y())
			if d > limit {
				continue
			}
			if d < best || (d == best && bestGroup == nil && (bestUser == nil || other.ID < bestUser.ID)) {
				best, bestUser, bestGroup = d, other, nil
			}
		}
	})
	if bestGroup != nil {
		return nil, bestGroup
	}
	return bestUser, nil
}

// AddZoneListener subscribes l to cell and returns the cell's current
// content.
func (r *Room) AddZoneListener(l Listener, cell geometry.Cell) ([]*User, []*Group) {
	return r.grid.addListener(l, cell)
}

// RemoveZoneListener unsubscribes l from cell. It is a no-op when l does
// not listen to cell.
func (r *Room) RemoveZoneListener(l Listener, cell geometry.Cell) {
	r.grid.removeListener(l, cell)
}

// RemoveListener unsubscribes l from every cell.
func (r *Room) RemoveListener(l Listener) {
	r.grid.removeAll(l)
}

// AdminJoin registers an admin and replays the current members to it.
func (r *Room) AdminJoin(a Admin) {
	r.admins[a] = struct{}{}
	for _, u := range r.Users() {
		a.SendAdmin(memberJoin(u))
	}
}

func (r *Room) AdminLeave(a Admin) {
	delete(r.admins, a)
}

// Broadcast sends msg to every user of the room.
func (r *Room) Broadcast(msg *messages.ServerMessage) {
	for _, u := range r.users {
		u.Send(msg)
	}
}

func (r *Room) User(id int32) *User { return r.users[id] }

func (r *Room) UserByUUID(uuid string) *User { return r.byUUID[uuid] }

// Users returns the users ordered by id.
func (r *Room) Users() []*User {
	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b *User) int { return int(a.ID - b.ID) })
	return out
}

// Groups returns the live groups ordered by id.
func (r *Room) Groups() []*Group {
	out := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *Group) int { return int(a.id - b.id) })
	return out
}

func (r *Room) Group(id int32) *Group { return r.groups[id] }

func (r *Room) UserCount() int { return len(r.users) }

func (r *Room) ListenerCount() int { return r.grid.listenerCount() }

// IsEmpty reports whether the room has neither users nor admins.
func (r *Room) IsEmpty() bool {
	return len(r.users) == 0 && len(r.admins) == 0
}

// Close makes further joins fail with ErrRoomClosing.
func (r *Room) Close() { r.closing = true }

func (r *Room) Closing() bool { return r.closing }
