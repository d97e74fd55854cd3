package gateway

import (
	"context"
	"log/slog"

	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
)

// zoneWatcher is a session as seen by the mirrors of the cells it watches.
type zoneWatcher interface {
	ownUserID() int32
	emit(sub *messages.SubMessage)
	closeWith(code int, reason string)
}

// zoneStream is the upstream end of one zone subscription.
type zoneStream interface {
	Receive() bool
	Msg() *messages.ZoneBatch
	Err() error
	Close() error
}

// ZoneMirror is the gateway copy of one cell. Every session of the process
// watching the cell shares it and its single upstream stream. All fields
// except cancel and done are guarded by the dispatcher lock.
type ZoneMirror struct {
	cell       geometry.Cell
	dispatcher *PositionDispatcher
	logger     *slog.Logger

	watchers map[zoneWatcher]struct{}
	users    map[int32]*messages.UserJoinedZoneMessage
	groups   map[int32]*messages.GroupUpdateZoneMessage
	closed   bool

	cancel context.CancelFunc
	done   chan struct{}
}

func newZoneMirror(d *PositionDispatcher, cell geometry.Cell) *ZoneMirror {
	return &ZoneMirror{
		cell:       cell,
		dispatcher: d,
		logger:     d.logger.With("zone_x", cell.X, "zone_y", cell.Y),
		watchers:   make(map[zoneWatcher]struct{}),
		users:      make(map[int32]*messages.UserJoinedZoneMessage),
		groups:     make(map[int32]*messages.GroupUpdateZoneMessage),
		done:       make(chan struct{}),
	}
}

// open starts the upstream subscription.
func (m *ZoneMirror) open() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
}

func (m *ZoneMirror) run(ctx context.Context) {
	defer close(m.done)

	req := &messages.ZoneRequest{RoomID: m.dispatcher.roomID, X: m.cell.X, Y: m.cell.Y}
	stream, err := m.dispatcher.listen(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			m.dispatcher.mirrorFailed(m, err)
		}
		return
	}
	defer stream.Close()

	for stream.Receive() {
		m.dispatcher.apply(m, stream.Msg())
	}
	if ctx.Err() != nil {
		return
	}
	m.dispatcher.mirrorFailed(m, stream.Err())
}

// close stops the upstream stream. Must be called with the dispatcher lock
// held.
func (m *ZoneMirror) close() {
	if m.closed {
		return
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
}

// startListening replays the cell content to w and adds it.
func (m *ZoneMirror) startListening(w zoneWatcher) {
	own := w.ownUserID()
	for id, u := range m.users {
		if id != own {
			w.emit(userJoined(u))
		}
	}
	for _, g := range m.groups {
		w.emit(groupUpdate(g))
	}
	m.watchers[w] = struct{}{}
}

// stopListening makes w forget the cell content and removes it.
func (m *ZoneMirror) stopListening(w zoneWatcher) {
	own := w.ownUserID()
	for id := range m.users {
		if id != own {
			w.emit(messages.WrapSub(&messages.UserLeftMessage{UserID: id}))
		}
	}
	for id := range m.groups {
		w.emit(messages.WrapSub(&messages.GroupDeleteMessage{GroupID: id}))
	}
	delete(m.watchers, w)
}

// apply folds one upstream event into the mirror and fans it out. A
// watcher that also watches the cell an entity came from or goes to
// already knows it, so it gets a move instead of an enter and nothing on
// leave.
func (m *ZoneMirror) apply(ev *messages.ZoneEvent, watches func(zoneWatcher, geometry.Cell) bool) {
	payload, err := ev.Payload()
	if err != nil {
		m.logger.Warn("invalid zone event", "error", err)
		return
	}

	switch p := payload.(type) {
	case *messages.UserJoinedZoneMessage:
		m.users[p.UserID] = p
		for w := range m.watchers {
			if w.ownUserID() == p.UserID {
				continue
			}
			if p.FromZone != nil && watches(w, *p.FromZone) {
				w.emit(messages.WrapSub(&messages.UserMovedMessage{UserID: p.UserID, Position: p.Position}))
				continue
			}
			w.emit(userJoined(p))
		}

	case *messages.UserMovedMessage:
		u, ok := m.users[p.UserID]
		if !ok {
			m.logger.Warn("move received for unknown user", "user_id", p.UserID)
			return
		}
		u.Position = p.Position
		for w := range m.watchers {
			if w.ownUserID() != p.UserID {
				w.emit(messages.WrapSub(&messages.UserMovedMessage{UserID: p.UserID, Position: p.Position}))
			}
		}

	case *messages.UserLeftZoneMessage:
		delete(m.users, p.UserID)
		for w := range m.watchers {
			if w.ownUserID() == p.UserID {
				continue
			}
			if p.ToZone != nil && watches(w, *p.ToZone) {
				continue
			}
			w.emit(messages.WrapSub(&messages.UserLeftMessage{UserID: p.UserID}))
		}

	case *messages.GroupUpdateZoneMessage:
		m.groups[p.GroupID] = p
		for w := range m.watchers {
			w.emit(groupUpdate(p))
		}

	case *messages.GroupLeftZoneMessage:
		delete(m.groups, p.GroupID)
		for w := range m.watchers {
			if p.ToZone != nil && watches(w, *p.ToZone) {
				continue
			}
			w.emit(messages.WrapSub(&messages.GroupDeleteMessage{GroupID: p.GroupID}))
		}
	}
}

func userJoined(u *messages.UserJoinedZoneMessage) *messages.SubMessage {
	return messages.WrapSub(&messages.UserJoinedMessage{
		UserID:          u.UserID,
		Name:            u.Name,
		CharacterLayers: u.CharacterLayers,
		Position:        u.Position,
	})
}

func groupUpdate(g *messages.GroupUpdateZoneMessage) *messages.SubMessage {
	return messages.WrapSub(&messages.GroupUpdateMessage{
		GroupID:   g.GroupID,
		Position:  g.Position,
		GroupSize: g.GroupSize,
	})
}
