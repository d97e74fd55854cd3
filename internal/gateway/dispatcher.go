package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/davidmehren/workadventure/internal/geometry"
	"github.com/davidmehren/workadventure/internal/messages"
)

// Close reasons sent to browsers when the back tier goes away.
const (
	CloseLostBack  = "Connection lost to back server"
	CloseErrorBack = "Error while connecting to back server"
)

// listenFunc opens the upstream subscription of one cell.
type listenFunc func(ctx context.Context, req *messages.ZoneRequest) (zoneStream, error)

// PositionDispatcher maps the viewports of the sessions of one room onto
// shared zone mirrors.
type PositionDispatcher struct {
	roomID   string
	zoneSize int32
	maxCells int64
	listen   listenFunc
	logger   *slog.Logger

	mu      sync.Mutex
	mirrors map[geometry.Cell]*ZoneMirror
	watched map[zoneWatcher]map[geometry.Cell]struct{}
}

// NewPositionDispatcher creates a dispatcher for roomID. A viewport covering
// more than maxCells cells is ignored; zero disables the cap.
func NewPositionDispatcher(roomID string, zoneSize int32, maxCells int64, listen listenFunc, logger *slog.Logger) *PositionDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionDispatcher{
		roomID:   roomID,
		zoneSize: zoneSize,
		maxCells: maxCells,
		listen:   listen,
		logger:   logger.With("component", "dispatcher", "room_id", roomID),
		mirrors:  make(map[geometry.Cell]*ZoneMirror),
		watched:  make(map[zoneWatcher]map[geometry.Cell]struct{}),
	}
}

// SetViewport makes w watch exactly the cells covered by vp. Cells no
// longer covered are left before newly covered ones are entered.
func (d *PositionDispatcher) SetViewport(w zoneWatcher, vp geometry.Viewport) {
	if !vp.Valid() {
		d.logger.Warn("ignoring invalid viewport",
			"top", vp.Top, "bottom", vp.Bottom, "left", vp.Left, "right", vp.Right)
		return
	}
	if n := vp.CellCount(d.zoneSize); d.maxCells > 0 && n > d.maxCells {
		d.logger.Warn("ignoring oversized viewport", "cells", n, "max_cells", d.maxCells,
			"top", vp.Top, "bottom", vp.Bottom, "left", vp.Left, "right", vp.Right)
		return
	}

	next := make(map[geometry.Cell]struct{})
	for _, cell := range vp.Cells(d.zoneSize) {
		next[cell] = struct{}{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	current := d.watched[w]
	for cell := range current {
		if _, keep := next[cell]; !keep {
			d.stopLocked(w, cell)
		}
	}
	for cell := range next {
		if _, known := current[cell]; !known {
			d.startLocked(w, cell)
		}
	}
	d.watched[w] = next
}

func (d *PositionDispatcher) startLocked(w zoneWatcher, cell geometry.Cell) {
	m, ok := d.mirrors[cell]
	if !ok {
		m = newZoneMirror(d, cell)
		d.mirrors[cell] = m
		m.open()
	}
	m.startListening(w)
}

func (d *PositionDispatcher) stopLocked(w zoneWatcher, cell geometry.Cell) {
	m, ok := d.mirrors[cell]
	if !ok {
		return
	}
	m.stopListening(w)
	if len(m.watchers) == 0 {
		m.close()
		delete(d.mirrors, cell)
	}
}

// RemoveSession drops every subscription of w without notifying it.
func (d *PositionDispatcher) RemoveSession(w zoneWatcher) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for cell := range d.watched[w] {
		m, ok := d.mirrors[cell]
		if !ok {
			continue
		}
		delete(m.watchers, w)
		if len(m.watchers) == 0 {
			m.close()
			delete(d.mirrors, cell)
		}
	}
	delete(d.watched, w)
}

func (d *PositionDispatcher) watches(w zoneWatcher, cell geometry.Cell) bool {
	_, ok := d.watched[w][cell]
	return ok
}

func (d *PositionDispatcher) apply(m *ZoneMirror, batch *messages.ZoneBatch) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m.closed {
		return
	}
	for _, ev := range batch.Events {
		m.apply(ev, d.watches)
	}
}

// mirrorFailed tears down a mirror whose upstream ended on its own and
// closes every session that relied on it.
func (d *PositionDispatcher) mirrorFailed(m *ZoneMirror, err error) {
	d.mu.Lock()
	if m.closed || d.mirrors[m.cell] != m {
		d.mu.Unlock()
		return
	}
	m.close()
	delete(d.mirrors, m.cell)

	watchers := make([]zoneWatcher, 0, len(m.watchers))
	for w := range m.watchers {
		watchers = append(watchers, w)
		delete(d.watched[w], m.cell)
	}
	d.mu.Unlock()

	reason := CloseLostBack
	if err != nil {
		reason = CloseErrorBack
		m.logger.Warn("zone stream failed", "error", err, "sessions", len(watchers))
	} else {
		m.logger.Warn("zone stream ended", "sessions", len(watchers))
	}
	for _, w := range watchers {
		w.closeWith(websocket.CloseInternalServerErr, reason)
	}
}

// Mirrors returns the number of open upstream subscriptions.
func (d *PositionDispatcher) Mirrors() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mirrors)
}

// Close stops every mirror.
func (d *PositionDispatcher) Close() {
	d.mu.Lock()
	mirrors := make([]*ZoneMirror, 0, len(d.mirrors))
	for cell, m := range d.mirrors {
		m.close()
		mirrors = append(mirrors, m)
		delete(d.mirrors, cell)
	}
	d.watched = make(map[zoneWatcher]map[geometry.Cell]struct{})
	d.mu.Unlock()

	for _, m := range mirrors {
		<-m.done
	}
}
