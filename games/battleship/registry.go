/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package battleship

import (
	"sync"
	"time"
)

const (
	// DefaultRoomID is used when a client connects without naming a room.
	DefaultRoomID = "lobby"

	// DefaultGameOverDelay is how long a finished room lingers so both
	// clients can render the result before their connections are closed.
	DefaultGameOverDelay = 3 * time.Second
)

// Registry maps room identifiers to rooms. It is the only state shared
// across rooms.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	gameOverDelay time.Duration
	logf          func(format string, args ...any)
}

type Option func(*Registry)

func WithGameOverDelay(d time.Duration) Option {
	return func(r *Registry) {
		r.gameOverDelay = d
	}
}

// WithLogger sets a printf-style logger for room lifecycle events.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(r *Registry) {
		if logf != nil {
			r.logf = logf
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:         make(map[string]*Room),
		gameOverDelay: DefaultGameOverDelay,
		logf:          func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join seats c in roomID, creating the room if needed. A finished room still
// waiting for its purge is replaced by a fresh one. On rejection c has already
// been sent an error notification and the caller should close it.
func (r *Registry) Join(roomID string, c Conn) (int, error) {
	if roomID == "" {
		roomID = DefaultRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if ok && room.Phase() == PhaseFinished {
		ok = false
	}
	if !ok {
		room = newRoom(roomID, r.logf)
		r.rooms[roomID] = room
		r.logf("GAMES: Created room %q", roomID)
	}

	index, err := room.join(c)
	if err != nil {
		r.logf("GAMES: Rejected join to room %q: %v", roomID, err)
		return 0, err
	}

	r.logf("GAMES: Player %d joined room %q", index, roomID)

	return index, nil
}

// Leave unbinds c from roomID and deletes the room once nobody is left.
// Connections that belong to an older room under the same identifier are
// ignored.
func (r *Registry) Leave(roomID string, c Conn) {
	if roomID == "" {
		roomID = DefaultRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return
	}

	remaining, left := room.leave(c)
	if !left {
		return
	}

	r.logf("GAMES: Player left room %q (%d remaining)", roomID, remaining)

	if remaining == 0 {
		delete(r.rooms, roomID)
		r.logf("GAMES: Deleted empty room %q", roomID)
	}
}

func (r *Registry) Get(roomID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	return room, ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Dispatch applies one inbound event from c to its room. Rejections are
// reported to c by the room and returned for logging.
func (r *Registry) Dispatch(roomID string, c Conn, ev Event) error {
	room, ok := r.Get(roomID)
	if !ok {
		return nil
	}

	switch e := ev.(type) {
	case PlaceFleetEvent:
		return room.placeFleet(c, e.Fleet)
	case ShotEvent:
		finished, err := room.shoot(c, Coordinate{X: e.X, Y: e.Y})
		if finished {
			r.schedulePurge(room)
		}
		return err
	case ChatEvent:
		room.chat(c, e.Message)
	}

	return nil
}

// schedulePurge closes a finished room's connections after the grace delay.
// The map entry is only removed if it still refers to this room.
func (r *Registry) schedulePurge(room *Room) {
	time.AfterFunc(r.gameOverDelay, func() {
		r.mu.Lock()
		if current, ok := r.rooms[room.ID]; ok && current == room {
			delete(r.rooms, room.ID)
			r.logf("GAMES: Purged finished room %q", room.ID)
		}
		r.mu.Unlock()

		room.closeAll()
	})
}

// Reap deletes rooms that have seen no activity for longer than idle and
// closes their connections. It returns the number of rooms removed.
func (r *Registry) Reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	var stale []*Room
	for id, room := range r.rooms {
		if room.LastActive().Before(cutoff) {
			delete(r.rooms, id)
			stale = append(stale, room)
		}
	}
	r.mu.Unlock()

	for _, room := range stale {
		r.logf("GAMES: Reaped idle room %q", room.ID)
		room.closeAll()
	}

	return len(stale)
}
