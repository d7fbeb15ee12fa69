/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package battleship

import (
	"sync"
	"time"
)

// Phase is a room's position in the game lifecycle. Rooms only move forward.
type Phase int

const (
	PhaseWaitingPlayers Phase = iota
	PhasePlacingFleets
	PhaseInProgress
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseWaitingPlayers:
		return "waiting_players"
	case PhasePlacingFleets:
		return "placing_fleets"
	case PhaseInProgress:
		return "in_progress"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Slot is one player's seat. Index is assigned at join and never changes.
type Slot struct {
	Index        int
	Fleet        Fleet
	HitsReceived map[Coordinate]struct{} // cells of this fleet the opponent has hit
	Conn         Conn
}

// Room is the state machine for one game. Every exported method and every
// handler holds mu for its whole duration, so events for a room are applied
// one at a time.
type Room struct {
	ID string

	mu         sync.Mutex
	slots      [2]*Slot
	phase      Phase
	turn       int
	createdAt  time.Time
	lastActive time.Time

	logf func(format string, args ...any)
}

func newRoom(id string, logf func(string, ...any)) *Room {
	now := time.Now()
	return &Room{
		ID:         id,
		createdAt:  now,
		lastActive: now,
		logf:       logf,
	}
}

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Turn is the slot allowed to fire. It is only meaningful in progress.
func (r *Room) Turn() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turn
}

// Players is the number of occupied slots.
func (r *Room) Players() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupiedLocked()
}

// PlayerIndex reports the slot bound to c.
func (r *Room) PlayerIndex(c Conn) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.slotForLocked(c); s != nil {
		return s.Index, true
	}
	return 0, false
}

// Remaining is the number of unhit cells left in a slot's fleet.
func (r *Room) Remaining(index int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index > 1 || r.slots[index] == nil {
		return 0
	}
	return r.slots[index].Fleet.Remaining()
}

func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

func (r *Room) occupiedLocked() int {
	n := 0
	for _, s := range r.slots {
		if s != nil {
			n++
		}
	}
	return n
}

func (r *Room) slotForLocked(c Conn) *Slot {
	for _, s := range r.slots {
		if s != nil && s.Conn == c {
			return s
		}
	}
	return nil
}

func (r *Room) broadcastLocked(n Notification) {
	for _, s := range r.slots {
		if s != nil {
			_ = s.Conn.Send(n)
		}
	}
}

func reject(c Conn, err error) error {
	_ = c.Send(errorMessage(err))
	return err
}

func (r *Room) join(c Conn) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActive = time.Now()

	if r.occupiedLocked() == len(r.slots) {
		return 0, reject(c, ErrRoomFull)
	}
	if r.phase >= PhaseInProgress {
		return 0, reject(c, ErrGameInProgress)
	}

	index := 0
	if r.slots[0] != nil {
		index = 1
	}
	r.slots[index] = &Slot{
		Index:        index,
		HitsReceived: make(map[Coordinate]struct{}),
		Conn:         c,
	}

	_ = c.Send(JoinedMessage{Type: KindJoined, PlayerIndex: index})

	if r.occupiedLocked() == len(r.slots) {
		r.broadcastLocked(SimpleMessage{Type: KindBothConnected})
		if r.phase == PhaseWaitingPlayers {
			r.phase = PhasePlacingFleets
		}
	}

	return index, nil
}

func (r *Room) placeFleet(c Conn, specs []ShipSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.slotForLocked(c)
	if slot == nil {
		return nil
	}

	r.lastActive = time.Now()

	if r.phase != PhaseWaitingPlayers && r.phase != PhasePlacingFleets {
		return reject(c, ErrFleetLocked)
	}

	slot.Fleet = NewFleet(specs)

	if r.readyLocked() {
		r.phase = PhaseInProgress
		r.turn = 0
		r.broadcastLocked(TurnMessage{Type: KindGameStart, Turn: r.turn})
		r.logf("GAMES: Room %q started", r.ID)
		return nil
	}

	_ = c.Send(SimpleMessage{Type: KindWaitingOpponent})

	return nil
}

// readyLocked reports whether both seats are taken and both fleets placed.
func (r *Room) readyLocked() bool {
	if r.phase != PhasePlacingFleets {
		return false
	}
	for _, s := range r.slots {
		if s == nil || s.Fleet == nil {
			return false
		}
	}
	return true
}

// shoot resolves a shot and reports whether it ended the game.
func (r *Room) shoot(c Conn, at Coordinate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.slotForLocked(c)
	if slot == nil {
		return false, nil
	}

	r.lastActive = time.Now()

	if r.phase != PhaseInProgress {
		return false, reject(c, ErrGameNotInProgress)
	}

	shooter := slot.Index
	opponent := r.slots[1-shooter]

	res, err := ResolveShot(opponent, at, shooter, r.turn)
	if err != nil {
		return false, reject(c, err)
	}

	result := ShotResultMessage{
		Type:    KindShotResult,
		Shooter: shooter,
		X:       at.X,
		Y:       at.Y,
		Hit:     res.Hit,
	}
	if res.Sunk != "" {
		sunk := res.Sunk
		result.Sunk = &sunk
	}
	r.broadcastLocked(result)

	if res.Win {
		r.phase = PhaseFinished
		r.broadcastLocked(GameOverMessage{Type: KindGameOver, Winner: shooter})
		r.logf("GAMES: Player %d won room %q", shooter, r.ID)
		return true, nil
	}

	if !res.Hit {
		r.turn = 1 - shooter
	}
	r.broadcastLocked(TurnMessage{Type: KindTurn, Turn: r.turn})

	return false, nil
}

func (r *Room) chat(c Conn, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.slotForLocked(c)
	if slot == nil {
		return
	}

	r.lastActive = time.Now()

	if opponent := r.slots[1-slot.Index]; opponent != nil {
		_ = opponent.Conn.Send(ChatMessage{Type: KindChat, From: slot.Index, Message: message})
	}
}

// leave frees the slot bound to c and returns how many players remain.
// The other slot keeps its index.
func (r *Room) leave(c Conn) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.slotForLocked(c)
	if slot == nil {
		return r.occupiedLocked(), false
	}

	r.lastActive = time.Now()
	r.slots[slot.Index] = nil

	if r.phase != PhaseFinished {
		r.broadcastLocked(SimpleMessage{Type: KindOpponentLeft})
	}

	return r.occupiedLocked(), true
}

// closeAll closes every bound connection. Slots are left for leave to clear
// as each connection's reader unwinds.
func (r *Room) closeAll() {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.slots))
	for _, s := range r.slots {
		if s != nil {
			conns = append(conns, s.Conn)
		}
	}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
