package battleship

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	name   string
	msgs   []Notification
	closed bool
}

func newFakeConn(name string) *fakeConn {
	return &fakeConn{name: name}
}

func (c *fakeConn) Send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, n)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain returns and forgets everything received so far.
func (c *fakeConn) drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.msgs
	c.msgs = nil
	return msgs
}

func kinds(msgs []Notification) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Kind())
	}
	return out
}

// startedGame seats a and b in roomID with single-destroyer fleets at
// (0,0)-(0,1) and (5,5)-(5,6) and clears their inboxes.
func startedGame(t *testing.T, reg *Registry, roomID string) (a, b *fakeConn) {
	t.Helper()

	a, b = newFakeConn("a"), newFakeConn("b")

	idx, err := reg.Join(roomID, a)
	require.NoError(t, err)
	require.Equal(t, 0, idx)

	idx, err = reg.Join(roomID, b)
	require.NoError(t, err)
	require.Equal(t, 1, idx)

	require.NoError(t, reg.Dispatch(roomID, a, PlaceFleetEvent{Fleet: destroyerAt(Coordinate{0, 0}, Coordinate{0, 1})}))
	require.NoError(t, reg.Dispatch(roomID, b, PlaceFleetEvent{Fleet: destroyerAt(Coordinate{5, 5}, Coordinate{5, 6})}))

	room, ok := reg.Get(roomID)
	require.True(t, ok)
	require.Equal(t, PhaseInProgress, room.Phase())

	a.drain()
	b.drain()

	return a, b
}

func TestRegistryJoin(t *testing.T) {
	reg := NewRegistry()
	a, b := newFakeConn("a"), newFakeConn("b")

	idx, err := reg.Join("X1", a)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, []Notification{JoinedMessage{Type: KindJoined, PlayerIndex: 0}}, a.drain())

	room, ok := reg.Get("X1")
	require.True(t, ok)
	assert.Equal(t, PhaseWaitingPlayers, room.Phase())

	idx, err = reg.Join("X1", b)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, PhasePlacingFleets, room.Phase())

	assert.Equal(t, []string{KindBothConnected}, kinds(a.drain()))
	assert.Equal(t, []string{KindJoined, KindBothConnected}, kinds(b.drain()))
}

func TestRegistryJoinDefaultRoom(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Join("", newFakeConn("a"))
	require.NoError(t, err)

	_, ok := reg.Get(DefaultRoomID)
	assert.True(t, ok)
}

func TestRegistryRoomFull(t *testing.T) {
	reg := NewRegistry()
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")

	_, err := reg.Join("X1", a)
	require.NoError(t, err)
	_, err = reg.Join("X1", b)
	require.NoError(t, err)

	_, err = reg.Join("X1", c)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, []Notification{errorMessage(ErrRoomFull)}, c.drain())

	room, _ := reg.Get("X1")
	assert.Equal(t, 2, room.Players())
	idx, ok := room.PlayerIndex(a)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	idx, ok = room.PlayerIndex(b)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = room.PlayerIndex(c)
	assert.False(t, ok)
}

func TestRegistryRoomsAreIndependent(t *testing.T) {
	reg := NewRegistry()

	for _, id := range []string{"A", "B", "C"} {
		_, err := reg.Join(id, newFakeConn(id))
		require.NoError(t, err)
	}

	assert.Equal(t, 3, reg.Count())
}

func TestRegistryLeaveKeepsIndex(t *testing.T) {
	reg := NewRegistry()
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")

	_, err := reg.Join("X1", a)
	require.NoError(t, err)
	_, err = reg.Join("X1", b)
	require.NoError(t, err)
	b.drain()

	reg.Leave("X1", a)

	room, ok := reg.Get("X1")
	require.True(t, ok)
	idx, ok := room.PlayerIndex(b)
	require.True(t, ok)
	assert.Equal(t, 1, idx, "remaining player keeps its slot")
	assert.Equal(t, []string{KindOpponentLeft}, kinds(b.drain()))
	assert.Equal(t, PhasePlacingFleets, room.Phase(), "phase never regresses")

	idx, err = reg.Join("X1", c)
	require.NoError(t, err)
	assert.Equal(t, 0, idx, "vacated slot is refilled")
	assert.Equal(t, []string{KindBothConnected}, kinds(b.drain()))
}

func TestRegistryLeaveDeletesEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	a, b := startedGame(t, reg, "X1")

	reg.Leave("X1", b)
	assert.Equal(t, []string{KindOpponentLeft}, kinds(a.drain()))

	// Nobody to fire at any more.
	err := reg.Dispatch("X1", a, ShotEvent{X: 5, Y: 5})
	assert.ErrorIs(t, err, ErrOpponentNotReady)

	reg.Leave("X1", a)
	_, ok := reg.Get("X1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Count())
}

func TestRegistryLeaveUnknownConn(t *testing.T) {
	reg := NewRegistry()
	a := newFakeConn("a")

	_, err := reg.Join("X1", a)
	require.NoError(t, err)

	reg.Leave("X1", newFakeConn("stranger"))
	reg.Leave("nowhere", a)

	room, ok := reg.Get("X1")
	require.True(t, ok)
	assert.Equal(t, 1, room.Players())
}

func TestRegistryJoinInProgressVacancy(t *testing.T) {
	reg := NewRegistry()
	_, b := startedGame(t, reg, "X1")

	reg.Leave("X1", b)

	late := newFakeConn("late")
	_, err := reg.Join("X1", late)
	assert.ErrorIs(t, err, ErrGameInProgress)
	assert.Equal(t, []string{KindError}, kinds(late.drain()))
}

func TestRegistryGameOverPurge(t *testing.T) {
	reg := NewRegistry(WithGameOverDelay(20 * time.Millisecond))
	a, b := startedGame(t, reg, "X1")

	require.NoError(t, reg.Dispatch("X1", a, ShotEvent{X: 5, Y: 5}))
	require.NoError(t, reg.Dispatch("X1", a, ShotEvent{X: 5, Y: 6}))

	over := GameOverMessage{Type: KindGameOver, Winner: 0}
	assert.Contains(t, a.drain(), Notification(over))
	assert.Contains(t, b.drain(), Notification(over))

	// Finished rooms accept no more shots or fleets.
	assert.ErrorIs(t, reg.Dispatch("X1", b, ShotEvent{X: 0, Y: 0}), ErrGameNotInProgress)
	assert.ErrorIs(t, reg.Dispatch("X1", b, PlaceFleetEvent{}), ErrFleetLocked)

	require.Eventually(t, func() bool {
		_, ok := reg.Get("X1")
		return !ok && a.isClosed() && b.isClosed()
	}, time.Second, 5*time.Millisecond)

	c := newFakeConn("c")
	idx, err := reg.Join("X1", c)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	room, _ := reg.Get("X1")
	assert.Equal(t, PhaseWaitingPlayers, room.Phase())
}

func TestRegistryJoinReplacesFinishedRoom(t *testing.T) {
	reg := NewRegistry(WithGameOverDelay(50 * time.Millisecond))
	a, _ := startedGame(t, reg, "X1")

	require.NoError(t, reg.Dispatch("X1", a, ShotEvent{X: 5, Y: 5}))
	require.NoError(t, reg.Dispatch("X1", a, ShotEvent{X: 5, Y: 6}))

	finished, _ := reg.Get("X1")

	c := newFakeConn("c")
	idx, err := reg.Join("X1", c)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	fresh, ok := reg.Get("X1")
	require.True(t, ok)
	assert.NotSame(t, finished, fresh)

	// The old room's timer must leave the new room alone.
	require.Eventually(t, a.isClosed, time.Second, 5*time.Millisecond)
	still, ok := reg.Get("X1")
	require.True(t, ok)
	assert.Same(t, fresh, still)
	assert.False(t, c.isClosed())
}

func TestRegistryReap(t *testing.T) {
	reg := NewRegistry()
	a := newFakeConn("a")

	_, err := reg.Join("X1", a)
	require.NoError(t, err)

	assert.Equal(t, 0, reg.Reap(time.Hour))
	assert.Equal(t, 1, reg.Count())

	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, reg.Reap(time.Millisecond))
	assert.Equal(t, 0, reg.Count())
	assert.True(t, a.isClosed())
}

func TestRegistryDispatchUnknownRoom(t *testing.T) {
	reg := NewRegistry()
	a := newFakeConn("a")

	assert.NoError(t, reg.Dispatch("nowhere", a, ShotEvent{}))
	assert.Empty(t, a.drain())
}

func TestRegistryLogger(t *testing.T) {
	var lines []string
	reg := NewRegistry(WithLogger(func(format string, args ...any) {
		lines = append(lines, format)
	}))

	_, err := reg.Join("X1", newFakeConn("a"))
	require.NoError(t, err)

	assert.Contains(t, lines, "GAMES: Created room %q")
}
