package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomJoinSeatsGuestAndStarts(t *testing.T) {
	host := newFakeConn()
	guest := newFakeConn()
	room := NewRoom("1234", host, "Ada")

	assert.False(t, room.Started())
	assert.False(t, room.IsFull())

	h, g, err := room.Join(guest, "Lin")
	require.NoError(t, err)

	assert.Equal(t, "Ada", h.Name)
	assert.Equal(t, "Lin", g.Name)
	assert.True(t, room.Started())
	assert.True(t, room.IsFull())
	assert.Equal(t, 2, room.Len())
}

func TestRoomJoinRejectsThirdPlayer(t *testing.T) {
	host := newFakeConn()
	room := NewRoom("1234", host, "Ada")

	_, _, err := room.Join(newFakeConn(), "Lin")
	require.NoError(t, err)

	_, _, err = room.Join(newFakeConn(), "Eve")
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 2, room.Len())
}

func TestRoomJoinRejectsStartedRoom(t *testing.T) {
	host := newFakeConn()
	guest := newFakeConn()
	room := NewRoom("1234", host, "Ada")

	_, _, err := room.Join(guest, "Lin")
	require.NoError(t, err)

	// Guest leaves; the room is half-empty but stays started.
	room.RemovePlayer(guest)
	require.Equal(t, 1, room.Len())

	_, _, err = room.Join(newFakeConn(), "Eve")
	assert.ErrorIs(t, err, ErrRoomStarted)
}

func TestRoomJoinRejectsEmptiedRoom(t *testing.T) {
	host := newFakeConn()
	room := NewRoom("1234", host, "Ada")

	// Host disconnects before anyone joins; the registry may not have
	// reaped the room yet.
	room.RemovePlayer(host)
	require.Equal(t, 0, room.Len())

	h, g, err := room.Join(newFakeConn(), "Lin")
	assert.ErrorIs(t, err, ErrRoomClosed)
	assert.Nil(t, h, "an emptied room must never seat a guest as its own host")
	assert.Nil(t, g)
	assert.Equal(t, 0, room.Len())
	assert.False(t, room.Started())
}

func TestRoomOpponent(t *testing.T) {
	host := newFakeConn()
	guest := newFakeConn()
	room := NewRoom("1234", host, "Ada")

	assert.Nil(t, room.Opponent(host), "solo room has no opponent")

	_, _, err := room.Join(guest, "Lin")
	require.NoError(t, err)

	opp := room.Opponent(host)
	require.NotNil(t, opp)
	assert.Equal(t, "Lin", opp.Name)

	opp = room.Opponent(guest)
	require.NotNil(t, opp)
	assert.Equal(t, "Ada", opp.Name)
}

func TestRoomRemovePlayerIsIdempotent(t *testing.T) {
	host := newFakeConn()
	room := NewRoom("1234", host, "Ada")

	room.RemovePlayer(newFakeConn()) // not a member
	assert.Equal(t, 1, room.Len())

	room.RemovePlayer(host)
	room.RemovePlayer(host)
	assert.Equal(t, 0, room.Len())
}

func TestRoomBroadcast(t *testing.T) {
	host := newFakeConn()
	guest := newFakeConn()
	room := NewRoom("1234", host, "Ada")
	_, _, err := room.Join(guest, "Lin")
	require.NoError(t, err)

	room.Broadcast(newGameStart(42), nil)
	assert.Equal(t, 1, host.countAction(t, ActionGameStart))
	assert.Equal(t, 1, guest.countAction(t, ActionGameStart))

	room.Broadcast(newOpponentWantsRematch(), host)
	assert.Equal(t, 0, host.countAction(t, ActionOpponentWantsRematch))
	assert.Equal(t, 1, guest.countAction(t, ActionOpponentWantsRematch))
}

func TestRoomBroadcastSkipsClosedConnections(t *testing.T) {
	host := newFakeConn()
	guest := newFakeConn()
	room := NewRoom("1234", host, "Ada")
	_, _, err := room.Join(guest, "Lin")
	require.NoError(t, err)

	guest.Close()
	room.Broadcast(newGameStart(42), nil)

	assert.Equal(t, 1, host.countAction(t, ActionGameStart))
	assert.Empty(t, guest.received(t))
}

func TestRoomVoteRematch(t *testing.T) {
	host := newFakeConn()
	guest := newFakeConn()
	room := NewRoom("1234", host, "Ada")
	_, _, err := room.Join(guest, "Lin")
	require.NoError(t, err)

	ready, recorded := room.VoteRematch(host)
	assert.False(t, ready)
	assert.True(t, recorded)

	// Duplicate vote from the same side never counts twice.
	ready, recorded = room.VoteRematch(host)
	assert.False(t, ready)
	assert.False(t, recorded)

	ready, recorded = room.VoteRematch(guest)
	assert.True(t, ready)
	assert.True(t, recorded)

	// The vote set was cleared; a fresh round of voting starts over.
	ready, recorded = room.VoteRematch(guest)
	assert.False(t, ready)
	assert.True(t, recorded)
}

func TestRoomRemovePlayerDiscardsVote(t *testing.T) {
	host := newFakeConn()
	guest := newFakeConn()
	room := NewRoom("1234", host, "Ada")
	_, _, err := room.Join(guest, "Lin")
	require.NoError(t, err)

	_, _ = room.VoteRematch(guest)
	room.RemovePlayer(guest)

	// Host's vote alone must not complete the departed guest's pair.
	ready, recorded := room.VoteRematch(host)
	assert.False(t, ready)
	assert.True(t, recorded)
}
