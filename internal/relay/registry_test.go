package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRegistryCreateRoomRegistersHost(t *testing.T) {
	g := NewRegistry()
	host := newFakeConn()

	room, err := g.CreateRoom(host, "Ada")
	require.NoError(t, err)

	assert.Len(t, room.Code(), 4)
	assert.Equal(t, 1, room.Len())
	assert.Equal(t, 1, g.Len())

	found, ok := g.Lookup(room.Code())
	require.True(t, ok)
	assert.Same(t, room, found)
}

func TestRegistryLookupUnknownCode(t *testing.T) {
	g := NewRegistry()
	_, ok := g.Lookup("0000")
	assert.False(t, ok)
}

func TestRegistryDeleteIfEmpty(t *testing.T) {
	g := NewRegistry()
	host := newFakeConn()
	room, err := g.CreateRoom(host, "Ada")
	require.NoError(t, err)

	// Occupied rooms are kept.
	g.DeleteIfEmpty(room.Code())
	assert.Equal(t, 1, g.Len())

	room.RemovePlayer(host)
	g.DeleteIfEmpty(room.Code())
	assert.Equal(t, 0, g.Len())

	// Unknown codes are a no-op.
	g.DeleteIfEmpty(room.Code())
}

func TestRegistryExhaustedCodeSpace(t *testing.T) {
	g := NewRegistry()
	// Force every draw onto one code so the second allocation can never
	// find a free slot.
	g.intn = func(int) int { return 7 }

	room, err := g.CreateRoom(newFakeConn(), "Ada")
	require.NoError(t, err)
	assert.Equal(t, "0007", room.Code())

	_, err = g.CreateRoom(newFakeConn(), "Lin")
	assert.ErrorIs(t, err, ErrNoFreeCodes)
	assert.Equal(t, 1, g.Len())
}

func TestPropertyGeneratedCodesUniqueFourDigit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := NewRegistry()
		n := rapid.IntRange(1, 300).Draw(t, "rooms")

		seen := make(map[string]bool, n)
		for i := 0; i < n; i++ {
			room, err := g.CreateRoom(newFakeConn(), "p")
			if err != nil {
				t.Fatalf("creating room %d: %v", i, err)
			}
			code := room.Code()
			if len(code) != 4 {
				t.Fatalf("code %q is not 4 characters", code)
			}
			for _, c := range code {
				if c < '0' || c > '9' {
					t.Fatalf("code %q contains non-digit %q", code, c)
				}
			}
			if seen[code] {
				t.Fatalf("code %q assigned twice", code)
			}
			seen[code] = true
		}
	})
}
