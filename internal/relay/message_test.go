package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientMessage(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"action":"join_room","name":"Lin","code":"1234"}`))
	require.NoError(t, err)
	join, ok := msg.(JoinRoom)
	require.True(t, ok)
	assert.Equal(t, "Lin", join.Name)
	assert.Equal(t, "1234", join.Code)
}

func TestDecodeClientMessageKeepsPayloadOpaque(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"action":"game_update","board":[[1,2,3]],"current":{"x":1}}`))
	require.NoError(t, err)
	update, ok := msg.(GameUpdate)
	require.True(t, ok)
	assert.JSONEq(t, `[[1,2,3]]`, string(update.Board))
	assert.JSONEq(t, `{"x":1}`, string(update.Current))
	assert.Nil(t, update.Score)
}

func TestDecodeClientMessageUnknownAction(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"action":"teleport"}`))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDecodeClientMessageMalformed(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"action":`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownAction)
}
