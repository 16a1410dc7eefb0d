package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client action identifiers.
const (
	ActionCreateRoom     = "create_room"
	ActionJoinRoom       = "join_room"
	ActionGameUpdate     = "game_update"
	ActionSendGarbage    = "send_garbage"
	ActionGameOver       = "game_over"
	ActionRequestRematch = "request_rematch"
)

// Server action identifiers.
const (
	ActionRoomCreated          = "room_created"
	ActionRoomJoined           = "room_joined"
	ActionError                = "error"
	ActionOpponentJoined       = "opponent_joined"
	ActionGameStart            = "game_start"
	ActionOpponentUpdate       = "opponent_update"
	ActionReceiveGarbage       = "receive_garbage"
	ActionOpponentLost         = "opponent_lost"
	ActionYouLost              = "you_lost"
	ActionOpponentWantsRematch = "opponent_wants_rematch"
	ActionOpponentDisconnected = "opponent_disconnected"
)

// ErrUnknownAction marks a well-formed frame whose action has no handler.
// Such frames are ignored rather than rejected.
var ErrUnknownAction = errors.New("unknown action")

// ClientMessage is the decoded form of one inbound frame. The envelope is
// decoded exactly once at the boundary; handlers switch over the concrete
// variant types below.
type ClientMessage interface {
	clientMessage()
}

// CreateRoom asks the server to allocate a room with the sender as host.
type CreateRoom struct {
	Name string
}

// JoinRoom asks the server to seat the sender as guest in an existing room.
type JoinRoom struct {
	Name string
	Code string
}

// GameUpdate carries one player's board state, relayed opaquely to the
// opponent. Fields are raw JSON; the relay never inspects their contents.
type GameUpdate struct {
	Board    json.RawMessage
	Score    json.RawMessage
	Lines    json.RawMessage
	Level    json.RawMessage
	Current  json.RawMessage
	NextType json.RawMessage
}

// SendGarbage routes cleared-line garbage to the opponent.
type SendGarbage struct {
	Count int
}

// GameOver reports that the sender's board topped out.
type GameOver struct{}

// RequestRematch records the sender's vote for another round.
type RequestRematch struct{}

func (CreateRoom) clientMessage()     {}
func (JoinRoom) clientMessage()       {}
func (GameUpdate) clientMessage()     {}
func (SendGarbage) clientMessage()    {}
func (GameOver) clientMessage()       {}
func (RequestRematch) clientMessage() {}

// envelope is the superset of all client frame fields. Absent fields stay
// zero-valued, which matches the protocol defaults (empty name, count 0).
type envelope struct {
	Action   string          `json:"action"`
	Name     string          `json:"name"`
	Code     string          `json:"code"`
	Count    int             `json:"count"`
	Board    json.RawMessage `json:"board"`
	Score    json.RawMessage `json:"score"`
	Lines    json.RawMessage `json:"lines"`
	Level    json.RawMessage `json:"level"`
	Current  json.RawMessage `json:"current"`
	NextType json.RawMessage `json:"nextType"`
}

// DecodeClientMessage parses one inbound text frame into its tagged
// variant.
//
// Postcondition: Returns a ClientMessage, ErrUnknownAction for a
// well-formed frame with an unrecognized action, or a wrapped error for
// malformed JSON.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	switch env.Action {
	case ActionCreateRoom:
		return CreateRoom{Name: env.Name}, nil
	case ActionJoinRoom:
		return JoinRoom{Name: env.Name, Code: env.Code}, nil
	case ActionGameUpdate:
		return GameUpdate{
			Board:    env.Board,
			Score:    env.Score,
			Lines:    env.Lines,
			Level:    env.Level,
			Current:  env.Current,
			NextType: env.NextType,
		}, nil
	case ActionSendGarbage:
		return SendGarbage{Count: env.Count}, nil
	case ActionGameOver:
		return GameOver{}, nil
	case ActionRequestRematch:
		return RequestRematch{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
}

// Outbound message shapes. Field names and nesting are wire-exact.

// RoomCreated confirms room allocation to the host.
type RoomCreated struct {
	Action string `json:"action"`
	Code   string `json:"code"`
	Name   string `json:"name"`
}

// RoomJoined confirms seating to the guest.
type RoomJoined struct {
	Action string `json:"action"`
	Code   string `json:"code"`
	Name   string `json:"name"`
}

// ErrorMessage reports a user-facing rejection to one connection.
type ErrorMessage struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// OpponentJoined tells each participant who they are matched against.
type OpponentJoined struct {
	Action      string `json:"action"`
	Opponent    string `json:"opponent"`
	You         string `json:"you"`
	PlayerIndex int    `json:"playerIndex"`
}

// GameStart carries the shared piece-sequence seed to both participants.
type GameStart struct {
	Action string `json:"action"`
	Seed   int64  `json:"seed"`
}

// OpponentUpdate is the relayed form of GameUpdate.
type OpponentUpdate struct {
	Action   string          `json:"action"`
	Board    json.RawMessage `json:"board"`
	Score    json.RawMessage `json:"score"`
	Lines    json.RawMessage `json:"lines"`
	Level    json.RawMessage `json:"level"`
	Current  json.RawMessage `json:"current"`
	NextType json.RawMessage `json:"nextType"`
}

// ReceiveGarbage delivers garbage lines sent by the opponent.
type ReceiveGarbage struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// OpponentLost tells the surviving player that they won.
type OpponentLost struct {
	Action string `json:"action"`
	Winner string `json:"winner"`
}

// YouLost confirms defeat to the player whose board topped out.
type YouLost struct {
	Action string `json:"action"`
	Winner string `json:"winner"`
}

// OpponentWantsRematch notifies a participant of the opponent's pending vote.
type OpponentWantsRematch struct {
	Action string `json:"action"`
}

// OpponentDisconnected notifies the remaining participant of a departure.
type OpponentDisconnected struct {
	Action string `json:"action"`
}

func newRoomCreated(code, name string) RoomCreated {
	return RoomCreated{Action: ActionRoomCreated, Code: code, Name: name}
}

func newRoomJoined(code, name string) RoomJoined {
	return RoomJoined{Action: ActionRoomJoined, Code: code, Name: name}
}

func newError(message string) ErrorMessage {
	return ErrorMessage{Action: ActionError, Message: message}
}

func newOpponentJoined(opponent, you string, playerIndex int) OpponentJoined {
	return OpponentJoined{Action: ActionOpponentJoined, Opponent: opponent, You: you, PlayerIndex: playerIndex}
}

func newGameStart(seed int64) GameStart {
	return GameStart{Action: ActionGameStart, Seed: seed}
}

func newOpponentUpdate(u GameUpdate) OpponentUpdate {
	return OpponentUpdate{
		Action:   ActionOpponentUpdate,
		Board:    u.Board,
		Score:    u.Score,
		Lines:    u.Lines,
		Level:    u.Level,
		Current:  u.Current,
		NextType: u.NextType,
	}
}

func newReceiveGarbage(count int) ReceiveGarbage {
	return ReceiveGarbage{Action: ActionReceiveGarbage, Count: count}
}

func newOpponentLost(winner string) OpponentLost {
	return OpponentLost{Action: ActionOpponentLost, Winner: winner}
}

func newYouLost(winner string) YouLost {
	return YouLost{Action: ActionYouLost, Winner: winner}
}

func newOpponentWantsRematch() OpponentWantsRematch {
	return OpponentWantsRematch{Action: ActionOpponentWantsRematch}
}

func newOpponentDisconnected() OpponentDisconnected {
	return OpponentDisconnected{Action: ActionOpponentDisconnected}
}
