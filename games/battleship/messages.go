/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package battleship

import (
	"encoding/json"
)

// Inbound event types.
const (
	TypeJoin       = "join"
	TypeConnect    = "connect"
	TypePlaceFleet = "placeFleet"
	TypeShot       = "shot"
	TypeChat       = "chat"
)

// Outbound notification types.
const (
	KindJoined          = "joined"
	KindBothConnected   = "bothConnected"
	KindWaitingOpponent = "waitingOpponent"
	KindGameStart       = "gameStart"
	KindShotResult      = "shotResult"
	KindTurn            = "turn"
	KindGameOver        = "gameOver"
	KindOpponentLeft    = "opponentLeft"
	KindError           = "error"
	KindChat            = "chat"
)

// Event is one parsed inbound message. The set of implementations is closed.
type Event interface {
	eventType() string
}

type JoinEvent struct {
	RoomID string
}

type PlaceFleetEvent struct {
	Fleet []ShipSpec
}

type ShotEvent struct {
	X, Y int
}

type ChatEvent struct {
	Message string
}

func (JoinEvent) eventType() string       { return TypeJoin }
func (PlaceFleetEvent) eventType() string { return TypePlaceFleet }
func (ShotEvent) eventType() string       { return TypeShot }
func (ChatEvent) eventType() string       { return TypeChat }

type envelope struct {
	Type    string     `json:"type"`
	RoomID  *string    `json:"roomId"`
	Fleet   []wireShip `json:"fleet"`
	X       *int       `json:"x"`
	Y       *int       `json:"y"`
	Message *string    `json:"message"`
}

// wireShip and wireCoord mirror ShipSpec and Coordinate with every field
// required.
type wireShip struct {
	Name   *string      `json:"name"`
	Coords *[]wireCoord `json:"coords"`
}

type wireCoord struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

// shipSpecs converts a decoded fleet, rejecting ships without a name or
// coordinate list and coordinates missing either axis.
func shipSpecs(ships []wireShip) ([]ShipSpec, error) {
	if ships == nil {
		return nil, nil
	}

	specs := make([]ShipSpec, 0, len(ships))
	for _, ws := range ships {
		if ws.Name == nil || *ws.Name == "" || ws.Coords == nil {
			return nil, ErrMalformedMessage
		}

		coords := make([]Coordinate, 0, len(*ws.Coords))
		for _, wc := range *ws.Coords {
			if wc.X == nil || wc.Y == nil {
				return nil, ErrMalformedMessage
			}
			coords = append(coords, Coordinate{X: *wc.X, Y: *wc.Y})
		}

		specs = append(specs, ShipSpec{Name: *ws.Name, Coords: coords})
	}

	return specs, nil
}

// ParseEvent decodes a client frame into its event variant. Anything that
// does not decode, has an unknown type, or lacks a required field yields
// ErrMalformedMessage. A placeFleet without a fleet is valid and means the
// player is not ready, but every ship it does carry needs a non-empty name
// and fully specified coordinates.
func ParseEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrMalformedMessage
	}

	switch env.Type {
	case TypeJoin, TypeConnect:
		if env.RoomID == nil || *env.RoomID == "" {
			return nil, ErrMalformedMessage
		}
		return JoinEvent{RoomID: *env.RoomID}, nil
	case TypePlaceFleet:
		specs, err := shipSpecs(env.Fleet)
		if err != nil {
			return nil, err
		}
		return PlaceFleetEvent{Fleet: specs}, nil
	case TypeShot:
		if env.X == nil || env.Y == nil {
			return nil, ErrMalformedMessage
		}
		return ShotEvent{X: *env.X, Y: *env.Y}, nil
	case TypeChat:
		if env.Message == nil {
			return nil, ErrMalformedMessage
		}
		return ChatEvent{Message: *env.Message}, nil
	default:
		return nil, ErrMalformedMessage
	}
}

// Notification is anything sent to a client.
type Notification interface {
	Kind() string
}

// Conn is the delivery side of one client connection. Send is best effort;
// the room ignores its error.
type Conn interface {
	Send(Notification) error
	Close() error
}

// SimpleMessage covers notifications that carry nothing but their type
// ("bothConnected", "waitingOpponent", "opponentLeft") and error notices.
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type JoinedMessage struct {
	Type        string `json:"type"` // "joined"
	PlayerIndex int    `json:"playerIndex"`
}

// TurnMessage is used for both "gameStart" and "turn".
type TurnMessage struct {
	Type string `json:"type"`
	Turn int    `json:"turn"`
}

type ShotResultMessage struct {
	Type    string  `json:"type"` // "shotResult"
	Shooter int     `json:"shooter"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Hit     bool    `json:"hit"`
	Sunk    *string `json:"sunk"` // null unless this shot sank a ship
}

type GameOverMessage struct {
	Type   string `json:"type"` // "gameOver"
	Winner int    `json:"winner"`
}

type ChatMessage struct {
	Type    string `json:"type"` // "chat"
	From    int    `json:"from"`
	Message string `json:"message"`
}

func (m SimpleMessage) Kind() string     { return m.Type }
func (m JoinedMessage) Kind() string     { return m.Type }
func (m TurnMessage) Kind() string       { return m.Type }
func (m ShotResultMessage) Kind() string { return m.Type }
func (m GameOverMessage) Kind() string   { return m.Type }
func (m ChatMessage) Kind() string       { return m.Type }

func errorMessage(err error) SimpleMessage {
	return SimpleMessage{Type: KindError, Message: err.Error()}
}
