// Package netplay carries remote players' gun input (fire, reel, release) to
// the tick loop and tether state back to them over websockets.
package netplay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the wire protocol version. Peers must match exactly.
const Version = "1"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeReel    = "REEL"
	TypeFire    = "FIRE"
	TypeRelease = "RELEASE"
	TypeState   = "STATE"
)

var (
	// ErrBadHello is returned when the first message is not a valid HELLO.
	ErrBadHello = errors.New("netplay: bad hello")
	// ErrUnknownType is returned for messages a peer does not handle.
	ErrUnknownType = errors.New("netplay: unknown message type")
)

// BaseMessage lets us route JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

// DecodeBase reads only the routing fields of a message.
func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// HelloMsg opens a session (client -> server).
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
}

// WelcomeMsg answers HELLO (server -> client).
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	TickRateHz      int    `json:"tick_rate_hz"`
}

// ReelMsg asks to start or stop reeling the gun in the player's active hand
// (client -> server).
type ReelMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Reeling         bool   `json:"reeling"`
}

// FireMsg asks to fire the active gun at a world point (client -> server).
type FireMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
}

// StateMsg reports every live tether (server -> client).
type StateMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	Tethers         []TetherView `json:"tethers"`
}

// TetherView is one gun's rope as seen by clients.
type TetherView struct {
	Gun        uint32  `json:"gun"`
	Session    string  `json:"session,omitempty"`
	Reeling    bool    `json:"reeling"`
	RopeLength float64 `json:"rope_length"`
	MaxLength  float64 `json:"max_length"`
}

// NewReel builds a REEL message.
func NewReel(reeling bool) ReelMsg {
	return ReelMsg{Type: TypeReel, ProtocolVersion: Version, Reeling: reeling}
}

// NewFire builds a FIRE message.
func NewFire(x, y float64) FireMsg {
	return FireMsg{Type: TypeFire, ProtocolVersion: Version, X: x, Y: y}
}

// NewRelease builds a RELEASE message. It carries no payload.
func NewRelease() BaseMessage {
	return BaseMessage{Type: TypeRelease, ProtocolVersion: Version}
}

// NewState builds a STATE message.
func NewState(tick uint64, tethers []TetherView) StateMsg {
	return StateMsg{Type: TypeState, ProtocolVersion: Version, Tick: tick, Tethers: tethers}
}

// ParseHello validates a HELLO message.
func ParseHello(b []byte) (HelloMsg, error) {
	var hello HelloMsg
	if err := json.Unmarshal(b, &hello); err != nil {
		return hello, fmt.Errorf("%w: %v", ErrBadHello, err)
	}
	if hello.Type != TypeHello {
		return hello, fmt.Errorf("%w: got type %q", ErrBadHello, hello.Type)
	}
	if hello.ProtocolVersion != Version {
		return hello, fmt.Errorf("%w: protocol version %q", ErrBadHello, hello.ProtocolVersion)
	}
	if hello.Name == "" {
		hello.Name = "player"
	}
	return hello, nil
}

// ParseReel decodes a REEL message, rejecting anything else.
func ParseReel(b []byte) (ReelMsg, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return ReelMsg{}, fmt.Errorf("decoding message: %w", err)
	}
	if base.Type != TypeReel {
		return ReelMsg{}, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	if base.ProtocolVersion != Version {
		return ReelMsg{}, fmt.Errorf("protocol version %q, want %q", base.ProtocolVersion, Version)
	}
	var reel ReelMsg
	if err := json.Unmarshal(b, &reel); err != nil {
		return ReelMsg{}, fmt.Errorf("decoding reel: %w", err)
	}
	return reel, nil
}

// ParseInput decodes any client input message into a Command for session.
func ParseInput(session string, b []byte) (Command, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return Command{}, fmt.Errorf("decoding message: %w", err)
	}
	if base.ProtocolVersion != Version {
		return Command{}, fmt.Errorf("protocol version %q, want %q", base.ProtocolVersion, Version)
	}

	switch base.Type {
	case TypeReel:
		reel, err := ParseReel(b)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandReel, Session: session, Reeling: reel.Reeling}, nil
	case TypeFire:
		var fire FireMsg
		if err := json.Unmarshal(b, &fire); err != nil {
			return Command{}, fmt.Errorf("decoding fire: %w", err)
		}
		return Command{Kind: CommandFire, Session: session, X: fire.X, Y: fire.Y}, nil
	case TypeRelease:
		return Command{Kind: CommandRelease, Session: session}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
}
