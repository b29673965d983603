package netplay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a remote player connection.
type Client struct {
	conn *websocket.Conn

	SessionID  string
	TickRateHz int
}

// Dial connects to url and completes the HELLO/WELCOME handshake.
func Dial(ctx context.Context, url, name string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	hello := HelloMsg{Type: TypeHello, ProtocolVersion: Version, Name: name}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var welcome WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil || welcome.Type != TypeWelcome {
		conn.Close()
		return nil, fmt.Errorf("%w: expected WELCOME", ErrUnknownType)
	}

	return &Client{conn: conn, SessionID: welcome.SessionID, TickRateHz: welcome.TickRateHz}, nil
}

// SetReeling asks the server to start or stop reeling.
func (c *Client) SetReeling(reeling bool) error {
	return c.conn.WriteJSON(NewReel(reeling))
}

// Fire asks the server to fire the active gun at world point (x, y).
func (c *Client) Fire(x, y float64) error {
	return c.conn.WriteJSON(NewFire(x, y))
}

// Release asks the server to let go of the rope.
func (c *Client) Release() error {
	return c.conn.WriteJSON(NewRelease())
}

// ReadState blocks until the next STATE message. Other message types are skipped.
func (c *Client) ReadState() (StateMsg, error) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return StateMsg{}, err
		}
		base, err := DecodeBase(msg)
		if err != nil || base.Type != TypeState {
			continue
		}
		var state StateMsg
		if err := json.Unmarshal(msg, &state); err != nil {
			return StateMsg{}, fmt.Errorf("decoding state: %w", err)
		}
		return state, nil
	}
}

// SetReadDeadline bounds the next ReadState.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
