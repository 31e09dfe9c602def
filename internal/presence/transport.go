// Package presence maintains a best-effort signal of which other users
// have a contract open. It is advisory only: it never gates a save, it
// just makes conflicts less likely by warning editors about each other.
package presence

import (
	"context"

	"github.com/gorilla/websocket"
)

// Message is the wire format of the multiplexed presence protocol.
type Message struct {
	Type       string   `json:"type"`
	Action     string   `json:"action,omitempty"`
	ContractID string   `json:"contract_id,omitempty"`
	UserName   string   `json:"user_name,omitempty"`
	Users      []string `json:"users,omitempty"`
}

const (
	MessageTypePresence       = "presence"
	MessageTypePing           = "ping"
	MessageTypePresenceUpdate = "presence_update"

	ActionEnter = "enter"
	ActionLeave = "leave"
)

// Conn is one live duplex connection.
type Conn interface {
	Send(msg Message) error
	Receive() (Message, error)
	Close() error
}

// Dialer opens connections; the channel redials through it on every
// reconnect attempt. Tests substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Send(msg Message) error {
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Receive() (Message, error) {
	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// WebsocketDialer is the production Dialer.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}
