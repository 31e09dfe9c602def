package http

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/krasl809/tradedesk/internal/presence"
)

// PresenceHub fans presence announcements out to everyone on the same
// contract. One socket may enter several contracts; rooms are keyed by
// contract id. The hub is advisory state only and never touches the
// write path.
type PresenceHub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*hubClient]string // contract id -> conn -> user name
}

type hubClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes; gorilla allows one writer at a time
}

func (c *hubClient) send(msg presence.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func NewPresenceHub(log zerolog.Logger) *PresenceHub {
	return &PresenceHub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]map[*hubClient]string),
	}
}

// Serve upgrades the connection and processes presence messages until
// the peer goes away. A dropped connection counts as leave for every
// room the socket had entered.
func (h *PresenceHub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("presence upgrade failed")
		return
	}
	client := &hubClient{conn: conn}
	defer h.dropClient(client)
	defer conn.Close()

	for {
		var msg presence.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch {
		case msg.Type == presence.MessageTypePing:
			// Heartbeat; nothing to answer.

		case msg.Type == presence.MessageTypePresence && msg.Action == presence.ActionEnter:
			h.enter(client, msg.ContractID, msg.UserName)

		case msg.Type == presence.MessageTypePresence && msg.Action == presence.ActionLeave:
			h.leave(client, msg.ContractID)
		}
	}
}

func (h *PresenceHub) enter(client *hubClient, contractID, userName string) {
	if contractID == "" || userName == "" {
		return
	}
	h.mu.Lock()
	room, ok := h.rooms[contractID]
	if !ok {
		room = make(map[*hubClient]string)
		h.rooms[contractID] = room
	}
	room[client] = userName
	h.mu.Unlock()

	h.broadcast(contractID)
}

func (h *PresenceHub) leave(client *hubClient, contractID string) {
	h.mu.Lock()
	if room, ok := h.rooms[contractID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, contractID)
		}
	}
	h.mu.Unlock()

	h.broadcast(contractID)
}

func (h *PresenceHub) dropClient(client *hubClient) {
	h.mu.Lock()
	var affected []string
	for contractID, room := range h.rooms {
		if _, ok := room[client]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, contractID)
			}
			affected = append(affected, contractID)
		}
	}
	h.mu.Unlock()

	for _, contractID := range affected {
		h.broadcast(contractID)
	}
}

func (h *PresenceHub) broadcast(contractID string) {
	h.mu.Lock()
	room := h.rooms[contractID]
	clients := make([]*hubClient, 0, len(room))
	users := make([]string, 0, len(room))
	for client, user := range room {
		clients = append(clients, client)
		users = append(users, user)
	}
	h.mu.Unlock()

	msg := presence.Message{
		Type:       presence.MessageTypePresenceUpdate,
		ContractID: contractID,
		Users:      users,
	}
	for _, client := range clients {
		if err := client.send(msg); err != nil {
			h.log.Debug().Err(err).Msg("presence broadcast failed")
		}
	}
}

// RoomUsers lists the users currently announced on a contract.
func (h *PresenceHub) RoomUsers(contractID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[contractID]
	users := make([]string, 0, len(room))
	for _, user := range room {
		users = append(users, user)
	}
	return users
}
