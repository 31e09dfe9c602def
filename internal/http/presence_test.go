package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krasl809/tradedesk/internal/presence"
)

func newHubServer(t *testing.T) (*PresenceHub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewPresenceHub(zerolog.Nop())
	router := gin.New()
	router.GET("/ws/presence", hub.Serve)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/presence"
}

func dialHub(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func enter(t *testing.T, conn *websocket.Conn, contractID, user string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(presence.Message{
		Type:       presence.MessageTypePresence,
		Action:     presence.ActionEnter,
		ContractID: contractID,
		UserName:   user,
	}))
}

func TestPresenceHub_BroadcastsRoomMembership(t *testing.T) {
	hub, url := newHubServer(t)

	alice := dialHub(t, url)
	enter(t, alice, "contract-1", "alice")
	require.Eventually(t, func() bool {
		return len(hub.RoomUsers("contract-1")) == 1
	}, time.Second, 5*time.Millisecond)

	bob := dialHub(t, url)
	enter(t, bob, "contract-1", "bob")

	// Alice hears about bob joining her contract.
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	sawBob := false
	for !sawBob {
		var msg presence.Message
		require.NoError(t, alice.ReadJSON(&msg))
		require.Equal(t, presence.MessageTypePresenceUpdate, msg.Type)
		assert.Equal(t, "contract-1", msg.ContractID)
		for _, user := range msg.Users {
			if user == "bob" {
				sawBob = true
			}
		}
	}

	// Leave shrinks the room; the room itself survives until empty.
	require.NoError(t, bob.WriteJSON(presence.Message{
		Type:       presence.MessageTypePresence,
		Action:     presence.ActionLeave,
		ContractID: "contract-1",
		UserName:   "bob",
	}))
	require.Eventually(t, func() bool {
		users := hub.RoomUsers("contract-1")
		return len(users) == 1 && users[0] == "alice"
	}, time.Second, 5*time.Millisecond)
}

func TestPresenceHub_DroppedConnectionCountsAsLeave(t *testing.T) {
	hub, url := newHubServer(t)

	conn := dialHub(t, url)
	enter(t, conn, "contract-9", "alice")
	require.Eventually(t, func() bool {
		return len(hub.RoomUsers("contract-9")) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return len(hub.RoomUsers("contract-9")) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestPresenceHub_RoomsAreIsolated(t *testing.T) {
	hub, url := newHubServer(t)

	a := dialHub(t, url)
	enter(t, a, "contract-1", "alice")
	b := dialHub(t, url)
	enter(t, b, "contract-2", "bob")

	require.Eventually(t, func() bool {
		return len(hub.RoomUsers("contract-1")) == 1 && len(hub.RoomUsers("contract-2")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.NotContains(t, hub.RoomUsers("contract-1"), "bob")
}
