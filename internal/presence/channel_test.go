package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	sent     []Message
	inbound  chan Message
	closed   bool
	closeErr chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan Message, 16),
		closeErr: make(chan struct{}),
	}
}

func (c *fakeConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Receive() (Message, error) {
	select {
	case msg := <-c.inbound:
		return msg, nil
	case <-c.closeErr:
		return Message{}, errors.New("connection dropped")
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closeErr)
	}
	return nil
}

func (c *fakeConn) sentMessages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	fails int
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fails > 0 {
		d.fails--
		return nil, errors.New("dial refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func fastConfig() ChannelConfig {
	return ChannelConfig{
		Heartbeat:   time.Hour, // keep pings out of test assertions
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	}
}

func TestChannel_AnnouncesEnterOnConnect(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewChannel(dialer, "ws://test", "contract-1", "alice", zerolog.Nop(), fastConfig())
	c.Start(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, time.Millisecond)

	msgs := dialer.lastConn().sentMessages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, MessageTypePresence, msgs[0].Type)
	assert.Equal(t, ActionEnter, msgs[0].Action)
	assert.Equal(t, "contract-1", msgs[0].ContractID)
	assert.Equal(t, "alice", msgs[0].UserName)
}

func TestChannel_TracksOnlyOwnContractUsers(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewChannel(dialer, "ws://test", "contract-1", "alice", zerolog.Nop(), fastConfig())
	c.Start(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, time.Millisecond)
	conn := dialer.lastConn()

	conn.inbound <- Message{Type: MessageTypePresenceUpdate, ContractID: "other-contract", Users: []string{"mallory"}}
	conn.inbound <- Message{Type: MessageTypePresenceUpdate, ContractID: "contract-1", Users: []string{"alice", "bob"}}

	require.Eventually(t, func() bool {
		users := c.ActiveUsers()
		return len(users) == 1 && users[0] == "bob"
	}, time.Second, time.Millisecond)
}

func TestChannel_ReconnectsAfterDropWithBackoff(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewChannel(dialer, "ws://test", "contract-1", "alice", zerolog.Nop(), fastConfig())
	c.Start(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, time.Millisecond)
	first := dialer.lastConn()

	first.Close() // simulated network drop

	require.Eventually(t, func() bool {
		return dialer.dialCount() >= 2 && c.State() == StateConnected
	}, time.Second, time.Millisecond)

	second := dialer.lastConn()
	require.NotSame(t, first, second)
	msgs := second.sentMessages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, ActionEnter, msgs[0].Action)
}

func TestChannel_CloseSendsLeaveAndStopsReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewChannel(dialer, "ws://test", "contract-1", "alice", zerolog.Nop(), fastConfig())
	c.Start(context.Background())

	require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, time.Millisecond)
	conn := dialer.lastConn()
	dialsBefore := dialer.dialCount()

	c.Close()

	msgs := conn.sentMessages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, ActionLeave, last.Action)
	assert.Equal(t, StateDisconnected, c.State())

	// closedByUs suppresses the reconnect loop.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, dialsBefore, dialer.dialCount())
}

func TestChannel_DialFailureRetries(t *testing.T) {
	dialer := &fakeDialer{fails: 3}
	c := NewChannel(dialer, "ws://test", "contract-1", "alice", zerolog.Nop(), fastConfig())
	c.Start(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, dialer.dialCount(), 4)
}

func TestBackoff(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	assert.Equal(t, 1*time.Second, Backoff(0, base, max))
	assert.Equal(t, 2*time.Second, Backoff(1, base, max))
	assert.Equal(t, 4*time.Second, Backoff(2, base, max))
	assert.Equal(t, 16*time.Second, Backoff(4, base, max))
	assert.Equal(t, 30*time.Second, Backoff(5, base, max))
	assert.Equal(t, 30*time.Second, Backoff(50, base, max))
}
