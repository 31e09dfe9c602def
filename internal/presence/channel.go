package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const (
	DefaultHeartbeat   = 30 * time.Second
	defaultBackoffBase = time.Second
	defaultBackoffMax  = 30 * time.Second
)

// Backoff computes the reconnect delay for the given attempt count:
// min(base × 2^attempts, max).
func Backoff(attempts int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// Channel keeps one contract's live-user signal alive across network
// failures. Heartbeat and reconnect timing are independent of the save
// pipelines; a save in flight is never delayed by presence activity.
type Channel struct {
	dialer     Dialer
	url        string
	contractID string
	userName   string
	log        zerolog.Logger

	heartbeat   time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration

	mu         sync.Mutex
	state      State
	conn       Conn
	others     []string
	attempts   int
	closedByUs bool
	done       chan struct{}
}

type ChannelConfig struct {
	Heartbeat   time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func NewChannel(dialer Dialer, url, contractID, userName string, log zerolog.Logger, cfg ChannelConfig) *Channel {
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = defaultBackoffMax
	}
	return &Channel{
		dialer:      dialer,
		url:         url,
		contractID:  contractID,
		userName:    userName,
		log:         log,
		heartbeat:   cfg.Heartbeat,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
		state:       StateDisconnected,
		done:        make(chan struct{}),
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveUsers returns the other users currently on this contract.
func (c *Channel) ActiveUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	users := make([]string, len(c.others))
	copy(users, c.others)
	return users
}

// Start runs the connect/read/reconnect loop until Close or ctx cancel.
func (c *Channel) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Channel) run(ctx context.Context) {
	for {
		if c.closed() {
			return
		}
		c.setState(StateConnecting)

		conn, err := c.dialer.Dial(ctx, c.url)
		if err != nil {
			c.setState(StateDisconnected)
			if !c.waitBackoff(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		if c.closedByUs {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.state = StateConnected
		c.attempts = 0
		c.mu.Unlock()

		// Announce presence immediately on every (re)connect.
		if err := conn.Send(Message{
			Type:       MessageTypePresence,
			Action:     ActionEnter,
			ContractID: c.contractID,
			UserName:   c.userName,
		}); err != nil {
			c.log.Debug().Err(err).Msg("presence enter failed")
		}

		stopPing := make(chan struct{})
		go c.pingLoop(conn, stopPing)

		c.readLoop(conn)
		close(stopPing)
		_ = conn.Close()

		c.mu.Lock()
		c.conn = nil
		c.state = StateDisconnected
		c.others = nil
		closed := c.closedByUs
		c.mu.Unlock()

		if closed || ctx.Err() != nil {
			return
		}
		if !c.waitBackoff(ctx) {
			return
		}
	}
}

func (c *Channel) readLoop(conn Conn) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			return
		}
		// The channel is multiplexed; only our document matters.
		if msg.Type != MessageTypePresenceUpdate || msg.ContractID != c.contractID {
			continue
		}
		others := make([]string, 0, len(msg.Users))
		for _, user := range msg.Users {
			if user != c.userName {
				others = append(others, user)
			}
		}
		c.mu.Lock()
		c.others = others
		c.mu.Unlock()
	}
}

func (c *Channel) pingLoop(conn Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.Send(Message{Type: MessageTypePing}); err != nil {
				return
			}
		case <-stop:
			return
		case <-c.done:
			return
		}
	}
}

// Close announces leave, closes the connection, and suppresses the
// reconnect loop. The closedByUs flag is what separates an intentional
// teardown from a network drop.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closedByUs {
		c.mu.Unlock()
		return
	}
	c.closedByUs = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		_ = conn.Send(Message{
			Type:       MessageTypePresence,
			Action:     ActionLeave,
			ContractID: c.contractID,
			UserName:   c.userName,
		})
		_ = conn.Close()
	}
	c.setState(StateDisconnected)
}

func (c *Channel) closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedByUs
}

func (c *Channel) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// waitBackoff sleeps the current backoff delay. Returns false when the
// wait was interrupted by shutdown.
func (c *Channel) waitBackoff(ctx context.Context) bool {
	c.mu.Lock()
	delay := Backoff(c.attempts, c.backoffBase, c.backoffMax)
	c.attempts++
	c.mu.Unlock()

	select {
	case <-time.After(delay):
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}
