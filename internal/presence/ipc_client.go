package presence

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

const stateBuffer = 8

type handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

type command struct {
	Cmd   string       `json:"cmd"`
	Args  activityArgs `json:"args"`
	Nonce string       `json:"nonce"`
}

type message struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Data  json.RawMessage `json:"data"`
	Nonce string          `json:"nonce"`
}

// DialFunc opens a raw connection to the Discord client
type DialFunc func(ctx context.Context) (net.Conn, error)

// IPCClient speaks Discord's local RPC protocol over a unix socket or,
// on Windows, a named pipe.
type IPCClient struct {
	appID string
	pid   int
	dial  DialFunc
	log   zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	states    chan types.ConnState
	closeOnce sync.Once
}

// ClientOption configures an IPCClient
type ClientOption func(*IPCClient)

// WithDialer replaces endpoint discovery
func WithDialer(dial DialFunc) ClientOption {
	return func(c *IPCClient) { c.dial = dial }
}

// WithPID overrides the process id reported with activities
func WithPID(pid int) ClientOption {
	return func(c *IPCClient) { c.pid = pid }
}

// NewIPCClient creates a client for the application appID. It does not
// connect; call Connect.
func NewIPCClient(appID string, log zerolog.Logger, opts ...ClientOption) (*IPCClient, error) {
	if _, err := strconv.ParseUint(appID, 10, 64); err != nil {
		return nil, errors.Wrapf(ErrInvalidAppID, "%q", appID)
	}

	c := &IPCClient{
		appID:  appID,
		pid:    os.Getpid(),
		dial:   dialDiscord,
		log:    log,
		states: make(chan types.ConnState, stateBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// States implements Client
func (c *IPCClient) States() <-chan types.ConnState {
	return c.states
}

// Connected reports whether a handshake has completed on a live connection
func (c *IPCClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials Discord and completes the handshake. It is a no-op when
// already connected.
func (c *IPCClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("presence client closed")
	}
	if c.conn != nil {
		return nil
	}

	c.publish(types.StateConnecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.publish(types.StateDisconnected)
		return errors.Wrap(err, "dial discord")
	}

	stop := bindDeadline(ctx, conn)
	err = c.handshake(conn)
	stop()
	if err != nil {
		conn.Close()
		c.publish(types.StateDisconnected)
		return errors.Wrap(err, "discord handshake")
	}

	c.conn = conn
	c.publish(types.StateConnected)
	c.log.Info().Str("appId", c.appID).Msg("connected to discord")
	return nil
}

func (c *IPCClient) handshake(conn net.Conn) error {
	if err := writeJSONFrame(conn, opHandshake, handshake{V: 1, ClientID: c.appID}); err != nil {
		return err
	}
	for {
		msg, err := c.readMessage(conn)
		if err != nil {
			return err
		}
		switch msg.Evt {
		case "READY":
			return nil
		case "ERROR":
			return decodeDiscordError(msg.Data)
		}
	}
}

// SetActivity implements Client
func (c *IPCClient) SetActivity(ctx context.Context, activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	conn := c.conn

	stop := bindDeadline(ctx, conn)
	defer stop()

	cmd := command{
		Cmd:   "SET_ACTIVITY",
		Args:  activityArgs{PID: c.pid, Activity: activity},
		Nonce: uuid.NewString(),
	}
	if err := writeJSONFrame(conn, opFrame, cmd); err != nil {
		c.drop(err)
		return errors.Wrap(err, "send activity")
	}

	for {
		msg, err := c.readMessage(conn)
		if err != nil {
			c.drop(err)
			return errors.Wrap(err, "read activity reply")
		}
		if msg.Nonce != cmd.Nonce {
			continue
		}
		if msg.Evt == "ERROR" {
			return decodeDiscordError(msg.Data)
		}
		return nil
	}
}

// readMessage returns the next dispatch frame, answering pings on the way
func (c *IPCClient) readMessage(conn net.Conn) (*message, error) {
	for {
		op, body, err := readFrame(conn)
		if err != nil {
			return nil, err
		}

		switch op {
		case opPing:
			if err := writeFrame(conn, opPong, body); err != nil {
				return nil, err
			}
		case opClose:
			derr := decodeDiscordError(body)
			return nil, errors.Wrap(errClosedByPeer, derr.Error())
		case opFrame:
			var msg message
			if err := json.Unmarshal(body, &msg); err != nil {
				return nil, errors.Wrap(err, "decode frame")
			}
			return &msg, nil
		default:
			c.log.Debug().Uint32("opcode", op).Msg("ignoring frame")
		}
	}
}

// drop forgets a broken connection. Callers hold c.mu.
func (c *IPCClient) drop(cause error) {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
	c.publish(types.StateDisconnected)
	c.log.Warn().Err(cause).Msg("discord connection lost")
}

// publish reports a state change without blocking. Callers hold c.mu.
func (c *IPCClient) publish(state types.ConnState) {
	if c.closed {
		return
	}
	select {
	case c.states <- state:
	default:
	}
}

// Close sends a close frame, drops the connection and closes States
func (c *IPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.conn != nil {
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = writeJSONFrame(c.conn, opClose, struct{}{})
		err = c.conn.Close()
		c.conn = nil
		c.publish(types.StateDisconnected)
	}

	c.closed = true
	c.closeOnce.Do(func() { close(c.states) })
	return err
}

// bindDeadline applies the context deadline to conn and interrupts blocked
// I/O when ctx is cancelled. The returned func undoes both.
func bindDeadline(ctx context.Context, conn net.Conn) func() {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	return func() {
		stop()
		_ = conn.SetDeadline(time.Time{})
	}
}

func decodeDiscordError(data []byte) *DiscordError {
	derr := &DiscordError{}
	if len(data) > 0 {
		_ = json.Unmarshal(data, derr)
	}
	return derr
}

// dialDiscord tries every well-known endpoint in order
func dialDiscord(ctx context.Context) (net.Conn, error) {
	var lastErr error
	for _, endpoint := range ipcEndpoints() {
		conn, err := dialEndpoint(ctx, endpoint)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no discord ipc endpoint found")
	}
	return nil, lastErr
}
