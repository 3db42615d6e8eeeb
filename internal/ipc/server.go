package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/galaxyplayer/galaxyd/internal/app"
	"github.com/galaxyplayer/galaxyd/internal/events"
	"github.com/galaxyplayer/galaxyd/internal/presence"
)

// maxLineBytes bounds a single request line
const maxLineBytes = 1 << 20

// Server handles IPC communication with clients
type Server struct {
	socketPath string
	app        *app.App
	log        zerolog.Logger

	listener net.Listener
	mu       sync.Mutex
	clients  map[net.Conn]*client
	wg       sync.WaitGroup
}

// client is one connected GUI. Responses and pushed events share the
// connection, so writes are serialized.
type client struct {
	conn        net.Conn
	writeMu     sync.Mutex
	unsubscribe func()
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(append(data, '\n'))
	return err
}

// NewServer creates a new IPC server
func NewServer(socketPath string, a *app.App, log zerolog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		app:        a,
		log:        log,
		clients:    make(map[net.Conn]*client),
	}
}

// Start listens on the socket and serves clients until ctx is done
func (s *Server) Start(ctx context.Context) error {
	// Remove a stale socket from a previous run
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set socket permissions (user-only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info().Str("socket", s.socketPath).Msg("command socket listening")

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	<-ctx.Done()

	s.log.Info().Msg("shutting down command socket")
	listener.Close()

	s.mu.Lock()
	clientCount := len(s.clients)
	for conn := range s.clients {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	os.RemoveAll(s.socketPath)

	s.log.Info().Int("clients", clientCount).Msg("command socket stopped")
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		c := &client{conn: conn}
		s.mu.Lock()
		s.clients[conn] = c
		clientCount := len(s.clients)
		s.mu.Unlock()

		s.log.Debug().Int("clients", clientCount).Msg("client connected")

		s.wg.Add(1)
		go s.handleConnection(ctx, c)
	}
}

func (s *Server) handleConnection(ctx context.Context, c *client) {
	defer s.wg.Done()
	defer func() {
		c.conn.Close()
		s.mu.Lock()
		delete(s.clients, c.conn)
		unsubscribe := c.unsubscribe
		c.unsubscribe = nil
		clientCount := len(s.clients)
		s.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		s.log.Debug().Int("clients", clientCount).Msg("client disconnected")
	}()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		req, err := DecodeRequest(line)
		if err != nil {
			s.log.Debug().Err(err).Msg("invalid request")
			s.send(c, NewErrorResponse("invalid request format"))
			continue
		}

		start := time.Now()
		resp := s.handleRequest(ctx, c, req)
		logExchange(s.log, req, resp, time.Since(start))
		s.app.Metrics().Command("socket", string(req.Cmd), resp.Success)

		if err := s.send(c, resp); err != nil {
			s.log.Debug().Err(err).Msg("send failed")
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		s.log.Debug().Err(err).Msg("read failed")
	}
}

func (s *Server) handleRequest(ctx context.Context, c *client, req *Request) *Response {
	switch req.Cmd {
	case CmdReadDirectory:
		return s.handleReadDirectory(ctx, req)
	case CmdGetMp3Cover:
		return s.handleGetMp3Cover(c, req)
	case CmdChangeRichPresence:
		return s.handleChangeRichPresence(ctx, req)
	case CmdGetSession:
		return success(s.app.Session())
	case CmdSetSession:
		return s.handleSetSession(ctx, req)
	case CmdNext:
		return navigation(s.app.Next())
	case CmdPrev:
		return navigation(s.app.Prev())
	case CmdStatus:
		return success(s.app.Status())
	case CmdGetConfig:
		cfg, err := s.app.Config()
		if err != nil {
			return NewErrorResponse(err.Error())
		}
		return success(cfg)
	case CmdSetConfig:
		return s.handleSetConfig(req)
	case CmdSubscribe:
		return s.handleSubscribe(c)
	case CmdUnsubscribe:
		return s.handleUnsubscribe(c)
	default:
		return NewErrorResponse("unknown command")
	}
}

func success(data interface{}) *Response {
	resp, err := NewSuccessResponse(data)
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func navigation(track interface{}, err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return success(track)
}

func (s *Server) handleReadDirectory(ctx context.Context, req *Request) *Response {
	var r ReadDirectoryRequest
	if err := json.Unmarshal(req.Data, &r); err != nil {
		return NewErrorResponse("invalid readDirectory request")
	}
	if r.DirectoryURL == "" {
		return NewErrorResponse("directoryUrl is required")
	}
	return success(s.app.ReadDirectory(ctx, r.DirectoryURL))
}

func (s *Server) handleGetMp3Cover(c *client, req *Request) *Response {
	var r CoverRequest
	if err := json.Unmarshal(req.Data, &r); err != nil || r.Path == "" {
		return NewErrorResponse("path is required")
	}

	found := s.app.EmitCover(r.Path, events.EmitterFunc(func(name string, payload any) {
		s.push(c, name, payload)
	}))
	return success(CoverResponse{Found: found})
}

func (s *Server) handleChangeRichPresence(ctx context.Context, req *Request) *Response {
	var status presence.Status
	if err := json.Unmarshal(req.Data, &status); err != nil {
		return NewErrorResponse("invalid presence status")
	}
	if err := s.app.ChangePresence(ctx, status); err != nil {
		return NewErrorResponse(err.Error())
	}
	return success(nil)
}

func (s *Server) handleSetSession(ctx context.Context, req *Request) *Response {
	var patch app.SessionPatch
	if err := json.Unmarshal(req.Data, &patch); err != nil {
		return NewErrorResponse("invalid session")
	}
	view, err := s.app.SetSession(ctx, patch)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return success(view)
}

func (s *Server) handleSetConfig(req *Request) *Response {
	var patch app.ConfigPatch
	if err := json.Unmarshal(req.Data, &patch); err != nil {
		return NewErrorResponse("invalid config request")
	}
	cfg, err := s.app.SetConfig(patch)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return success(cfg)
}

// Event subscription handlers

func (s *Server) handleSubscribe(c *client) *Response {
	s.mu.Lock()
	if c.unsubscribe != nil {
		s.mu.Unlock()
		return success(SubscribeResponse{Subscribed: true})
	}
	ch, cancel := s.app.Bus().Subscribe()
	c.unsubscribe = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for ev := range ch {
			if err := s.push(c, ev.Name, ev.Payload); err != nil {
				return
			}
		}
	}()

	return success(SubscribeResponse{Subscribed: true})
}

func (s *Server) handleUnsubscribe(c *client) *Response {
	s.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	return success(SubscribeResponse{Subscribed: false})
}

// push sends an event to one client. Cover art goes out as a number list.
func (s *Server) push(c *client, name string, payload any) error {
	if data, ok := payload.([]byte); ok {
		payload = CoverBytes(data)
	}
	msg, err := NewPushMessage(name, payload)
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (s *Server) send(c *client, resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return c.write(data)
}
