// Package httpapi exposes the daemon commands over HTTP for tools and
// dashboards that cannot speak the local socket protocol.
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/h2non/filetype"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/galaxyplayer/galaxyd/internal/app"
	"github.com/galaxyplayer/galaxyd/internal/events"
	"github.com/galaxyplayer/galaxyd/internal/ipc"
	"github.com/galaxyplayer/galaxyd/internal/presence"
)

const (
	shutdownTimeout = 5 * time.Second
	wsWriteTimeout  = 5 * time.Second
)

// Server serves the HTTP API
type Server struct {
	echo *echo.Echo
	app  *app.App
	log  zerolog.Logger

	done     chan struct{}
	doneOnce sync.Once
}

// New creates the HTTP API for a
func New(a *app.App, log zerolog.Logger) *Server {
	s := &Server{
		echo: echo.New(),
		app:  a,
		log:  log,
		done: make(chan struct{}),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger())
	s.routes()
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() {
	api := s.echo.Group("/api")
	api.GET("/directory", s.handleDirectory)
	api.GET("/cover", s.handleCover)
	api.POST("/presence", s.handlePresence)
	api.GET("/session", s.handleGetSession)
	api.PUT("/session", s.handleSetSession)
	api.GET("/status", s.handleStatus)
	api.GET("/events", s.handleEvents)

	if m := s.app.Metrics(); m != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogMethod:  true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.log.Debug()
			switch {
			case v.Status >= 500:
				ev = s.log.Error()
			case v.Status >= 400:
				ev = s.log.Warn()
			}
			if v.Error != nil {
				ev = ev.Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("http request")
			return nil
		},
	})
}

// Start serves on addr until ctx is done
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http api listening")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.stopStreams()
		return errors.Wrap(err, "http api")
	case <-ctx.Done():
	}

	s.stopStreams()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http api shutdown")
	}
	s.log.Info().Msg("http api stopped")
	return nil
}

func (s *Server) stopStreams() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Server) handleDirectory(c echo.Context) error {
	dir := c.QueryParam("path")
	if dir == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path is required")
	}
	s.app.Metrics().Command("http", "readDirectory", true)
	return c.JSON(http.StatusOK, s.app.ReadDirectory(c.Request().Context(), dir))
}

func (s *Server) handleCover(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path is required")
	}

	data, ok := s.app.Cover(path)
	s.app.Metrics().Command("http", "getMp3Cover", ok)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no cover art")
	}

	contentType := http.DetectContentType(data)
	if kind, err := filetype.Image(data); err == nil && kind != filetype.Unknown {
		contentType = kind.MIME.Value
	}
	return c.Blob(http.StatusOK, contentType, data)
}

func (s *Server) handlePresence(c echo.Context) error {
	var status presence.Status
	if err := c.Bind(&status); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid presence status")
	}

	err := s.app.ChangePresence(c.Request().Context(), status)
	s.app.Metrics().Command("http", "changeRichPresence", err == nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, s.app.Session())
}

func (s *Server) handleSetSession(c echo.Context) error {
	var patch app.SessionPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session")
	}

	view, err := s.app.SetSession(c.Request().Context(), patch)
	s.app.Metrics().Command("http", "setSession", err == nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.app.Status())
}

// handleEvents streams bus events as JSON text messages until the client
// goes away or the server stops.
func (s *Server) handleEvents(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket accept failed")
		return nil
	}
	defer conn.CloseNow()

	ch, cancel := s.app.Bus().Subscribe()
	defer cancel()

	// reads are not expected; CloseRead reports when the peer leaves
	ctx := conn.CloseRead(c.Request().Context())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.writeEvent(ctx, conn, ev); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed")
				return nil
			}
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, conn *websocket.Conn, ev events.Event) error {
	if data, ok := ev.Payload.([]byte); ok {
		ev.Payload = ipc.CoverBytes(data)
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
