// Package ws serves the push stream of session snapshots over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/service"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 4096
)

// Server handles stream subscriptions.
type Server struct {
	service      *service.Service
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewServer creates a stream server pinging idle clients every pingInterval.
func NewServer(svc *service.Service, pingInterval time.Duration) *Server {
	if pingInterval <= 0 {
		pingInterval = 15 * time.Second
	}
	return &Server{
		service:      svc,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the stream route with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/sessions/:session_id/stream", s.HandleStream)
}

// HandleStream upgrades the request and pushes a snapshot frame every time
// the session changes, ending with the final snapshot.
// GET /v1/sessions/:session_id/stream?since=N
func (s *Server) HandleStream(c echo.Context) error {
	sessionID := c.Param("session_id")
	since := 0
	if v := c.QueryParam("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "since must be a non-negative integer"})
		}
		since = n
	}
	if _, err := s.service.Registry().Get(sessionID); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: failed to upgrade stream for %s: %v", sessionID, err)
		return nil
	}
	conn := newConnection(ws)
	ws.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	written := make(chan struct{})
	go func() {
		defer close(written)
		defer cancel()
		s.writePump(ctx, conn)
	}()
	go s.readPump(conn, cancel)

	err = s.service.WatchSession(ctx, sessionID, since, func(snap *domain.Snapshot) error {
		return s.sendFrame(ctx, conn, domain.StreamFrame{Type: domain.StreamFrameSnapshot, Snapshot: snap})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("WARN: stream for %s ended: %v", sessionID, err)
		_ = s.sendFrame(ctx, conn, domain.StreamFrame{Type: domain.StreamFrameError, Error: err.Error()})
	}

	conn.closeSend()
	<-written
	ws.Close()
	return nil
}

func (s *Server) sendFrame(ctx context.Context, conn *Connection, frame domain.StreamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.enqueue(ctx, data)
}

// readPump drains client messages so control frames are processed, and
// cancels the stream once the client goes away.
func (s *Server) readPump(conn *Connection, cancel context.CancelFunc) {
	defer cancel()

	readTimeout := 2 * s.pingInterval
	conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: stream read error: %v", err)
			}
			return
		}
	}
}

// writePump writes queued frames and keepalive pings.
func (s *Server) writePump(ctx context.Context, conn *Connection) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-conn.Send:
			if !ok {
				_ = conn.write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), writeTimeout)
				return
			}
			if err := conn.write(websocket.TextMessage, message, writeTimeout); err != nil {
				log.Printf("WARN: failed to write stream frame: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.write(websocket.PingMessage, nil, writeTimeout); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
