// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Thermoquad/aerostat/pkg/config"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Server exposes the hub over HTTP: a health route and the websocket path
type Server struct {
	cfg      config.RelayConfig
	hub      *Hub
	engine   *gin.Engine
	upgrader websocket.Upgrader
	logger   *zap.Logger

	srv  *http.Server
	addr net.Addr
}

// NewServer builds the gin engine for cfg. Nothing listens until Start.
func NewServer(cfg config.RelayConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:    cfg,
		hub:    NewHub(logger),
		engine: gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}

	s.engine.Use(recovery(logger), requestLog(logger))
	s.engine.GET("/health", s.health)

	if cfg.Username != "" {
		auth := s.engine.Group("/", gin.BasicAuth(gin.Accounts{cfg.Username: cfg.Password}))
		auth.GET(cfg.Path, s.handleSocket)
	} else {
		s.engine.GET(cfg.Path, s.handleSocket)
	}

	return s
}

// Hub returns the client hub frames are broadcast through
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler, for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("relay listen on %s: %w", s.cfg.Listen, err)
	}
	s.addr = ln.Addr()
	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Relay server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("Relay listening",
		zap.String("addr", s.addr.String()),
		zap.String("path", s.cfg.Path),
		zap.Bool("auth", s.cfg.Username != ""),
	)
	return nil
}

// Addr returns the bound address after Start
func (s *Server) Addr() string {
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Shutdown disconnects all clients and stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.hub.Count(),
	})
}

func (s *Server) handleSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := newClient(conn, c.Request.RemoteAddr, s.cfg.ClientBuffer)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go s.readPump(client)
	go s.writePump(client)
}

// readPump discards client messages; it exists to process control frames
// and notice the client going away.
func (s *Server) readPump(c *Client) {
	defer func() {
		s.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Relay client read error", zap.Error(err), zap.String("client_id", c.ID))
			}
			return
		}
	}
}

func (s *Server) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay closing"))
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.logger.Warn("Relay client write error", zap.Error(err), zap.String("client_id", c.ID))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stacktrace"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

func requestLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Relay request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
