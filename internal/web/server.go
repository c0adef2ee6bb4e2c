// Package web exposes the HTTP ingress: the Telegram webhook endpoint and a
// liveness probe. Updates are decoded here and handed to the bot through a
// channel; no conversation logic lives in this package.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"foodbot/internal/logger"
	"log/slog"

	"github.com/gin-gonic/gin"
	tele "gopkg.in/telebot.v4"
)

// Server hosts POST /webhook and GET /health.
type Server struct {
	listen string
	sink   chan<- tele.Update
	engine *gin.Engine
	srv    *http.Server
	log    *slog.Logger
}

// NewServer builds the ingress server. Decoded updates are pushed to sink;
// when sink is full the update is dropped with a warning rather than letting
// Telegram's delivery stall.
func NewServer(listen string, sink chan<- tele.Update) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		listen: listen,
		sink:   sink,
		engine: engine,
		log:    logger.Component("web"),
	}

	engine.POST("/webhook", s.handleWebhook)
	engine.GET("/health", s.handleHealth)
	return s
}

// Handler exposes the HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              s.listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("listening",
		slog.String("event", "web.listen"),
		slog.String("addr", s.listen),
	)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// handleWebhook always answers 200 with {"ok":true}: Telegram retries
// non-2xx responses, and a malformed or dropped update must not trigger a
// redelivery loop.
func (s *Server) handleWebhook(c *gin.Context) {
	var upd tele.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&upd); err != nil {
		s.log.Warn("malformed update",
			slog.String("event", "web.webhook.decode"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	select {
	case s.sink <- upd:
	default:
		s.log.Warn("update dropped, sink full",
			slog.String("event", "web.webhook.drop"),
			slog.Int("update_id", upd.ID),
		)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
