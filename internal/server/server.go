// Package server is the HTTP command surface. It translates requests into
// engine commands, maps each failure code to a distinct response, and
// streams engine events to connected clients over SSE. Actor identity is
// taken from the X-Actor header; establishing that identity (authentication)
// happens upstream and is out of scope here.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fabriziosalmi/checkmate/internal/check"
	"github.com/fabriziosalmi/checkmate/internal/engine"
	"github.com/fabriziosalmi/checkmate/internal/event"
	"github.com/fabriziosalmi/checkmate/internal/store"
)

// actorHeader carries the authenticated caller identity.
const actorHeader = "X-Actor"

// Server wires the engine, store and event hub behind HTTP handlers.
type Server struct {
	engine   *engine.Engine
	store    *store.Store
	hub      *event.Hub
	presence *presence
	log      *slog.Logger
}

// New builds a Server. The hub must be registered as (part of) the engine's
// sink by the caller; the server only consumes it.
func New(eng *engine.Engine, st *store.Store, hub *event.Hub, logger *slog.Logger) *Server {
	return &Server{
		engine:   eng,
		store:    st,
		hub:      hub,
		presence: newPresence(),
		log:      logger,
	}
}

// Router returns the configured gin handler.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)

	v1 := r.Group("/v1")
	v1.GET("/state", s.handleState)
	v1.GET("/checks", s.handleListChecks)
	v1.POST("/checks", s.handleSend)
	v1.POST("/checks/:id/confirm", s.handleConfirm)
	v1.POST("/checks/:id/snooze", s.handleSnooze)
	v1.GET("/events", s.handleEvents)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// actor extracts the caller identity, failing the request when absent.
func (s *Server) actor(c *gin.Context) (string, bool) {
	actor := c.GetHeader(actorHeader)
	if actor == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "missing " + actorHeader + " header",
		})
		return "", false
	}
	return actor, true
}

// writeError maps the error taxonomy onto distinct responses, so the UI can
// show "daily limit reached" rather than a generic failure.
func (s *Server) writeError(c *gin.Context, err error) {
	code := check.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case check.CodeNotFound:
		status = http.StatusNotFound
	case check.CodeNotParticipant:
		status = http.StatusForbidden
	case check.CodeQuotaExceeded:
		status = http.StatusTooManyRequests
	case check.CodeExchangeBusy, check.CodeAlreadyResolved:
		status = http.StatusConflict
	case check.CodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	}

	body := gin.H{"error": err.Error(), "code": string(code)}
	if won := check.ResolvedStatus(err); won != "" {
		body["resolved_as"] = string(won)
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
		body = gin.H{"error": "internal error"}
	}
	c.JSON(status, body)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.hub.Close()
		return srv.Shutdown(context.Background())
	}
}
