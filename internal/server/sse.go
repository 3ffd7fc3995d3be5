package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleEvents streams engine events to the client as server-sent events.
// The caller counts as online while the stream is open. A client whose
// stream is dropped (slow consumer, hub shutdown) re-syncs from /v1/state
// and reconnects; events are observational, so a gap loses nothing the
// snapshot cannot restore.
func (s *Server) handleEvents(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	sub := s.hub.Subscribe()
	if sub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server shutting down"})
		return
	}
	defer sub.Cancel()

	s.presence.connect(actor)
	defer s.presence.disconnect(actor)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-sub.Events():
			if !open {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
