package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

// checkView is the wire form of a check.
type checkView struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Receiver   string    `json:"receiver"`
	Message    string    `json:"message,omitempty"`
	SentAt     time.Time `json:"sent_at"`
	Deadline   time.Time `json:"deadline"`
	Status     string    `json:"status"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
	RemainingS int64     `json:"remaining_seconds"`
}

func (s *Server) viewCheck(c check.Check) checkView {
	return checkView{
		ID:         c.ID,
		Sender:     c.Sender,
		Receiver:   c.Receiver,
		Message:    c.Message,
		SentAt:     c.SentAt,
		Deadline:   c.Deadline,
		Status:     string(c.Status),
		ResolvedAt: c.ResolvedAt,
		RemainingS: int64(c.Remaining(s.engine.Now()).Seconds()),
	}
}

type userView struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	SentToday int    `json:"sent_today"`
	Online    bool   `json:"online"`
}

type sendRequest struct {
	Receiver string `json:"receiver" binding:"required"`
	Message  string `json:"message"`
}

func (s *Server) handleSend(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver is required"})
		return
	}

	created, err := s.engine.Send(c.Request.Context(), actor, req.Receiver, req.Message)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.viewCheck(created))
}

func (s *Server) handleConfirm(c *gin.Context) {
	s.handleResolve(c, s.engine.Confirm)
}

func (s *Server) handleSnooze(c *gin.Context) {
	s.handleResolve(c, s.engine.Snooze)
}

type resolveFunc func(ctx context.Context, actor, checkID string) (check.ScoreDelta, error)

func (s *Server) handleResolve(c *gin.Context, fn resolveFunc) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	delta, err := fn(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	resolved, err := s.store.GetCheck(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"check": s.viewCheck(resolved),
		"awards": gin.H{
			"sender":   delta.Sender,
			"receiver": delta.Receiver,
		},
	})
}

func (s *Server) handleListChecks(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		checks []check.Check
		err    error
	)
	switch box := c.DefaultQuery("box", "in"); box {
	case "in":
		checks, err = s.store.ListPendingByReceiver(ctx, actor)
	case "out":
		checks, err = s.store.ListPendingBySender(ctx, actor)
	case "history":
		checks, err = s.store.ListByUser(ctx, actor, 100)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "box must be in, out or history"})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	views := make([]checkView, len(checks))
	for i, ch := range checks {
		views[i] = s.viewCheck(ch)
	}
	c.JSON(http.StatusOK, gin.H{"checks": views})
}

// handleState returns the snapshot a client renders from: every user with
// score and presence, plus the caller's pending checks in both directions.
func (s *Server) handleState(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	userViews := make([]userView, len(users))
	for i, u := range users {
		userViews[i] = userView{
			ID:        u.ID,
			Score:     u.Score,
			SentToday: u.SentToday,
			Online:    s.presence.online(u.ID),
		}
	}

	body := gin.H{"users": userViews}

	if actor := c.GetHeader(actorHeader); actor != "" {
		incoming, err := s.store.ListPendingByReceiver(ctx, actor)
		if err != nil {
			s.writeError(c, err)
			return
		}
		outgoing, err := s.store.ListPendingBySender(ctx, actor)
		if err != nil {
			s.writeError(c, err)
			return
		}
		in := make([]checkView, len(incoming))
		for i, ch := range incoming {
			in[i] = s.viewCheck(ch)
		}
		out := make([]checkView, len(outgoing))
		for i, ch := range outgoing {
			out[i] = s.viewCheck(ch)
		}
		body["incoming"] = in
		body["outgoing"] = out
	}

	c.JSON(http.StatusOK, body)
}
