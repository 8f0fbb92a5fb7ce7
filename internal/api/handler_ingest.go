package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/occupancy"
)

// IngestTokenHeader carries the shared secret for the ingest endpoint.
const IngestTokenHeader = "X-Ingest-Token"

type channelPayload struct {
	ID   snowflake.ID `json:"id" binding:"required"`
	Name string       `json:"name"`
}

type voiceStateRequest struct {
	MemberID   snowflake.ID    `json:"member_id" binding:"required"`
	MemberName string          `json:"member_name"`
	Bot        bool            `json:"bot"`
	Before     *channelPayload `json:"before"`
	After      *channelPayload `json:"after"`
	At         *time.Time      `json:"at"`
	Metadata   map[string]any  `json:"metadata"`
}

func (p *channelPayload) channel() *occupancy.Channel {
	if p == nil {
		return nil
	}
	return &occupancy.Channel{ID: p.ID, Name: p.Name}
}

// requireIngestToken rejects requests without the configured token. An empty
// token disables the check.
func (h *Handler) requireIngestToken(c *gin.Context) {
	if h.ingestToken == "" {
		c.Next()
		return
	}
	got := c.GetHeader(IngestTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.ingestToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid ingest token"})
		return
	}
	c.Next()
}

// PostVoiceState feeds one voice state update into the tracker.
func (h *Handler) PostVoiceState(c *gin.Context) {
	var req voiceStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	at := h.now()
	if req.At != nil && !req.At.IsZero() {
		at = *req.At
	}

	ev, ok := occupancy.Classify(occupancy.VoiceState{
		MemberID:   req.MemberID,
		MemberName: req.MemberName,
		Bot:        req.Bot,
		Before:     req.Before.channel(),
		After:      req.After.channel(),
		At:         at,
		Metadata:   req.Metadata,
	})
	if !ok {
		c.JSON(http.StatusAccepted, gin.H{"event": "none"})
		return
	}
	if !h.gate.Allow(ev) {
		c.JSON(http.StatusAccepted, gin.H{"event": "ignored"})
		return
	}

	// The interval must be stored even if the caller hangs up.
	h.tracker.Handle(context.WithoutCancel(c.Request.Context()), ev)
	c.JSON(http.StatusAccepted, gin.H{"event": ev.Kind.String()})
}
