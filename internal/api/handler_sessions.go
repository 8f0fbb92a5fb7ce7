package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type openSessionResponse struct {
	MemberID       string    `json:"member_id"`
	MemberName     string    `json:"member_name"`
	ChannelID      string    `json:"channel_id"`
	ChannelName    string    `json:"channel_name"`
	StartedAt      time.Time `json:"started_at"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// GetOpenSessions lists who is in voice right now, ordered by member ID.
func (h *Handler) GetOpenSessions(c *gin.Context) {
	now := h.now()
	open := h.tracker.Open()

	resp := make([]openSessionResponse, 0, len(open))
	for _, s := range open {
		elapsed := now.Sub(s.Start)
		if elapsed < 0 {
			elapsed = 0
		}
		resp = append(resp, openSessionResponse{
			MemberID:       s.MemberID.String(),
			MemberName:     s.MemberName,
			ChannelID:      s.ChannelID.String(),
			ChannelName:    s.ChannelName,
			StartedAt:      s.Start.UTC(),
			ElapsedSeconds: int64(elapsed / time.Second),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

// Ping reports liveness and uptime.
func (h *Handler) Ping(c *gin.Context) {
	uptime := h.now().Sub(h.started)
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": int64(uptime / time.Second),
		"open_sessions":  len(h.tracker.Open()),
	})
}
