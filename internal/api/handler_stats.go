package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/calendar"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/parse"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/stats"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/store"
)

type dailyEntry struct {
	Date    calendar.Date `json:"date"`
	Seconds int64         `json:"seconds"`
	Hours   float64       `json:"hours"`
}

type dailyStatsResponse struct {
	MemberID     string        `json:"member_id"`
	MemberName   string        `json:"member_name,omitempty"`
	Timezone     string        `json:"timezone"`
	From         calendar.Date `json:"from"`
	To           calendar.Date `json:"to"`
	Days         []dailyEntry  `json:"days"`
	TotalSeconds int64         `json:"total_seconds"`
	TotalText    string        `json:"total_text"`
}

// GetDailyStats returns the member's zero-filled daily voice time.
// Query: days=N for the last N days plus today, or from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) GetDailyStats(c *gin.Context) {
	memberID, err := parse.MemberID(c.Param("member_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.gate.Ignored(memberID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot generate stats for ignored members"})
		return
	}

	ctx := c.Request.Context()
	member, err := h.store.FindMember(ctx, memberID)
	switch {
	case err == nil && member.Bot:
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot generate stats for bots"})
		return
	case err != nil && !errors.Is(err, store.ErrMemberNotFound):
		h.logger.Warn("failed to load member", zap.String("member_id", memberID.String()), zap.Error(err))
	}

	today := h.stats.Today(h.now())
	from, to, err := parse.StatsRange(c.Query("days"), c.Query("from"), c.Query("to"), today)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	series, err := h.stats.Daily(ctx, memberID, from, to)
	if err != nil {
		h.logger.Error("failed to build daily stats", zap.String("member_id", memberID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}

	resp := dailyStatsResponse{
		MemberID: memberID.String(),
		Timezone: h.stats.Location().String(),
		From:     from,
		To:       to,
		Days:     make([]dailyEntry, 0, len(series)),
	}
	for _, d := range series {
		resp.Days = append(resp.Days, dailyEntry{
			Date:    d.Date,
			Seconds: int64(d.Duration / time.Second),
			Hours:   d.Duration.Hours(),
		})
	}
	total := calendar.Total(series)
	resp.TotalSeconds = int64(total / time.Second)
	resp.TotalText = stats.FormatTotal(total)

	if member != nil {
		resp.MemberName = member.DisplayName
	}

	c.JSON(http.StatusOK, resp)
}
