package ranking

import (
	"net/http"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/httpx"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

// Handler serves the leaderboards.
type Handler struct {
	engine *Engine
	log    *logger.Logger
}

func NewHandler(engine *Engine, log *logger.Logger) *Handler {
	return &Handler{engine: engine, log: log}
}

// RegisterRoutes mounts the public routes on the /categories/:category group.
func (h *Handler) RegisterRoutes(category *gin.RouterGroup) {
	category.GET("/leaderboard", h.Current)
	category.GET("/leaderboard/personal", h.Personal)
	category.GET("/leaderboard/history", h.Historical)
	category.GET("/leaderboard/dates", h.KeyDates)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/stats", h.Stats)
}

func categoryParam(c *gin.Context) candidate.Category {
	return candidate.Category(c.Param("category"))
}

func (h *Handler) Current(c *gin.Context) {
	entries, err := h.engine.CurrentLeaderboard(c.Request.Context(), categoryParam(c))
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) Personal(c *gin.Context) {
	voterID := httpx.VoterID(c)
	if voterID == "" {
		httpx.Error(c, h.log, apperr.InvalidInput("personal leaderboard requires a signed-in voter"))
		return
	}
	entries, err := h.engine.PersonalLeaderboard(c.Request.Context(), voterID, categoryParam(c))
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Historical answers ?at=<RFC 3339 timestamp>, defaulting to now.
func (h *Handler) Historical(c *gin.Context) {
	asOf := time.Now()
	if at := c.Query("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			httpx.Error(c, h.log, apperr.InvalidInput("at must be an RFC 3339 timestamp"))
			return
		}
		asOf = parsed
	}
	entries, err := h.engine.HistoricalLeaderboard(c.Request.Context(), categoryParam(c), asOf)
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"at": asOf.UTC(), "entries": entries})
}

func (h *Handler) KeyDates(c *gin.Context) {
	dates, err := h.engine.KeyHistoricalDates(c.Request.Context(), categoryParam(c))
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dates)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.engine.CategoryStats(c.Request.Context())
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
