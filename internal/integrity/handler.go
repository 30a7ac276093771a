package integrity

import (
	"net/http"
	"strconv"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/httpx"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

// Handler exposes the checks for account review.
type Handler struct {
	guard *Guard
	log   *logger.Logger
}

func NewHandler(guard *Guard, log *logger.Logger) *Handler {
	return &Handler{guard: guard, log: log}
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	g := admin.Group("/integrity")
	g.GET("/denials", h.Denials)
	g.GET("/voters/:id", h.Voter)
	g.GET("/candidates/:id/coordination", h.Coordination)
}

func (h *Handler) Denials(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	out, err := h.guard.Denials(c.Request.Context(), limit)
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Voter reports the trust score of a voter. With ?candidate= it also
// reports the voter's bias towards that candidate.
func (h *Handler) Voter(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	score, err := h.guard.TrustScore(ctx, id)
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	body := gin.H{"voterId": id, "trust": score}

	if cand := c.Query("candidate"); cand != "" {
		bias, err := h.guard.Bias(ctx, id, cand, DefaultBiasMinVotes, DefaultBiasThreshold)
		if err != nil {
			httpx.Error(c, h.log, err)
			return
		}
		body["bias"] = bias
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) Coordination(c *gin.Context) {
	res, err := h.guard.Coordination(c.Request.Context(), c.Param("id"),
		DefaultCoordinationWindow, DefaultCoordinationMinUsers, DefaultCoordinationMinVotes)
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
