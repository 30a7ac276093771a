package voter

import (
	"net/http"
	"strconv"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/httpx"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo *Repository
	log  *logger.Logger
}

func NewHandler(repo *Repository, log *logger.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	voters := api.Group("/voters")
	voters.GET("/top", h.Top)
	voters.GET("/me", h.Me)
	voters.PUT("/me/visibility", h.SetVisibility)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.POST("/voters", h.Register)
}

// Top answers ?limit=, 1 to 100.
func (h *Handler) Top(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, err := h.repo.Top(c.Request.Context(), limit)
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) Me(c *gin.Context) {
	id := httpx.VoterID(c)
	if id == "" {
		httpx.Error(c, h.log, apperr.InvalidInput("sign in required"))
		return
	}
	v, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type visibilityRequest struct {
	Show *bool `json:"show" binding:"required"`
}

func (h *Handler) SetVisibility(c *gin.Context) {
	id := httpx.VoterID(c)
	if id == "" {
		httpx.Error(c, h.log, apperr.InvalidInput("sign in required"))
		return
	}
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, h.log, apperr.InvalidInput("invalid body: %v", err))
		return
	}
	if err := h.repo.SetVisibility(c.Request.Context(), id, *req.Show); err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "showInLeaderboard": *req.Show})
}

// Register is called by the auth proxy each time a user signs in.
func (h *Handler) Register(c *gin.Context) {
	var reg Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		httpx.Error(c, h.log, apperr.InvalidInput("invalid body: %v", err))
		return
	}
	v, err := h.repo.Register(c.Request.Context(), reg)
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
