package rating

import (
	"net/http"
	"strconv"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/httpx"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

// Handler exposes the ledger to administrators.
type Handler struct {
	engine *Engine
	log    *logger.Logger
}

func NewHandler(engine *Engine, log *logger.Logger) *Handler {
	return &Handler{engine: engine, log: log}
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/votes", h.ListVotes)
	admin.GET("/ledger/:category/verify", h.Verify)
}

func (h *Handler) ListVotes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))
	out, err := h.engine.ListVotes(c.Request.Context(), page, size)
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Verify(c *gin.Context) {
	report, err := h.engine.VerifyLedger(c.Request.Context(), candidate.Category(c.Param("category")))
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consistent": report.Consistent(), "report": report})
}
