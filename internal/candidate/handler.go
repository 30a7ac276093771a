package candidate

import (
	"net/http"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/httpx"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

// Handler exposes the administrative candidate routes.
type Handler struct {
	repo *Repository
	log  *logger.Logger
}

func NewHandler(repo *Repository, log *logger.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

// RegisterAdminRoutes mounts the handlers on an already guarded group.
func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/candidates", h.List)
	admin.PATCH("/candidates/:id", h.Update)
}

// List returns every candidate of ?category=, or all categories.
func (h *Handler) List(c *gin.Context) {
	categories := Categories
	if q := c.Query("category"); q != "" {
		categories = []Category{Category(q)}
	}
	all := make([]Candidate, 0)
	for _, cat := range categories {
		list, err := h.repo.ListByCategory(c.Request.Context(), cat)
		if err != nil {
			httpx.Error(c, h.log, err)
			return
		}
		all = append(all, list...)
	}
	c.JSON(http.StatusOK, all)
}

func (h *Handler) Update(c *gin.Context) {
	var patch Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		httpx.Error(c, h.log, apperr.InvalidInput("malformed candidate patch: %v", err))
		return
	}
	updated, err := h.repo.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	h.log.Info("candidate updated", "candidate", updated.ID, "active", updated.Active, "open", updated.Open)
	c.JSON(http.StatusOK, updated)
}
