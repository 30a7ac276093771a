package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/sessions", h.List)
}

func (h *Handler) List(c *gin.Context) {
	sessions := h.manager.List()
	c.JSON(http.StatusOK, gin.H{"active": len(sessions), "sessions": sessions})
}
