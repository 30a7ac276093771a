package arena

import (
	"fmt"
	"net/http"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/httpx"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
	log *logger.Logger
}

func NewHandler(svc *Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts the comparison flow. generateLimit and voteLimit
// guard the two expensive calls.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, generateLimit, voteLimit gin.HandlerFunc) {
	api.POST("/categories/:category/comparisons", generateLimit, h.Start)
	api.GET("/comparisons/:id/artifacts/:side", h.Artifact)
	api.POST("/comparisons/:id/vote", voteLimit, h.Vote)
}

type startRequest struct {
	Text string `json:"text"`
}

type startResponse struct {
	SessionID string `json:"sessionId"`
	AudioA    string `json:"audioA"`
	AudioB    string `json:"audioB"`
	ExpiresIn int    `json:"expiresIn"`
}

func artifactURL(id, side string) string {
	return fmt.Sprintf("/api/comparisons/%s/artifacts/%s", id, side)
}

func (h *Handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, h.log, apperr.InvalidInput("invalid body: %v", err))
		return
	}
	cmp, err := h.svc.StartComparison(c.Request.Context(), Request{
		VoterID:  httpx.VoterID(c),
		Input:    req.Text,
		Category: candidate.Category(c.Param("category")),
	})
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, startResponse{
		SessionID: cmp.SessionID,
		AudioA:    artifactURL(cmp.SessionID, "a"),
		AudioB:    artifactURL(cmp.SessionID, "b"),
		ExpiresIn: int(cmp.ExpiresIn.Seconds()),
	})
}

func (h *Handler) Artifact(c *gin.Context) {
	art, err := h.svc.FetchArtifact(c.Param("id"), c.Param("side"))
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	rc, err := art.Open()
	if err != nil {
		// swept between resolve and open
		httpx.Error(c, h.log, apperr.NotFound("audio for session %q is gone", c.Param("id")))
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, art.ContentType(), rc, nil)
}

type voteRequest struct {
	Side string `json:"side"`
}

func (h *Handler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, h.log, apperr.InvalidInput("invalid body: %v", err))
		return
	}
	res, err := h.svc.SubmitChoice(c.Request.Context(), Choice{
		SessionID: c.Param("id"),
		Side:      req.Side,
		VoterID:   httpx.VoterID(c),
	})
	if err != nil {
		httpx.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
