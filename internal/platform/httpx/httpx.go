// Package httpx holds the gin helpers shared by every handler.
package httpx

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/apperr"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/gin-gonic/gin"
)

// VoterHeader carries the authenticated voter id set by the auth proxy.
const VoterHeader = "X-Voter-ID"

// VoterID returns the voter id of the request, or "" for anonymous callers.
func VoterID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(VoterHeader))
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAlreadyVoted:
		return http.StatusConflict
	case apperr.KindExpired:
		return http.StatusGone
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindInsufficientCandidatePool:
		return http.StatusServiceUnavailable
	case apperr.KindIntegrityDenied:
		return http.StatusForbidden
	case apperr.KindTransientUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error writes err as a JSON error response. Messages of non-recoverable
// kinds are logged and replaced by a generic text.
func Error(c *gin.Context, log *logger.Logger, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)
	body := gin.H{"error": err.Error(), "kind": kind.String()}

	if !kind.Recoverable() {
		log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"kind", kind.String(),
			"error", err)
		if kind != apperr.KindTransientUpstream {
			body["error"] = "internal error"
		}
	}
	if kind == apperr.KindIntegrityDenied {
		var e *apperr.Error
		if errors.As(err, &e) {
			body["score"] = e.Score
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// AdminOnly guards the administrative routes with a static bearer token.
// An empty configured token disables the admin surface.
func AdminOnly(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin token required"})
			return
		}
		c.Next()
	}
}
