package handler

import (
	"net/http"

	"habitloop/internal/service/scoring"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ScoreHandler struct {
	svc    *scoring.Service
	logger *zap.Logger
}

func NewScoreHandler(svc *scoring.Service, logger *zap.Logger) *ScoreHandler {
	return &ScoreHandler{svc: svc, logger: logger}
}

func (h *ScoreHandler) GetConsistency(c *gin.Context) {
	score, err := h.svc.Current(c.Request.Context(), ownerID(c))
	if err != nil {
		h.logger.Error("GetConsistency: failed", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"score": score})
}

func (h *ScoreHandler) GetBreakdown(c *gin.Context) {
	breakdown, err := h.svc.Breakdown(c.Request.Context(), ownerID(c))
	if err != nil {
		h.logger.Error("GetBreakdown: failed", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"breakdown": breakdown})
}
