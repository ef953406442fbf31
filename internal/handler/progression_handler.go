package handler

import (
	"net/http"

	"habitloop/internal/service/progression"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProgressionHandler struct {
	svc    *progression.Service
	logger *zap.Logger
}

func NewProgressionHandler(svc *progression.Service, logger *zap.Logger) *ProgressionHandler {
	return &ProgressionHandler{svc: svc, logger: logger}
}

func (h *ProgressionHandler) GetProgressionStatus(c *gin.Context) {
	habitID, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.svc.Status(c.Request.Context(), habitID, ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progression": status})
}

// EvaluateProgression runs the weekly pass on demand. The worker runs
// the same pass when the WEEKLY_PROGRESSION trigger fires.
func (h *ProgressionHandler) EvaluateProgression(c *gin.Context) {
	results, err := h.svc.Evaluate(c.Request.Context(), ownerID(c))
	if err != nil {
		h.logger.Error("EvaluateProgression: failed", zap.Error(err))
		respondError(c, err)
		return
	}

	h.logger.Info("EvaluateProgression: done",
		zap.String("owner_id", ownerID(c)),
		zap.Int("habits_evaluated", len(results)),
	)
	c.JSON(http.StatusOK, gin.H{"decisions": results})
}
