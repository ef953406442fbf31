package handler

import (
	"net/http"
	"time"

	"habitloop/internal/model"
	"habitloop/internal/service/contexts"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ContextHandler struct {
	svc    *contexts.Service
	logger *zap.Logger
}

func NewContextHandler(svc *contexts.Service, logger *zap.Logger) *ContextHandler {
	return &ContextHandler{svc: svc, logger: logger}
}

type createContextRequest struct {
	ContextType          string  `json:"context_type"`
	Description          string  `json:"description"`
	StartDate            string  `json:"start_date"`
	ExpectedEndDate      string  `json:"expected_end_date"`
	CheckInFrequencyDays *int    `json:"check_in_frequency_days"`
	RelatedHabits        []int64 `json:"related_habits"`
}

func (h *ContextHandler) CreateContext(c *gin.Context) {
	var req createContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("CreateContext: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in := contexts.CreateInput{
		ContextType:          req.ContextType,
		Description:          req.Description,
		CheckInFrequencyDays: req.CheckInFrequencyDays,
		RelatedHabits:        req.RelatedHabits,
	}
	if req.StartDate != "" {
		d, err := time.Parse(model.DateLayout, req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
		in.StartDate = &d
	}
	if req.ExpectedEndDate != "" {
		d, err := time.Parse(model.DateLayout, req.ExpectedEndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expected_end_date"})
			return
		}
		in.ExpectedEndDate = &d
	}

	cm, err := h.svc.Create(c.Request.Context(), ownerID(c), in)
	if err != nil {
		h.logger.Warn("CreateContext: failed", zap.String("context_type", req.ContextType), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"context": cm})
}

func (h *ContextHandler) ListActiveContexts(c *gin.Context) {
	active, err := h.svc.Active(c.Request.Context(), ownerID(c))
	if err != nil {
		h.logger.Error("ListActiveContexts: failed", zap.Error(err))
		respondError(c, err)
		return
	}
	if active == nil {
		active = []model.ContextMemory{}
	}
	c.JSON(http.StatusOK, gin.H{"contexts": active})
}

func (h *ContextHandler) ResolveContext(c *gin.Context) {
	contextID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resolved, err := h.svc.Resolve(c.Request.Context(), contextID, ownerID(c))
	if err != nil {
		h.logger.Error("ResolveContext: failed", zap.Int64("context_id", contextID), zap.Error(err))
		respondError(c, err)
		return
	}

	h.logger.Info("ResolveContext: done",
		zap.Int64("context_id", contextID),
		zap.Bool("resolved", resolved),
	)
	c.JSON(http.StatusOK, gin.H{"resolved": resolved})
}
