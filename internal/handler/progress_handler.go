package handler

import (
	"net/http"
	"time"

	"habitloop/internal/model"
	"habitloop/internal/service/progress"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProgressHandler struct {
	svc    *progress.Service
	logger *zap.Logger
}

func NewProgressHandler(svc *progress.Service, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{svc: svc, logger: logger}
}

type logProgressRequest struct {
	Completed      bool   `json:"completed"`
	Date           string `json:"date"`
	ExcuseGiven    string `json:"excuse_given"`
	ExcuseCategory string `json:"excuse_category"`
	AgentMessage   string `json:"agent_message"`
	UserResponse   string `json:"user_response"`
}

func (h *ProgressHandler) LogProgress(c *gin.Context) {
	habitID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req logProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("LogProgress: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in := progress.LogInput{
		Completed:      req.Completed,
		ExcuseGiven:    req.ExcuseGiven,
		ExcuseCategory: req.ExcuseCategory,
		AgentMessage:   req.AgentMessage,
		UserResponse:   req.UserResponse,
	}
	if req.Date != "" {
		d, err := time.Parse(model.DateLayout, req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		in.Date = &d
	}

	entry, err := h.svc.Log(c.Request.Context(), habitID, ownerID(c), in)
	if err != nil {
		h.logger.Warn("LogProgress: failed", zap.Int64("habit_id", habitID), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

func (h *ProgressHandler) GetProgressRange(c *gin.Context) {
	habitID, ok := pathID(c, "id")
	if !ok {
		return
	}

	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -13)
	if s := c.Query("start"); s != "" {
		d, err := time.Parse(model.DateLayout, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date"})
			return
		}
		startDate = d
	}
	if s := c.Query("end"); s != "" {
		d, err := time.Parse(model.DateLayout, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date"})
			return
		}
		endDate = d
	}

	entries, err := h.svc.Range(c.Request.Context(), habitID, ownerID(c), startDate, endDate)
	if err != nil {
		h.logger.Error("GetProgressRange: failed", zap.Int64("habit_id", habitID), zap.Error(err))
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []model.ProgressEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *ProgressHandler) GetHabitStats(c *gin.Context) {
	habitID, ok := pathID(c, "id")
	if !ok {
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), habitID, ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *ProgressHandler) GetTodayOverview(c *gin.Context) {
	overview, err := h.svc.TodayOverview(c.Request.Context(), ownerID(c))
	if err != nil {
		h.logger.Error("GetTodayOverview: failed", zap.Error(err))
		respondError(c, err)
		return
	}
	if overview == nil {
		overview = []model.TodayProgress{}
	}
	c.JSON(http.StatusOK, gin.H{"progress": overview})
}
