package handler

import (
	"net/http"
	"strconv"
	"time"

	"habitloop/internal/model"
	"habitloop/internal/service/habits"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HabitHandler struct {
	svc    *habits.Service
	logger *zap.Logger
}

func NewHabitHandler(svc *habits.Service, logger *zap.Logger) *HabitHandler {
	return &HabitHandler{svc: svc, logger: logger}
}

type createHabitRequest struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	TargetFrequency      int    `json:"target_frequency"`
	CheckInTime          string `json:"check_in_time"`
	FollowUpDelayMinutes *int   `json:"follow_up_delay_minutes"`
}

func (h *HabitHandler) CreateHabit(c *gin.Context) {
	var req createHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("CreateHabit: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	habit, err := h.svc.Create(c.Request.Context(), ownerID(c), habits.CreateInput{
		Name:                 req.Name,
		Description:          req.Description,
		TargetFrequency:      req.TargetFrequency,
		CheckInTime:          req.CheckInTime,
		FollowUpDelayMinutes: req.FollowUpDelayMinutes,
	})
	if err != nil {
		h.logger.Warn("CreateHabit: failed", zap.String("name", req.Name), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"habit": habit})
}

func (h *HabitHandler) ListHabits(c *gin.Context) {
	activeOnly := c.DefaultQuery("active_only", "true") != "false"

	list, err := h.svc.List(c.Request.Context(), ownerID(c), activeOnly)
	if err != nil {
		h.logger.Error("ListHabits: failed to fetch habits", zap.Error(err))
		respondError(c, err)
		return
	}
	if list == nil {
		list = []model.Habit{}
	}
	c.JSON(http.StatusOK, gin.H{"habits": list})
}

func (h *HabitHandler) GetHabit(c *gin.Context) {
	habitID, ok := pathID(c, "id")
	if !ok {
		return
	}

	habit, err := h.svc.Get(c.Request.Context(), habitID, ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit": habit})
}

type updateHabitRequest struct {
	Name                 *string `json:"name"`
	Description          *string `json:"description"`
	TargetFrequency      *int    `json:"target_frequency"`
	CurrentFrequency     *int    `json:"current_frequency"`
	CheckInTime          *string `json:"check_in_time"`
	FollowUpDelayMinutes *int    `json:"follow_up_delay_minutes"`
	ProgressionStartDate *string `json:"progression_start_date"`
}

func (h *HabitHandler) UpdateHabit(c *gin.Context) {
	habitID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("UpdateHabit: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	patch := model.HabitUpdate{
		Name:                 req.Name,
		Description:          req.Description,
		TargetFrequency:      req.TargetFrequency,
		CurrentFrequency:     req.CurrentFrequency,
		CheckInTime:          req.CheckInTime,
		FollowUpDelayMinutes: req.FollowUpDelayMinutes,
	}
	if req.ProgressionStartDate != nil {
		d, err := time.Parse(model.DateLayout, *req.ProgressionStartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid progression_start_date"})
			return
		}
		patch.ProgressionStartDate = &d
	}

	updated, err := h.svc.Update(c.Request.Context(), habitID, ownerID(c), patch)
	if err != nil {
		h.logger.Warn("UpdateHabit: failed", zap.Int64("habit_id", habitID), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *HabitHandler) DeactivateHabit(c *gin.Context) {
	habitID, ok := pathID(c, "id")
	if !ok {
		return
	}

	deactivated, err := h.svc.Deactivate(c.Request.Context(), habitID, ownerID(c))
	if err != nil {
		h.logger.Error("DeactivateHabit: failed", zap.Int64("habit_id", habitID), zap.Error(err))
		respondError(c, err)
		return
	}
	if !deactivated {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.logger.Info("DeactivateHabit: success", zap.Int64("habit_id", habitID))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
