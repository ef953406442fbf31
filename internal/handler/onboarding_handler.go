package handler

import (
	"net/http"

	"habitloop/internal/service/onboarding"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OnboardingHandler struct {
	svc    *onboarding.Service
	logger *zap.Logger
}

func NewOnboardingHandler(svc *onboarding.Service, logger *zap.Logger) *OnboardingHandler {
	return &OnboardingHandler{svc: svc, logger: logger}
}

func (h *OnboardingHandler) Setup(c *gin.Context) {
	result, err := h.svc.EnsureSetup(c.Request.Context(), ownerID(c))
	if err != nil {
		h.logger.Error("Setup: onboarding failed", zap.Error(err))
		respondError(c, err)
		return
	}

	if result.AlreadySetUp {
		c.JSON(http.StatusOK, gin.H{"result": result})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"result": result})
}
