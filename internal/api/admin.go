package api

import (
	"net/http"

	"TH_treasure_hunt/internal/middleware"
	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/service"
	"TH_treasure_hunt/pkg/auth"
	"TH_treasure_hunt/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type adminRoutes struct {
	lifecycle service.LifecycleServiceI
	engine    service.VerificationEngineI
	riddles   service.RiddleServiceI
}

func NewAdminRoutes(
	handler *gin.RouterGroup,
	lifecycle service.LifecycleServiceI,
	engine service.VerificationEngineI,
	riddles service.RiddleServiceI,
	a *auth.TelegramAuth,
	authz *middleware.Authorization,
) {
	r := &adminRoutes{lifecycle: lifecycle, engine: engine, riddles: riddles}
	h := handler.Group("/admin")
	h.Use(a.TelegramAuthMiddleware(), authz.CreatorOnly())
	{
		h.POST("/hunts", r.CreateHunt)
		h.POST("/riddles", r.GenerateRiddles)
		h.DELETE("/hunts/:hunt_id/participants/:participant_id/attempts", r.ResetAttempts)
	}
}

func (r *adminRoutes) CreateHunt(c *gin.Context) {
	var draft model.HuntDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		logger.Logger().Info("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	hunt, err := r.lifecycle.CreateHunt(c.Request.Context(), &draft)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newHuntResponse(hunt))
}

type RiddlesRequest struct {
	Locations []string `json:"locations" binding:"required,min=1"`
	Themes    []string `json:"themes"`
}

func (r *adminRoutes) GenerateRiddles(c *gin.Context) {
	var req RiddlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Logger().Info("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	riddles, err := r.riddles.Generate(c.Request.Context(), req.Locations, req.Themes)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"riddles": riddles})
}

func (r *adminRoutes) ResetAttempts(c *gin.Context) {
	huntID, ok := huntIDParam(c)
	if !ok {
		return
	}
	pid := c.Param("participant_id")

	r.engine.ResetAttempts(huntID, pid)

	logger.Logger().Info("attempts reset",
		zap.Int64("hunt_id", huntID),
		zap.String("participant_id", pid))

	c.JSON(http.StatusOK, gin.H{
		"message":        "attempts reset successful",
		"hunt_id":        huntID,
		"participant_id": pid,
	})
}
