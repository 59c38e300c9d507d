package api

import (
	"fmt"
	"net/http"
	"strconv"

	"TH_treasure_hunt/internal/geo"
	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/service"
	"TH_treasure_hunt/pkg/auth"
	"TH_treasure_hunt/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type clueRoutes struct {
	engine service.VerificationEngineI
}

func NewClueRoutes(handler *gin.RouterGroup, engine service.VerificationEngineI, a *auth.TelegramAuth) {
	r := &clueRoutes{engine: engine}
	h := handler.Group("/hunts/:hunt_id")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("/clues/:index", r.Enter)
		h.POST("/clues/:index/verify", r.Verify)
		h.POST("/location", r.ReportLocation)
	}
}

type ClueStateResponse struct {
	HuntID            int64                    `json:"hunt_id"`
	Index             int                      `json:"index"`
	TotalClues        int                      `json:"total_clues"`
	AttemptsRemaining int                      `json:"attempts_remaining"`
	Status            model.VerificationStatus `json:"status"`
	Solved            bool                     `json:"solved"`
	HasLocation       bool                     `json:"has_location"`
	Redirect          bool                     `json:"redirect"`
	Location          string                   `json:"location,omitempty"`
	Clue              *model.Clue              `json:"clue,omitempty"`
}

func newClueStateResponse(s *model.ClueState) ClueStateResponse {
	out := ClueStateResponse{
		HuntID:            s.HuntID,
		Index:             s.Index,
		TotalClues:        s.TotalClues,
		AttemptsRemaining: s.AttemptsRemaining,
		Status:            s.Status,
		Solved:            s.Solved,
		HasLocation:       s.HasLocation,
		Redirect:          s.Redirect,
		Clue:              s.Clue,
	}
	if s.Redirect {
		out.Location = fmt.Sprintf("/api/v1/hunts/%d/clues/%d", s.HuntID, s.Index)
	}
	return out
}

type VerifyRequest struct {
	Answer string `json:"answer"`
}

type VerifyResponse struct {
	Passed            bool                     `json:"passed"`
	Status            model.VerificationStatus `json:"status"`
	AttemptsRemaining int                      `json:"attempts_remaining"`
	NextIndex         int                      `json:"next_index,omitempty"`
	Completed         bool                     `json:"completed"`
	AdvanceAfterMs    int64                    `json:"advance_after_ms,omitempty"`
	DistanceMeters    *float64                 `json:"distance_meters,omitempty"`
}

func newVerifyResponse(r *model.VerificationResult) VerifyResponse {
	out := VerifyResponse{
		Passed:            r.Passed,
		Status:            r.Status,
		AttemptsRemaining: r.AttemptsRemaining,
		NextIndex:         r.NextIndex,
		Completed:         r.Completed,
		DistanceMeters:    r.DistanceMeters,
	}
	if r.Passed && !r.Completed {
		out.AdvanceAfterMs = r.AdvanceAfter.Milliseconds()
	}
	return out
}

// LocationRequest carries either a fix or the device error that prevented one.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Error     string   `json:"error"`
}

// failure is nil when the device sent a fix.
func (l LocationRequest) failure() error {
	switch l.Error {
	case "":
		return nil
	case "permission_denied":
		return geo.ErrPermissionDenied
	default:
		return geo.ErrPositionUnavailable
	}
}

func clueIndexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid clue index"})
		return 0, false
	}
	return index, true
}

// Enter serves the clue screen. Skipping ahead answers with redirect=true and
// the location of the clue the participant has to solve first.
func (r *clueRoutes) Enter(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	huntID, ok := huntIDParam(c)
	if !ok {
		return
	}
	index, ok := clueIndexParam(c)
	if !ok {
		return
	}

	state, err := r.engine.Enter(c.Request.Context(), huntID, pid, index)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newClueStateResponse(state))
}

func (r *clueRoutes) Verify(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	huntID, ok := huntIDParam(c)
	if !ok {
		return
	}
	index, ok := clueIndexParam(c)
	if !ok {
		return
	}

	var req VerifyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Logger().Info("failed to bind request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	result, err := r.engine.Submit(c.Request.Context(), huntID, pid, index, req.Answer)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newVerifyResponse(result))
}

func (r *clueRoutes) ReportLocation(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	huntID, ok := huntIDParam(c)
	if !ok {
		return
	}

	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Logger().Info("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	failure := req.failure()
	var fix *model.Coordinates
	if failure == nil {
		if req.Latitude == nil || req.Longitude == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required"})
			return
		}
		fix = &model.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	if err := r.engine.ReportLocation(c.Request.Context(), huntID, pid, fix, failure); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"has_location": fix != nil})
}
