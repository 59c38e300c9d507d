package api

import (
	"errors"
	"net/http"
	"strconv"

	"TH_treasure_hunt/internal/geo"
	"TH_treasure_hunt/internal/service"
	"TH_treasure_hunt/pkg/auth"
	"TH_treasure_hunt/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type apiError struct {
	status int
	code   string
}

var errorTable = []struct {
	err error
	apiError
}{
	{service.ErrNotRegistered, apiError{http.StatusForbidden, "not_registered"}},
	{service.ErrNotCompleted, apiError{http.StatusForbidden, "not_completed"}},
	{service.ErrNotStartedYet, apiError{http.StatusConflict, "not_started"}},
	{service.ErrHuntEnded, apiError{http.StatusConflict, "hunt_ended"}},
	{service.ErrHuntCompleted, apiError{http.StatusConflict, "hunt_completed"}},
	{service.ErrAlreadyRegistered, apiError{http.StatusConflict, "already_registered"}},
	{service.ErrAddressTaken, apiError{http.StatusConflict, "address_taken"}},
	{service.ErrClaimInProgress, apiError{http.StatusConflict, "claim_in_progress"}},
	{service.ErrVerificationInFlight, apiError{http.StatusConflict, "verification_in_progress"}},
	{service.ErrClueAlreadySolved, apiError{http.StatusConflict, "clue_already_solved"}},
	{service.ErrClueNotActive, apiError{http.StatusConflict, "clue_not_active"}},
	{service.ErrAttemptsExhausted, apiError{http.StatusGone, "attempts_exhausted"}},
	{service.ErrHuntNotFound, apiError{http.StatusNotFound, "hunt_not_found"}},
	{service.ErrClueNotFound, apiError{http.StatusNotFound, "clue_not_found"}},
	{service.ErrInvalidAddress, apiError{http.StatusBadRequest, "invalid_address"}},
	{service.ErrInvalidHunt, apiError{http.StatusBadRequest, "invalid_hunt"}},
	{geo.ErrInvalidFix, apiError{http.StatusBadRequest, "invalid_location"}},
	{service.ErrLedgerWrite, apiError{http.StatusBadGateway, "ledger_unavailable"}},
	{service.ErrLedgerUnavailable, apiError{http.StatusBadGateway, "ledger_unavailable"}},
	{service.ErrContentStore, apiError{http.StatusBadGateway, "content_unavailable"}},
	{service.ErrVerificationUnavailable, apiError{http.StatusServiceUnavailable, "verification_unavailable"}},
	{service.ErrRiddlesDisabled, apiError{http.StatusServiceUnavailable, "riddles_disabled"}},
}

// classify maps a service error to a status and a stable code. Anything it
// does not know, repository.ErrOutOfOrder included, is an internal error.
func classify(err error) apiError {
	if geo.IsLocationError(err) {
		return apiError{http.StatusPreconditionRequired, "location_required"}
	}
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.apiError
		}
	}
	return apiError{http.StatusInternalServerError, "internal_error"}
}

func errorBody(err error) (int, gin.H) {
	e := classify(err)
	body := gin.H{"error": e.code}

	switch e.status {
	case http.StatusInternalServerError:
		body["message"] = "internal server error"
	case http.StatusGone:
		body["message"] = err.Error()
		body["attempts_remaining"] = 0
	case http.StatusPreconditionRequired:
		body["message"] = err.Error()
		if errors.Is(err, geo.ErrPermissionDenied) {
			body["reason"] = "permission_denied"
		} else {
			body["reason"] = "position_unavailable"
		}
	default:
		body["message"] = err.Error()
	}

	return e.status, body
}

func writeError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		logger.Logger().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, body)
}

func participantID(c *gin.Context) (string, bool) {
	user, ok := auth.Participant(c)
	if !ok {
		logger.Logger().Error("participant not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return "", false
	}
	return user.ParticipantID(), true
}

func huntIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("hunt_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hunt_id"})
		return 0, false
	}
	return id, true
}
