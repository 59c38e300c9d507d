package api

import (
	"fmt"
	"net/http"
	"testing"

	"TH_treasure_hunt/internal/geo"
	"TH_treasure_hunt/internal/repository"
	"TH_treasure_hunt/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestErrorBody(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"Location denied", geo.ErrPermissionDenied, http.StatusPreconditionRequired, "location_required"},
		{"Location unavailable", fmt.Errorf("wrapped: %w", geo.ErrPositionUnavailable), http.StatusPreconditionRequired, "location_required"},
		{"Not registered", service.ErrNotRegistered, http.StatusForbidden, "not_registered"},
		{"Not started", service.ErrNotStartedYet, http.StatusConflict, "not_started"},
		{"Ended", service.ErrHuntEnded, http.StatusConflict, "hunt_ended"},
		{"Address taken", service.ErrAddressTaken, http.StatusConflict, "address_taken"},
		{"Exhausted", service.ErrAttemptsExhausted, http.StatusGone, "attempts_exhausted"},
		{"Ledger write", fmt.Errorf("%w: rpc timeout", service.ErrLedgerWrite), http.StatusBadGateway, "ledger_unavailable"},
		{"Ledger read", fmt.Errorf("%w: rpc timeout", service.ErrLedgerUnavailable), http.StatusBadGateway, "ledger_unavailable"},
		{"Out of order", fmt.Errorf("got 3, expected 2: %w", repository.ErrOutOfOrder), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorBody(tt.err)
			assert.Equal(t, tt.expectedStatus, status)
			assert.Equal(t, tt.expectedCode, body["error"])
			if status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body["message"])
			}
			if status == http.StatusGone {
				assert.Equal(t, 0, body["attempts_remaining"])
			}
		})
	}
}
