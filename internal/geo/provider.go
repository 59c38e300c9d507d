// Package geo supplies participant positions and distance helpers.
package geo

import (
	"context"
	"errors"

	"TH_treasure_hunt/internal/model"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrInvalidFix          = errors.New("coordinates out of range")
)

// Provider returns one position fix per call.
type Provider interface {
	CurrentLocation(ctx context.Context, participantID string) (model.Coordinates, error)
}

// IsLocationError reports whether err means no position could be obtained.
func IsLocationError(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrPositionUnavailable)
}
