package model

import "time"

const MaxAttempts = 3

type VerificationStatus string

const (
	StatusIdle             VerificationStatus = "idle"
	StatusAwaitingLocation VerificationStatus = "awaiting_location"
	StatusVerifying        VerificationStatus = "verifying"
	StatusSuccess          VerificationStatus = "success"
	StatusFailure          VerificationStatus = "failure"
	StatusExhausted        VerificationStatus = "exhausted"
	StatusCompleted        VerificationStatus = "completed"
)

type ClueState struct {
	HuntID            int64
	ParticipantID     string
	Index             int
	TotalClues        int
	AttemptsRemaining int
	Status            VerificationStatus
	Redirect          bool
	Solved            bool
	HasLocation       bool
	Clue              *Clue
}

type VerificationResult struct {
	Passed            bool
	Status            VerificationStatus
	AttemptsRemaining int
	NextIndex         int
	Completed         bool
	AdvanceAfter      time.Duration
	DistanceMeters    *float64
}
