package model

import (
	"time"

	"github.com/google/uuid"
)

type Progress struct {
	HuntID        int64
	ParticipantID string
	Solved        []int
	Registered    bool
	Completed     bool
}

func (p *Progress) NextIndex() int {
	return len(p.Solved) + 1
}

type Registration struct {
	HuntID        int64
	ParticipantID string
	Address       string
	Token         string
	RegisteredAt  time.Time
}

type ClaimStatus string

const (
	ClaimStatusPending   ClaimStatus = "pending"
	ClaimStatusConfirmed ClaimStatus = "confirmed"
)

type Claim struct {
	ClaimID       uuid.UUID
	HuntID        int64
	ParticipantID string
	Address       string
	Status        ClaimStatus
	ClaimedAt     time.Time
}
