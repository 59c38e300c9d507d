package model

import (
	"strings"
	"time"
)

type Hunt struct {
	HuntID           int64
	ChainID          int64
	Name             string
	Description      string
	StartsAt         time.Time
	Duration         time.Duration
	ClueCount        int
	Reward           string
	Difficulty       string
	Category         string
	TeamsEnabled     bool
	MaxTeamSize      int
	Theme            string
	NFTMetadataURI   string
	CluesBlobID      string
	AnswersBlobID    string
	ParticipantCount int
	Winners          []string
	CreatedAt        time.Time
}

// EndsAt is the zero time for hunts without a duration.
func (h *Hunt) EndsAt() time.Time {
	if h.Duration <= 0 {
		return time.Time{}
	}
	return h.StartsAt.Add(h.Duration)
}

func (h *Hunt) HasStarted(now time.Time) bool {
	return !now.Before(h.StartsAt)
}

func (h *Hunt) HasEnded(now time.Time) bool {
	end := h.EndsAt()
	return !end.IsZero() && !now.Before(end)
}

func (h *Hunt) HasWinner(address string) bool {
	for _, w := range h.Winners {
		if strings.EqualFold(w, address) {
			return true
		}
	}
	return false
}

type HuntDraft struct {
	Name           string        `json:"name" validate:"required,max=120"`
	Description    string        `json:"description" validate:"required"`
	StartsAt       time.Time     `json:"starts_at" validate:"required"`
	DurationSecs   int64         `json:"duration_seconds" validate:"gte=0"`
	Reward         string        `json:"reward" validate:"required"`
	Difficulty     string        `json:"difficulty" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	Category       string        `json:"category"`
	TeamsEnabled   bool          `json:"teams_enabled"`
	MaxTeamSize    int           `json:"max_team_size" validate:"gte=0"`
	Theme          string        `json:"theme"`
	NFTMetadataURI string        `json:"nft_metadata_uri" validate:"omitempty,uri"`
	Clues          []ClueContent `json:"clues" validate:"required,min=1,dive"`
}

func (d *HuntDraft) Duration() time.Duration {
	return time.Duration(d.DurationSecs) * time.Second
}

type HuntStatus string

const (
	HuntStatusCompleted  HuntStatus = "completed"
	HuntStatusComingSoon HuntStatus = "coming_soon"
	HuntStatusEnded      HuntStatus = "ended"
	HuntStatusRegister   HuntStatus = "register"
	HuntStatusStart      HuntStatus = "start"
)

type HuntListing struct {
	Hunt       *Hunt
	Status     HuntStatus
	Registered bool
	Completed  bool
	NextClue   int
}
