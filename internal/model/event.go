package model

import "time"

type EventKind string

const (
	EventRegistered  EventKind = "registered"
	EventClueSolved  EventKind = "clue_solved"
	EventCompleted   EventKind = "completed"
	EventClaimed     EventKind = "claimed"
	EventHuntCreated EventKind = "hunt_created"
	EventHuntStarted EventKind = "hunt_started"
	EventHuntEnded   EventKind = "hunt_ended"
	EventNFTAwarded  EventKind = "nft_awarded"
)

type Event struct {
	Kind          EventKind      `json:"kind"`
	HuntID        int64          `json:"hunt_id"`
	ParticipantID string         `json:"participant_id,omitempty"`
	ClueIndex     int            `json:"clue_index,omitempty"`
	At            time.Time      `json:"at"`
	Payload       map[string]any `json:"payload,omitempty"`
}
