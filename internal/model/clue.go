package model

import "strings"

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Clue is the riddle side of a clue. It never carries the answer or target.
type Clue struct {
	Index  int    `json:"index"`
	Riddle string `json:"riddle"`
	Hint   string `json:"hint,omitempty"`
}

type ClueAnswer struct {
	Index  int          `json:"index"`
	Answer string       `json:"answer,omitempty"`
	Target *Coordinates `json:"target,omitempty"`
}

// HasAnswer reports whether the clue expects a typed answer.
func (a ClueAnswer) HasAnswer() bool {
	return strings.TrimSpace(a.Answer) != ""
}

type ClueSource string

const (
	ClueSourceCustom  ClueSource = "custom"
	ClueSourceBlob    ClueSource = "blob"
	ClueSourceDefault ClueSource = "default"
)

// ClueContent is the authored form of a clue as entered by a hunt creator.
type ClueContent struct {
	Index     int      `json:"id" validate:"min=1"`
	Riddle    string   `json:"description" validate:"required"`
	Hint      string   `json:"hint,omitempty"`
	Answer    string   `json:"answer,omitempty"`
	Latitude  *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"long,omitempty" validate:"omitempty,longitude"`
}

// HasTarget reports whether both coordinates were given.
func (c ClueContent) HasTarget() bool {
	return c.Latitude != nil && c.Longitude != nil
}

func (c ClueContent) Clue() Clue {
	return Clue{
		Index:  c.Index,
		Riddle: c.Riddle,
		Hint:   c.Hint,
	}
}

func (c ClueContent) ClueAnswer() ClueAnswer {
	answer := ClueAnswer{
		Index:  c.Index,
		Answer: c.Answer,
	}
	if c.HasTarget() {
		answer.Target = &Coordinates{Latitude: *c.Latitude, Longitude: *c.Longitude}
	}
	return answer
}

type Riddle struct {
	Riddle string `json:"riddle"`
	Hint   string `json:"hint"`
}
