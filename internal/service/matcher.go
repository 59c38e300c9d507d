package service

import (
	"strings"

	"TH_treasure_hunt/internal/geo"
	"TH_treasure_hunt/internal/model"

	"golang.org/x/text/cases"
)

type evaluation struct {
	passed         bool
	distanceMeters *float64
}

// normalizeAnswer trims, collapses inner whitespace and case-folds.
func normalizeAnswer(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// needsLocation reports whether checking answer requires a position fix.
func needsLocation(answer *model.ClueAnswer) bool {
	return answer.Target != nil
}

// evaluate applies the location check when the clue has a target and the
// answer check when the clue has an answer and one was typed, or when there
// is no target to go by. Every applicable check must pass.
func evaluate(answer *model.ClueAnswer, submitted string, fix *model.Coordinates) evaluation {
	result := evaluation{passed: true}

	if answer.Target != nil {
		if fix == nil {
			return evaluation{}
		}
		distance := geo.DistanceMeters(*fix, *answer.Target)
		result.distanceMeters = &distance
		if !geo.Within(*fix, *answer.Target, geo.Tolerance) {
			result.passed = false
		}
	}

	typed := strings.TrimSpace(submitted) != ""
	if answer.HasAnswer() && (typed || answer.Target == nil) {
		if normalizeAnswer(submitted) != normalizeAnswer(answer.Answer) {
			result.passed = false
		}
	}

	return result
}
