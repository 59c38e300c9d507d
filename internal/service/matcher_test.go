package service

import (
	"testing"

	"TH_treasure_hunt/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, "old town square", normalizeAnswer("  Old   Town\tSQUARE "))
	assert.Equal(t, normalizeAnswer("STRASSE"), normalizeAnswer("strasse"))
	assert.Equal(t, "", normalizeAnswer("   "))
}

func TestEvaluate(t *testing.T) {
	target := &model.Coordinates{Latitude: 12.98297, Longitude: 77.68080}
	near := &model.Coordinates{Latitude: 12.98350, Longitude: 77.68100}
	far := &model.Coordinates{Latitude: 12.98297, Longitude: 77.70000}

	tests := []struct {
		name         string
		answer       model.ClueAnswer
		submitted    string
		fix          *model.Coordinates
		wantPassed   bool
		wantDistance bool
	}{
		{
			name:         "Location only, near",
			answer:       model.ClueAnswer{Index: 1, Target: target},
			fix:          near,
			wantPassed:   true,
			wantDistance: true,
		},
		{
			name:         "Location only, longitude off",
			answer:       model.ClueAnswer{Index: 1, Target: target},
			fix:          far,
			wantPassed:   false,
			wantDistance: true,
		},
		{
			name:       "Location only, no fix",
			answer:     model.ClueAnswer{Index: 1, Target: target},
			wantPassed: false,
		},
		{
			name:       "Answer only, matches after folding",
			answer:     model.ClueAnswer{Index: 1, Answer: "Charles Bridge"},
			submitted:  " charles  BRIDGE ",
			wantPassed: true,
		},
		{
			name:       "Answer only, empty submission",
			answer:     model.ClueAnswer{Index: 1, Answer: "Charles Bridge"},
			wantPassed: false,
		},
		{
			name:         "Both, answer left blank",
			answer:       model.ClueAnswer{Index: 1, Answer: "tower", Target: target},
			fix:          near,
			wantPassed:   true,
			wantDistance: true,
		},
		{
			name:         "Both, wrong answer typed",
			answer:       model.ClueAnswer{Index: 1, Answer: "tower", Target: target},
			submitted:    "bridge",
			fix:          near,
			wantPassed:   false,
			wantDistance: true,
		},
		{
			name:       "Nothing to check",
			answer:     model.ClueAnswer{Index: 1},
			submitted:  "anything",
			wantPassed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer := tt.answer
			result := evaluate(&answer, tt.submitted, tt.fix)
			assert.Equal(t, tt.wantPassed, result.passed)
			if tt.wantDistance {
				assert.NotNil(t, result.distanceMeters)
			} else {
				assert.Nil(t, result.distanceMeters)
			}
		})
	}
}
