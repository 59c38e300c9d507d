package service

import (
	"context"
	"errors"
	"fmt"

	"TH_treasure_hunt/internal/blobstore"
	"TH_treasure_hunt/internal/ledger"
	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/repository"
	"TH_treasure_hunt/pkg/logger"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

func float64Ptr(v float64) *float64 {
	return &v
}

// DefaultClues is served for hunts that carry no content of their own.
var DefaultClues = []model.ClueContent{
	{
		Index:     1,
		Riddle:    "Find the heart of the city where dreams come alive. Look for the place where people gather to celebrate the future of finance and technology.",
		Hint:      "It's a famous landmark in your city's downtown area.",
		Latitude:  float64Ptr(12.98297),
		Longitude: float64Ptr(77.68080),
	},
	{
		Index:     2,
		Riddle:    "Seek the digital oasis where innovation meets community. Find the space where developers and creators build the next generation of web3 applications.",
		Hint:      "Look for a modern tech hub or innovation center.",
		Latitude:  float64Ptr(12.97194),
		Longitude: float64Ptr(77.64115),
	},
}

type clueSet struct {
	source  model.ClueSource
	clues   []model.Clue
	answers []model.ClueAnswer
}

// ClueResolver picks a hunt's clue set: creator-authored content first, then
// the sealed blobs the ledger points at, then DefaultClues.
type ClueResolver struct {
	content     ContentRepository
	ledger      ledger.Client
	blobs       blobstore.Client
	keyMaterial string
}

func NewClueResolver(content ContentRepository, ledgerClient ledger.Client, blobs blobstore.Client, keyMaterial string) *ClueResolver {
	return &ClueResolver{
		content:     content,
		ledger:      ledgerClient,
		blobs:       blobs,
		keyMaterial: keyMaterial,
	}
}

func (r *ClueResolver) Resolve(ctx context.Context, huntID int64) ([]model.Clue, error) {
	set, err := r.load(ctx, huntID, false)
	if err != nil {
		return nil, err
	}
	return set.clues, nil
}

func (r *ClueResolver) TotalClues(ctx context.Context, huntID int64) (int, error) {
	set, err := r.load(ctx, huntID, false)
	if err != nil {
		return 0, err
	}
	return len(set.clues), nil
}

// Answer returns what clue index is checked against. It is never part of Resolve.
func (r *ClueResolver) Answer(ctx context.Context, huntID int64, index int) (*model.ClueAnswer, error) {
	set, err := r.load(ctx, huntID, true)
	if err != nil {
		return nil, err
	}

	for _, answer := range set.answers {
		if answer.Index == index {
			a := answer
			return &a, nil
		}
	}

	return nil, fmt.Errorf("%w: hunt %d index %d", ErrClueNotFound, huntID, index)
}

func (r *ClueResolver) load(ctx context.Context, huntID int64, withAnswers bool) (*clueSet, error) {
	custom, err := r.content.CustomClues(ctx, huntID)
	switch {
	case err == nil && len(custom) > 0:
		return fromContent(model.ClueSourceCustom, custom), nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}

	set, err := r.loadBlobs(ctx, huntID, withAnswers)
	if err != nil {
		return nil, err
	}
	if set != nil {
		return set, nil
	}

	return fromContent(model.ClueSourceDefault, DefaultClues), nil
}

// loadBlobs returns nil without error when the hunt has no sealed content to read.
func (r *ClueResolver) loadBlobs(ctx context.Context, huntID int64, withAnswers bool) (*clueSet, error) {
	if r.ledger == nil || r.blobs == nil {
		return nil, nil
	}

	hunt, err := r.ledger.GetHunt(ctx, huntID)
	if errors.Is(err, ledger.ErrHuntNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	if hunt.CluesBlobID == "" {
		return nil, nil
	}
	if r.keyMaterial == "" {
		logger.Logger().Error("hunt has sealed clues but no key material is configured",
			zap.Int64("hunt_id", huntID))
		return nil, fmt.Errorf("%w: hunt %d is sealed and no key material is configured", ErrVerificationUnavailable, huntID)
	}

	set := &clueSet{source: model.ClueSourceBlob}

	if err := r.decrypt(ctx, hunt.CluesBlobID, &set.clues); err != nil {
		return nil, err
	}

	if withAnswers {
		if hunt.AnswersBlobID == "" {
			return nil, fmt.Errorf("%w: hunt %d has no answers blob", ErrVerificationUnavailable, huntID)
		}
		if err := r.decrypt(ctx, hunt.AnswersBlobID, &set.answers); err != nil {
			return nil, err
		}
	}

	return set, nil
}

func (r *ClueResolver) decrypt(ctx context.Context, blobID string, out any) error {
	payload, err := r.blobs.GetDecrypted(ctx, blobID, r.keyMaterial)
	if err != nil {
		return fmt.Errorf("%w: blob %s: %v", ErrVerificationUnavailable, blobID, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: blob %s: %v", ErrVerificationUnavailable, blobID, err)
	}
	return nil
}

func fromContent(source model.ClueSource, content []model.ClueContent) *clueSet {
	set := &clueSet{
		source:  source,
		clues:   make([]model.Clue, 0, len(content)),
		answers: make([]model.ClueAnswer, 0, len(content)),
	}
	for _, c := range content {
		set.clues = append(set.clues, c.Clue())
		set.answers = append(set.answers, c.ClueAnswer())
	}
	return set
}
