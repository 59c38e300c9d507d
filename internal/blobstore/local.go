package blobstore

import (
	"context"
	"errors"
	"fmt"

	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/repository"
	"TH_treasure_hunt/pkg/logger"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type BlobRepository interface {
	PutBlob(ctx context.Context, blobID, data string) error
	GetBlob(ctx context.Context, blobID string) (string, error)
}

// Local keeps sealed blobs in the service database.
type Local struct {
	repo BlobRepository
}

func NewLocal(repo BlobRepository) *Local {
	return &Local{repo: repo}
}

func (l *Local) PutEncrypted(ctx context.Context, clues []model.Clue, answers []model.ClueAnswer, keyMaterial string) (BlobIDs, error) {
	cluesID, err := l.put(ctx, clues, keyMaterial)
	if err != nil {
		return BlobIDs{}, fmt.Errorf("failed to store clues blob: %w", err)
	}

	answersID, err := l.put(ctx, answers, keyMaterial)
	if err != nil {
		return BlobIDs{}, fmt.Errorf("failed to store answers blob: %w", err)
	}

	logger.Logger().Debug("stored hunt blobs",
		zap.String("clues_blob_id", cluesID),
		zap.String("answers_blob_id", answersID))

	return BlobIDs{CluesBlobID: cluesID, AnswersBlobID: answersID}, nil
}

func (l *Local) put(ctx context.Context, payload any, keyMaterial string) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sealed, err := Seal(keyMaterial, plaintext)
	if err != nil {
		return "", err
	}

	id := ContentID(sealed)
	if err := l.repo.PutBlob(ctx, id, sealed); err != nil {
		return "", err
	}

	return id, nil
}

func (l *Local) GetDecrypted(ctx context.Context, blobID, keyMaterial string) ([]byte, error) {
	sealed, err := l.repo.GetBlob(ctx, blobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return Open(keyMaterial, sealed)
}
