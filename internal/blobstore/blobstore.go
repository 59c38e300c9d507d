// Package blobstore keeps hunt content sealed under creator key material.
package blobstore

import (
	"context"
	"errors"

	"TH_treasure_hunt/internal/model"
)

var (
	ErrNotFound      = errors.New("blob not found")
	ErrDecrypt       = errors.New("blob could not be decrypted")
	ErrMissingKey    = errors.New("key material is empty")
	ErrMalformedBlob = errors.New("malformed blob")
)

type BlobIDs struct {
	CluesBlobID   string `json:"clues_blob_id"`
	AnswersBlobID string `json:"answers_blob_id"`
}

// Client stores a hunt's riddles and answers as two separately sealed blobs.
type Client interface {
	PutEncrypted(ctx context.Context, clues []model.Clue, answers []model.ClueAnswer, keyMaterial string) (BlobIDs, error)
	GetDecrypted(ctx context.Context, blobID, keyMaterial string) ([]byte, error)
}
