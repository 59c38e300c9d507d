package service

import (
	"context"
	"errors"
	"testing"

	"TH_treasure_hunt/internal/ledger"
	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/repository"
	"TH_treasure_hunt/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sealedHunt(huntID int64) *model.Hunt {
	hunt := activeHunt(huntID)
	hunt.CluesBlobID = "clues-blob"
	hunt.AnswersBlobID = "answers-blob"
	return hunt
}

func TestClueResolver_Resolve(t *testing.T) {
	tests := []struct {
		name           string
		keyMaterial    string
		mockSetup      func(content *mocks.MockContentRepository, l *mocks.MockLedger, blobs *mocks.MockBlobStore)
		expectedSource model.ClueSource
		expectedClues  []model.Clue
		expectedError  error
	}{
		{
			name: "Custom clues win",
			mockSetup: func(content *mocks.MockContentRepository, l *mocks.MockLedger, blobs *mocks.MockBlobStore) {
				content.On("CustomClues", mock.Anything, int64(1)).Return([]model.ClueContent{
					{Index: 1, Riddle: "bridge", Answer: "Charles"},
				}, nil)
			},
			expectedSource: model.ClueSourceCustom,
			expectedClues:  []model.Clue{{Index: 1, Riddle: "bridge"}},
		},
		{
			name:        "Sealed blobs when no custom clues",
			keyMaterial: "secret",
			mockSetup: func(content *mocks.MockContentRepository, l *mocks.MockLedger, blobs *mocks.MockBlobStore) {
				content.On("CustomClues", mock.Anything, int64(1)).Return(nil, repository.ErrNotFound)
				l.On("GetHunt", mock.Anything, int64(1)).Return(sealedHunt(1), nil)
				blobs.On("GetDecrypted", mock.Anything, "clues-blob", "secret").
					Return([]byte(`[{"index":1,"riddle":"tower","hint":"tall"}]`), nil)
			},
			expectedSource: model.ClueSourceBlob,
			expectedClues:  []model.Clue{{Index: 1, Riddle: "tower", Hint: "tall"}},
		},
		{
			name: "Sealed hunt without key material",
			mockSetup: func(content *mocks.MockContentRepository, l *mocks.MockLedger, blobs *mocks.MockBlobStore) {
				content.On("CustomClues", mock.Anything, int64(1)).Return(nil, repository.ErrNotFound)
				l.On("GetHunt", mock.Anything, int64(1)).Return(sealedHunt(1), nil)
			},
			expectedError: ErrVerificationUnavailable,
		},
		{
			name:        "Defaults for hunts unknown to the ledger",
			keyMaterial: "secret",
			mockSetup: func(content *mocks.MockContentRepository, l *mocks.MockLedger, blobs *mocks.MockBlobStore) {
				content.On("CustomClues", mock.Anything, int64(1)).Return(nil, repository.ErrNotFound)
				l.On("GetHunt", mock.Anything, int64(1)).Return(nil, ledger.ErrHuntNotFound)
			},
			expectedSource: model.ClueSourceDefault,
			expectedClues:  fromContent(model.ClueSourceDefault, DefaultClues).clues,
		},
		{
			name:        "Blob store failure",
			keyMaterial: "secret",
			mockSetup: func(content *mocks.MockContentRepository, l *mocks.MockLedger, blobs *mocks.MockBlobStore) {
				content.On("CustomClues", mock.Anything, int64(1)).Return(nil, repository.ErrNotFound)
				l.On("GetHunt", mock.Anything, int64(1)).Return(sealedHunt(1), nil)
				blobs.On("GetDecrypted", mock.Anything, "clues-blob", "secret").Return(nil, errors.New("gateway timeout"))
			},
			expectedError: ErrVerificationUnavailable,
		},
		{
			name: "Content store failure",
			mockSetup: func(content *mocks.MockContentRepository, l *mocks.MockLedger, blobs *mocks.MockBlobStore) {
				content.On("CustomClues", mock.Anything, int64(1)).Return(nil, errors.New("disk I/O error"))
			},
			expectedError: ErrVerificationUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := &mocks.MockContentRepository{}
			l := &mocks.MockLedger{}
			blobs := &mocks.MockBlobStore{}
			tt.mockSetup(content, l, blobs)

			r := NewClueResolver(content, l, blobs, tt.keyMaterial)

			clues, err := r.Resolve(context.Background(), 1)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedClues, clues)

			set, err := r.load(context.Background(), 1, false)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedSource, set.source)

			content.AssertExpectations(t)
			l.AssertExpectations(t)
			blobs.AssertExpectations(t)
		})
	}
}

func TestClueResolver_Answer(t *testing.T) {
	content := &mocks.MockContentRepository{}
	l := &mocks.MockLedger{}
	blobs := &mocks.MockBlobStore{}

	content.On("CustomClues", mock.Anything, int64(1)).Return(nil, repository.ErrNotFound)
	l.On("GetHunt", mock.Anything, int64(1)).Return(sealedHunt(1), nil)
	blobs.On("GetDecrypted", mock.Anything, "clues-blob", "secret").
		Return([]byte(`[{"index":1,"riddle":"tower"},{"index":2,"riddle":"river"}]`), nil)
	blobs.On("GetDecrypted", mock.Anything, "answers-blob", "secret").
		Return([]byte(`[{"index":1,"target":{"latitude":50.08,"longitude":14.41}},{"index":2,"answer":"Vltava"}]`), nil)

	r := NewClueResolver(content, l, blobs, "secret")

	answer, err := r.Answer(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Vltava", answer.Answer)
	assert.Nil(t, answer.Target)

	answer, err = r.Answer(context.Background(), 1, 1)
	require.NoError(t, err)
	require.NotNil(t, answer.Target)
	assert.Equal(t, 50.08, answer.Target.Latitude)

	_, err = r.Answer(context.Background(), 1, 3)
	assert.ErrorIs(t, err, ErrClueNotFound)

	total, err := r.TotalClues(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestClueResolver_MissingAnswersBlob(t *testing.T) {
	content := &mocks.MockContentRepository{}
	l := &mocks.MockLedger{}
	blobs := &mocks.MockBlobStore{}

	hunt := sealedHunt(1)
	hunt.AnswersBlobID = ""
	content.On("CustomClues", mock.Anything, int64(1)).Return(nil, repository.ErrNotFound)
	l.On("GetHunt", mock.Anything, int64(1)).Return(hunt, nil)
	blobs.On("GetDecrypted", mock.Anything, "clues-blob", "secret").
		Return([]byte(`[{"index":1,"riddle":"tower"}]`), nil)

	r := NewClueResolver(content, l, blobs, "secret")

	_, err := r.Answer(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrVerificationUnavailable)
}
