package mocks

import (
	"context"

	"TH_treasure_hunt/internal/blobstore"
	"TH_treasure_hunt/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) CreateHunt(ctx context.Context, hunt *model.Hunt) (int64, error) {
	args := m.Called(ctx, hunt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) RegisterForHunt(ctx context.Context, huntID int64, address string) (string, error) {
	args := m.Called(ctx, huntID, address)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) AddWinner(ctx context.Context, huntID int64, address string) (int64, error) {
	args := m.Called(ctx, huntID, address)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) GetHunt(ctx context.Context, huntID int64) (*model.Hunt, error) {
	args := m.Called(ctx, huntID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Hunt), args.Error(1)
}

func (m *MockLedger) GetAllHunts(ctx context.Context) ([]*model.Hunt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Hunt), args.Error(1)
}

func (m *MockLedger) GetTokenID(ctx context.Context, huntID int64, address string) (int64, error) {
	args := m.Called(ctx, huntID, address)
	return args.Get(0).(int64), args.Error(1)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) PutEncrypted(ctx context.Context, clues []model.Clue, answers []model.ClueAnswer, keyMaterial string) (blobstore.BlobIDs, error) {
	args := m.Called(ctx, clues, answers, keyMaterial)
	return args.Get(0).(blobstore.BlobIDs), args.Error(1)
}

func (m *MockBlobStore) GetDecrypted(ctx context.Context, blobID, keyMaterial string) ([]byte, error) {
	args := m.Called(ctx, blobID, keyMaterial)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}
