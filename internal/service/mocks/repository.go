package mocks

import (
	"context"
	"time"

	"TH_treasure_hunt/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockLifecycleRepository struct {
	mock.Mock
}

func (m *MockLifecycleRepository) GetProgress(ctx context.Context, huntID int64, participantID string) ([]int, error) {
	args := m.Called(ctx, huntID, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockLifecycleRepository) IsRegistered(ctx context.Context, huntID int64, participantID string) (bool, error) {
	args := m.Called(ctx, huntID, participantID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLifecycleRepository) SetRegistered(ctx context.Context, reg model.Registration) error {
	args := m.Called(ctx, reg)
	return args.Error(0)
}

func (m *MockLifecycleRepository) GetRegistration(ctx context.Context, huntID int64, participantID string) (*model.Registration, error) {
	args := m.Called(ctx, huntID, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Registration), args.Error(1)
}

func (m *MockLifecycleRepository) RegistrationByAddress(ctx context.Context, huntID int64, address string) (*model.Registration, error) {
	args := m.Called(ctx, huntID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Registration), args.Error(1)
}

func (m *MockLifecycleRepository) IsCompleted(ctx context.Context, huntID int64, participantID string) (bool, error) {
	args := m.Called(ctx, huntID, participantID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLifecycleRepository) MarkCompleted(ctx context.Context, huntID int64, participantID string, totalClues int) error {
	args := m.Called(ctx, huntID, participantID, totalClues)
	return args.Error(0)
}

func (m *MockLifecycleRepository) ReserveClaim(ctx context.Context, huntID int64, participantID, address string) (*model.Claim, bool, error) {
	args := m.Called(ctx, huntID, participantID, address)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Claim), args.Bool(1), args.Error(2)
}

func (m *MockLifecycleRepository) ConfirmClaim(ctx context.Context, claimID uuid.UUID) error {
	args := m.Called(ctx, claimID)
	return args.Error(0)
}

func (m *MockLifecycleRepository) ReleaseClaim(ctx context.Context, claimID uuid.UUID) error {
	args := m.Called(ctx, claimID)
	return args.Error(0)
}

type MockContentRepository struct {
	mock.Mock
}

func (m *MockContentRepository) CustomClues(ctx context.Context, huntID int64) ([]model.ClueContent, error) {
	args := m.Called(ctx, huntID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ClueContent), args.Error(1)
}

func (m *MockContentRepository) SaveCustomClues(ctx context.Context, huntID int64, clues []model.ClueContent) error {
	args := m.Called(ctx, huntID, clues)
	return args.Error(0)
}

type MockNotifierRepository struct {
	mock.Mock
}

func (m *MockNotifierRepository) RegistrationByAddress(ctx context.Context, huntID int64, address string) (*model.Registration, error) {
	args := m.Called(ctx, huntID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Registration), args.Error(1)
}

type MockReconcileRepository struct {
	mock.Mock
}

func (m *MockReconcileRepository) ListRegistrations(ctx context.Context, huntID int64) ([]model.Registration, error) {
	args := m.Called(ctx, huntID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Registration), args.Error(1)
}

func (m *MockReconcileRepository) RegistrationByAddress(ctx context.Context, huntID int64, address string) (*model.Registration, error) {
	args := m.Called(ctx, huntID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Registration), args.Error(1)
}

func (m *MockReconcileRepository) GetProgress(ctx context.Context, huntID int64, participantID string) ([]int, error) {
	args := m.Called(ctx, huntID, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockReconcileRepository) IsCompleted(ctx context.Context, huntID int64, participantID string) (bool, error) {
	args := m.Called(ctx, huntID, participantID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReconcileRepository) MarkCompleted(ctx context.Context, huntID int64, participantID string, totalClues int) error {
	args := m.Called(ctx, huntID, participantID, totalClues)
	return args.Error(0)
}

func (m *MockReconcileRepository) ClearCompleted(ctx context.Context, huntID int64, participantID string) error {
	args := m.Called(ctx, huntID, participantID)
	return args.Error(0)
}

func (m *MockReconcileRepository) ImportClaim(ctx context.Context, huntID int64, participantID, address string, at time.Time) (bool, error) {
	args := m.Called(ctx, huntID, participantID, address, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockReconcileRepository) GetClaim(ctx context.Context, huntID int64, participantID string) (*model.Claim, error) {
	args := m.Called(ctx, huntID, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Claim), args.Error(1)
}

func (m *MockReconcileRepository) ConfirmClaim(ctx context.Context, claimID uuid.UUID) error {
	args := m.Called(ctx, claimID)
	return args.Error(0)
}
