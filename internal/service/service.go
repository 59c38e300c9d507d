package service

import (
	"context"
	"errors"

	"TH_treasure_hunt/internal/model"

	"github.com/google/uuid"
)

var (
	ErrHuntNotFound            = errors.New("hunt not found")
	ErrClueNotFound            = errors.New("clue not found")
	ErrNotRegistered           = errors.New("participant is not registered for this hunt")
	ErrAlreadyRegistered       = errors.New("participant is already registered for this hunt")
	ErrNotStartedYet           = errors.New("hunt has not started yet")
	ErrHuntEnded               = errors.New("hunt has ended")
	ErrHuntCompleted           = errors.New("hunt already completed")
	ErrNotCompleted            = errors.New("hunt is not completed")
	ErrClaimInProgress         = errors.New("claim is already being processed")
	ErrLedgerWrite             = errors.New("ledger write failed")
	ErrLedgerUnavailable       = errors.New("ledger unavailable")
	ErrContentStore            = errors.New("clue content could not be stored")
	ErrInvalidHunt             = errors.New("invalid hunt")
	ErrInvalidAddress          = errors.New("invalid participant address")
	ErrAddressTaken            = errors.New("address is registered to another participant")
	ErrVerificationInFlight    = errors.New("a verification is already in progress")
	ErrAttemptsExhausted       = errors.New("no attempts left for this clue")
	ErrClueNotActive           = errors.New("clue is not the active clue")
	ErrClueAlreadySolved       = errors.New("clue already solved")
	ErrVerificationUnavailable = errors.New("verification temporarily unavailable")
	ErrRiddlesDisabled         = errors.New("riddle generation is not configured")
)

type Service struct {
	*ClueResolver
	*VerificationEngine
	*LifecycleService
	*RiddleService
}

func NewService(
	clueResolver *ClueResolver,
	engine *VerificationEngine,
	lifecycle *LifecycleService,
	riddles *RiddleService,
) *Service {
	return &Service{
		ClueResolver:       clueResolver,
		VerificationEngine: engine,
		LifecycleService:   lifecycle,
		RiddleService:      riddles,
	}
}

type ClueResolverI interface {
	Resolve(ctx context.Context, huntID int64) ([]model.Clue, error)
	Answer(ctx context.Context, huntID int64, index int) (*model.ClueAnswer, error)
	TotalClues(ctx context.Context, huntID int64) (int, error)
}

type VerificationEngineI interface {
	Enter(ctx context.Context, huntID int64, participantID string, index int) (*model.ClueState, error)
	ReportLocation(ctx context.Context, huntID int64, participantID string, fix *model.Coordinates, failure error) error
	Submit(ctx context.Context, huntID int64, participantID string, index int, answer string) (*model.VerificationResult, error)
	ResetAttempts(huntID int64, participantID string)
}

type LifecycleServiceI interface {
	Register(ctx context.Context, huntID int64, participantID, address string) (*model.Registration, error)
	Start(ctx context.Context, huntID int64, participantID string) (int, error)
	OnClueCompleted(ctx context.Context, huntID int64, participantID string, totalClues int) error
	Claim(ctx context.Context, huntID int64, participantID string) (*model.Claim, error)
	ListHunts(ctx context.Context, participantID string) ([]*model.HuntListing, error)
	GetHunt(ctx context.Context, huntID int64, participantID string) (*model.HuntListing, error)
	CreateHunt(ctx context.Context, draft *model.HuntDraft) (*model.Hunt, error)
}

type RiddleServiceI interface {
	Generate(ctx context.Context, locations, themes []string) ([]model.Riddle, error)
}

// CompletionHook is told when a participant solves the last clue of a hunt.
type CompletionHook interface {
	OnClueCompleted(ctx context.Context, huntID int64, participantID string, totalClues int) error
}

type ContentRepository interface {
	CustomClues(ctx context.Context, huntID int64) ([]model.ClueContent, error)
	SaveCustomClues(ctx context.Context, huntID int64, clues []model.ClueContent) error
}

type ProgressRepository interface {
	GetProgress(ctx context.Context, huntID int64, participantID string) ([]int, error)
	AppendSolved(ctx context.Context, huntID int64, participantID string, index int) error
	AppendFinal(ctx context.Context, huntID int64, participantID string, index, totalClues int) error
	IsRegistered(ctx context.Context, huntID int64, participantID string) (bool, error)
}

type LifecycleRepository interface {
	GetProgress(ctx context.Context, huntID int64, participantID string) ([]int, error)
	IsRegistered(ctx context.Context, huntID int64, participantID string) (bool, error)
	SetRegistered(ctx context.Context, reg model.Registration) error
	GetRegistration(ctx context.Context, huntID int64, participantID string) (*model.Registration, error)
	RegistrationByAddress(ctx context.Context, huntID int64, address string) (*model.Registration, error)
	IsCompleted(ctx context.Context, huntID int64, participantID string) (bool, error)
	MarkCompleted(ctx context.Context, huntID int64, participantID string, totalClues int) error
	ReserveClaim(ctx context.Context, huntID int64, participantID, address string) (*model.Claim, bool, error)
	ConfirmClaim(ctx context.Context, claimID uuid.UUID) error
	ReleaseClaim(ctx context.Context, claimID uuid.UUID) error
}
