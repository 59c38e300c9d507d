package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/repository"
	"TH_treasure_hunt/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LedgerRepository interface {
	InsertHunt(ctx context.Context, h *model.Hunt) (int64, error)
	GetHunt(ctx context.Context, chainID, huntID int64) (*model.Hunt, error)
	ListHunts(ctx context.Context, chainID int64) ([]*model.Hunt, error)
	AddHuntParticipant(ctx context.Context, chainID, huntID int64, address, token string) error
	AddHuntWinner(ctx context.Context, chainID, huntID int64, address string) (int64, error)
	HuntWinnerToken(ctx context.Context, chainID, huntID int64, address string) (int64, error)
	HuntsDueToStart(ctx context.Context, chainID int64, now time.Time) ([]*model.Hunt, error)
	HuntsDueToEnd(ctx context.Context, chainID int64, now time.Time) ([]*model.Hunt, error)
	MarkHuntStarted(ctx context.Context, chainID, huntID int64) error
	MarkHuntEnded(ctx context.Context, chainID, huntID int64) error
}

type Publisher interface {
	Publish(event model.Event)
}

// Local is a ledger kept in the service database, one namespace per chain id.
type Local struct {
	repo      LedgerRepository
	network   Network
	publisher Publisher
}

func NewLocal(repo LedgerRepository, network Network, publisher Publisher) *Local {
	return &Local{
		repo:      repo,
		network:   network,
		publisher: publisher,
	}
}

func (l *Local) Network() Network {
	return l.network
}

func (l *Local) publish(event model.Event) {
	if l.publisher == nil {
		return
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	event.Payload["chain_id"] = l.network.ChainID
	l.publisher.Publish(event)
}

func (l *Local) CreateHunt(ctx context.Context, hunt *model.Hunt) (int64, error) {
	h := *hunt
	h.ChainID = l.network.ChainID

	huntID, err := l.repo.InsertHunt(ctx, &h)
	if err != nil {
		return 0, fmt.Errorf("create hunt: %w", err)
	}

	logger.Logger().Info("hunt created",
		zap.Int64("hunt_id", huntID),
		zap.Int64("chain_id", l.network.ChainID),
		zap.String("name", h.Name))

	l.publish(model.Event{
		Kind:    model.EventHuntCreated,
		HuntID:  huntID,
		Payload: map[string]any{"name": h.Name, "starts_at": h.StartsAt},
	})

	return huntID, nil
}

// RegisterForHunt returns a fresh participant token for address.
func (l *Local) RegisterForHunt(ctx context.Context, huntID int64, address string) (string, error) {
	token := uuid.NewString()

	err := l.repo.AddHuntParticipant(ctx, l.network.ChainID, huntID, address, token)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "", ErrHuntNotFound
	case errors.Is(err, repository.ErrAlreadyRegistered):
		return "", ErrAlreadyRegistered
	case err != nil:
		return "", fmt.Errorf("register for hunt: %w", err)
	}

	return token, nil
}

func (l *Local) AddWinner(ctx context.Context, huntID int64, address string) (int64, error) {
	tokenID, err := l.repo.AddHuntWinner(ctx, l.network.ChainID, huntID, address)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return 0, ErrHuntNotFound
	case errors.Is(err, repository.ErrAlreadyWinner):
		return 0, ErrAlreadyWinner
	case err != nil:
		return 0, fmt.Errorf("add winner: %w", err)
	}

	l.publish(model.Event{
		Kind:    model.EventNFTAwarded,
		HuntID:  huntID,
		Payload: map[string]any{"address": address, "token_id": tokenID},
	})

	return tokenID, nil
}

func (l *Local) GetHunt(ctx context.Context, huntID int64) (*model.Hunt, error) {
	h, err := l.repo.GetHunt(ctx, l.network.ChainID, huntID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrHuntNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hunt: %w", err)
	}
	return h, nil
}

func (l *Local) GetAllHunts(ctx context.Context) ([]*model.Hunt, error) {
	hunts, err := l.repo.ListHunts(ctx, l.network.ChainID)
	if err != nil {
		return nil, fmt.Errorf("get all hunts: %w", err)
	}
	return hunts, nil
}

func (l *Local) GetTokenID(ctx context.Context, huntID int64, address string) (int64, error) {
	tokenID, err := l.repo.HuntWinnerToken(ctx, l.network.ChainID, huntID, address)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrHuntNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get token id: %w", err)
	}
	return tokenID, nil
}

// Tick announces hunts whose start or end has passed since the previous tick.
func (l *Local) Tick(ctx context.Context, now time.Time) error {
	log := logger.Logger()

	starting, err := l.repo.HuntsDueToStart(ctx, l.network.ChainID, now)
	if err != nil {
		return fmt.Errorf("list starting hunts: %w", err)
	}
	for _, h := range starting {
		if err := l.repo.MarkHuntStarted(ctx, h.ChainID, h.HuntID); err != nil {
			return fmt.Errorf("mark hunt %d started: %w", h.HuntID, err)
		}
		log.Info("hunt started", zap.Int64("hunt_id", h.HuntID))
		l.publish(model.Event{Kind: model.EventHuntStarted, HuntID: h.HuntID, At: h.StartsAt})
	}

	ending, err := l.repo.HuntsDueToEnd(ctx, l.network.ChainID, now)
	if err != nil {
		return fmt.Errorf("list ending hunts: %w", err)
	}
	for _, h := range ending {
		if err := l.repo.MarkHuntEnded(ctx, h.ChainID, h.HuntID); err != nil {
			return fmt.Errorf("mark hunt %d ended: %w", h.HuntID, err)
		}
		log.Info("hunt ended", zap.Int64("hunt_id", h.HuntID), zap.Int("winners", len(h.Winners)))
		l.publish(model.Event{
			Kind:    model.EventHuntEnded,
			HuntID:  h.HuntID,
			At:      h.EndsAt(),
			Payload: map[string]any{"winners": h.Winners},
		})
	}

	return nil
}
