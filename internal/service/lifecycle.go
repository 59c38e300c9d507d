package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"TH_treasure_hunt/internal/blobstore"
	"TH_treasure_hunt/internal/ledger"
	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/repository"
	"TH_treasure_hunt/pkg/logger"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const listingLimit = 5

type LifecycleConfig struct {
	FilterListing bool   `mapstructure:"filterListing"`
	KeyMaterial   string `mapstructure:"-"`
}

type LifecycleService struct {
	repo     LifecycleRepository
	content  ContentRepository
	ledger   ledger.Client
	blobs    blobstore.Client
	validate *validator.Validate
	cfg      LifecycleConfig
	now      func() time.Time
}

func NewLifecycleService(
	repo LifecycleRepository,
	content ContentRepository,
	ledgerClient ledger.Client,
	blobs blobstore.Client,
	cfg LifecycleConfig,
) *LifecycleService {
	return &LifecycleService{
		repo:     repo,
		content:  content,
		ledger:   ledgerClient,
		blobs:    blobs,
		validate: validator.New(),
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *LifecycleService) getHunt(ctx context.Context, huntID int64) (*model.Hunt, error) {
	hunt, err := s.ledger.GetHunt(ctx, huntID)
	if err != nil {
		if errors.Is(err, ledger.ErrHuntNotFound) {
			return nil, ErrHuntNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return hunt, nil
}

// Register records the participant on the ledger first and commits the
// local flag only once the ledger accepted it.
func (s *LifecycleService) Register(ctx context.Context, huntID int64, participantID, address string) (*model.Registration, error) {
	log := logger.Logger().With(zap.Int64("hunt_id", huntID), zap.String("participant_id", participantID))

	address = strings.ToLower(strings.TrimSpace(address))
	if err := s.validate.Var(address, "required,eth_addr"); err != nil {
		return nil, ErrInvalidAddress
	}

	registered, err := s.repo.IsRegistered(ctx, huntID, participantID)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, ErrAlreadyRegistered
	}

	hunt, err := s.getHunt(ctx, huntID)
	if err != nil {
		return nil, err
	}
	if hunt.HasEnded(s.now()) {
		return nil, ErrHuntEnded
	}

	owner, err := s.repo.RegistrationByAddress(ctx, huntID, address)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, err
	case owner.ParticipantID != participantID:
		return nil, ErrAddressTaken
	}

	token, err := s.ledger.RegisterForHunt(ctx, huntID, address)
	switch {
	case errors.Is(err, ledger.ErrAlreadyRegistered):
		log.Warn("ledger already holds registration, adopting it", zap.String("address", address))
	case errors.Is(err, ledger.ErrHuntNotFound):
		return nil, ErrHuntNotFound
	case err != nil:
		log.Error("ledger registration failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	reg := model.Registration{
		HuntID:        huntID,
		ParticipantID: participantID,
		Address:       address,
		Token:         token,
		RegisteredAt:  s.now().UTC(),
	}
	if err := s.repo.SetRegistered(ctx, reg); err != nil {
		return nil, err
	}

	log.Info("participant registered")

	return &reg, nil
}

// Start returns the first clue index the participant may open.
func (s *LifecycleService) Start(ctx context.Context, huntID int64, participantID string) (int, error) {
	hunt, err := s.getHunt(ctx, huntID)
	if err != nil {
		return 0, err
	}

	registered, err := s.repo.IsRegistered(ctx, huntID, participantID)
	if err != nil {
		return 0, err
	}
	if !registered {
		return 0, ErrNotRegistered
	}

	now := s.now()
	if !hunt.HasStarted(now) {
		return 0, ErrNotStartedYet
	}

	completed, err := s.repo.IsCompleted(ctx, huntID, participantID)
	if err != nil {
		return 0, err
	}
	if completed {
		return 0, ErrHuntCompleted
	}
	if hunt.HasEnded(now) {
		return 0, ErrHuntEnded
	}

	solved, err := s.repo.GetProgress(ctx, huntID, participantID)
	if err != nil {
		return 0, err
	}

	return len(solved) + 1, nil
}

func (s *LifecycleService) OnClueCompleted(ctx context.Context, huntID int64, participantID string, totalClues int) error {
	err := s.repo.MarkCompleted(ctx, huntID, participantID, totalClues)
	if errors.Is(err, repository.ErrIncomplete) {
		return fmt.Errorf("%w: %v", ErrNotCompleted, err)
	}
	if err != nil {
		return err
	}

	logger.Logger().Info("hunt completed",
		zap.Int64("hunt_id", huntID),
		zap.String("participant_id", participantID))

	return nil
}

// Claim records the participant as a winner on the ledger exactly once.
// A pending claim row guards the ledger call; it is confirmed on success and
// released on failure.
func (s *LifecycleService) Claim(ctx context.Context, huntID int64, participantID string) (*model.Claim, error) {
	log := logger.Logger().With(zap.Int64("hunt_id", huntID), zap.String("participant_id", participantID))

	completed, err := s.repo.IsCompleted(ctx, huntID, participantID)
	if err != nil {
		return nil, err
	}
	if !completed {
		return nil, ErrNotCompleted
	}

	reg, err := s.repo.GetRegistration(ctx, huntID, participantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}

	claim, reserved, err := s.repo.ReserveClaim(ctx, huntID, participantID, reg.Address)
	if err != nil {
		return nil, err
	}
	if !reserved {
		if claim.Status == model.ClaimStatusConfirmed {
			return claim, nil
		}
		return s.recoverClaim(ctx, claim)
	}

	_, err = s.ledger.AddWinner(ctx, huntID, reg.Address)
	if err != nil && !errors.Is(err, ledger.ErrAlreadyWinner) {
		log.Error("ledger winner write failed", zap.Error(err))
		if releaseErr := s.repo.ReleaseClaim(ctx, claim.ClaimID); releaseErr != nil {
			log.Error("failed to release claim reservation", zap.Error(releaseErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	// the ledger holds the winner now, so the local row must follow
	if err := s.repo.ConfirmClaim(context.WithoutCancel(ctx), claim.ClaimID); err != nil {
		return nil, err
	}
	claim.Status = model.ClaimStatusConfirmed

	log.Info("reward claimed", zap.String("claim_id", claim.ClaimID.String()))

	return claim, nil
}

// recoverClaim confirms a pending claim whose winner already reached the
// ledger. A pending claim the ledger does not know is still in progress.
func (s *LifecycleService) recoverClaim(ctx context.Context, claim *model.Claim) (*model.Claim, error) {
	hunt, err := s.getHunt(ctx, claim.HuntID)
	if err != nil {
		return nil, err
	}
	if !hunt.HasWinner(claim.Address) {
		return nil, ErrClaimInProgress
	}

	if err := s.repo.ConfirmClaim(context.WithoutCancel(ctx), claim.ClaimID); err != nil {
		return nil, err
	}
	claim.Status = model.ClaimStatusConfirmed

	logger.Logger().Warn("confirmed pending claim already recorded on the ledger",
		zap.Int64("hunt_id", claim.HuntID),
		zap.String("participant_id", claim.ParticipantID),
		zap.String("claim_id", claim.ClaimID.String()))

	return claim, nil
}

func (s *LifecycleService) ListHunts(ctx context.Context, participantID string) ([]*model.HuntListing, error) {
	hunts, err := s.ledger.GetAllHunts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	if s.cfg.FilterListing {
		hunts = filterHunts(hunts)
	}

	listings := make([]*model.HuntListing, 0, len(hunts))
	for _, hunt := range hunts {
		listing, err := s.listing(ctx, hunt, participantID)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

func (s *LifecycleService) GetHunt(ctx context.Context, huntID int64, participantID string) (*model.HuntListing, error) {
	hunt, err := s.getHunt(ctx, huntID)
	if err != nil {
		return nil, err
	}
	return s.listing(ctx, hunt, participantID)
}

func (s *LifecycleService) listing(ctx context.Context, hunt *model.Hunt, participantID string) (*model.HuntListing, error) {
	registered, err := s.repo.IsRegistered(ctx, hunt.HuntID, participantID)
	if err != nil {
		return nil, err
	}

	completed, err := s.repo.IsCompleted(ctx, hunt.HuntID, participantID)
	if err != nil {
		return nil, err
	}

	solved, err := s.repo.GetProgress(ctx, hunt.HuntID, participantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	listing := &model.HuntListing{
		Hunt:       hunt,
		Registered: registered,
		Completed:  completed,
		NextClue:   len(solved) + 1,
	}

	switch {
	case completed:
		listing.Status = model.HuntStatusCompleted
	case hunt.HasEnded(now):
		listing.Status = model.HuntStatusEnded
	case !registered:
		listing.Status = model.HuntStatusRegister
	case !hunt.HasStarted(now):
		listing.Status = model.HuntStatusComingSoon
	default:
		listing.Status = model.HuntStatusStart
	}

	return listing, nil
}

// filterHunts drops placeholder hunts and keeps the most recent ones.
func filterHunts(hunts []*model.Hunt) []*model.Hunt {
	kept := make([]*model.Hunt, 0, len(hunts))
	for _, h := range hunts {
		name := strings.ToLower(h.Name)
		if strings.Contains(name, "test") || strings.Contains(name, "hello") {
			continue
		}
		if len(strings.TrimSpace(h.Description)) < 5 {
			continue
		}
		kept = append(kept, h)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].HuntID < kept[j].HuntID })
	if len(kept) > listingLimit {
		kept = kept[len(kept)-listingLimit:]
	}

	return kept
}

func (s *LifecycleService) validateDraft(draft *model.HuntDraft) error {
	if err := s.validate.Struct(draft); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHunt, err)
	}

	for i, clue := range draft.Clues {
		if clue.Index != i+1 {
			return fmt.Errorf("%w: clue %d has id %d", ErrInvalidHunt, i+1, clue.Index)
		}
		if (clue.Latitude == nil) != (clue.Longitude == nil) {
			return fmt.Errorf("%w: clue %d needs both lat and long", ErrInvalidHunt, clue.Index)
		}
		if strings.TrimSpace(clue.Answer) == "" && !clue.HasTarget() {
			return fmt.Errorf("%w: clue %d needs an answer or a location", ErrInvalidHunt, clue.Index)
		}
	}

	return nil
}

// CreateHunt seals the clue set, registers the hunt on the ledger and keeps
// the authored clues in the content cache.
func (s *LifecycleService) CreateHunt(ctx context.Context, draft *model.HuntDraft) (*model.Hunt, error) {
	if err := s.validateDraft(draft); err != nil {
		return nil, err
	}

	clues := make([]model.Clue, 0, len(draft.Clues))
	answers := make([]model.ClueAnswer, 0, len(draft.Clues))
	for _, c := range draft.Clues {
		clues = append(clues, c.Clue())
		answers = append(answers, c.ClueAnswer())
	}

	var ids blobstore.BlobIDs
	if s.blobs != nil && s.cfg.KeyMaterial != "" {
		var err error
		ids, err = s.blobs.PutEncrypted(ctx, clues, answers, s.cfg.KeyMaterial)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContentStore, err)
		}
	}

	hunt := &model.Hunt{
		Name:           draft.Name,
		Description:    draft.Description,
		StartsAt:       draft.StartsAt.UTC(),
		Duration:       draft.Duration(),
		ClueCount:      len(draft.Clues),
		Reward:         draft.Reward,
		Difficulty:     draft.Difficulty,
		Category:       draft.Category,
		TeamsEnabled:   draft.TeamsEnabled,
		MaxTeamSize:    draft.MaxTeamSize,
		Theme:          draft.Theme,
		NFTMetadataURI: draft.NFTMetadataURI,
		CluesBlobID:    ids.CluesBlobID,
		AnswersBlobID:  ids.AnswersBlobID,
	}

	huntID, err := s.ledger.CreateHunt(ctx, hunt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	log := logger.Logger().With(zap.Int64("hunt_id", huntID))

	if err := s.content.SaveCustomClues(ctx, huntID, draft.Clues); err != nil {
		// without a sealed copy the cache is the only home of the clues
		if ids.CluesBlobID == "" {
			log.Error("failed to store hunt clues", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrContentStore, err)
		}
		log.Warn("failed to cache sealed hunt clues", zap.Error(err))
	}

	created, err := s.getHunt(ctx, huntID)
	if err != nil {
		return nil, err
	}

	log.Info("hunt published", zap.Int("clues", created.ClueCount))

	return created, nil
}
