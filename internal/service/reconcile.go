package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TH_treasure_hunt/internal/ledger"
	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/repository"
	"TH_treasure_hunt/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReconcileRepository interface {
	ListRegistrations(ctx context.Context, huntID int64) ([]model.Registration, error)
	RegistrationByAddress(ctx context.Context, huntID int64, address string) (*model.Registration, error)
	GetProgress(ctx context.Context, huntID int64, participantID string) ([]int, error)
	IsCompleted(ctx context.Context, huntID int64, participantID string) (bool, error)
	MarkCompleted(ctx context.Context, huntID int64, participantID string, totalClues int) error
	ClearCompleted(ctx context.Context, huntID int64, participantID string) error
	ImportClaim(ctx context.Context, huntID int64, participantID, address string, at time.Time) (bool, error)
	GetClaim(ctx context.Context, huntID int64, participantID string) (*model.Claim, error)
	ConfirmClaim(ctx context.Context, claimID uuid.UUID) error
}

type ReconcileReport struct {
	Checked         int
	Completed       int
	Cleared         int
	ClaimsImported  int
	ClaimsConfirmed int
}

// Reconciler brings local flags back in line with solved clues and with the ledger.
type Reconciler struct {
	repo   ReconcileRepository
	clues  ClueResolverI
	ledger ledger.Client
}

func NewReconciler(repo ReconcileRepository, clues ClueResolverI, ledgerClient ledger.Client) *Reconciler {
	return &Reconciler{
		repo:   repo,
		clues:  clues,
		ledger: ledgerClient,
	}
}

func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	log := logger.Logger()
	report := &ReconcileReport{}

	regs, err := r.repo.ListRegistrations(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	totals := make(map[int64]int)
	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		total, ok := totals[reg.HuntID]
		if !ok {
			total, err = r.clues.TotalClues(ctx, reg.HuntID)
			if err != nil {
				log.Warn("skipping hunt during reconcile", zap.Int64("hunt_id", reg.HuntID), zap.Error(err))
				continue
			}
			totals[reg.HuntID] = total
		}

		if err := r.reconcileCompletion(ctx, reg, total, report); err != nil {
			return report, err
		}
		report.Checked++
	}

	if r.ledger != nil {
		if err := r.importWinners(ctx, report); err != nil {
			return report, err
		}
	}

	log.Info("reconcile finished",
		zap.Int("checked", report.Checked),
		zap.Int("completed", report.Completed),
		zap.Int("cleared", report.Cleared),
		zap.Int("claims_imported", report.ClaimsImported))

	return report, nil
}

func (r *Reconciler) reconcileCompletion(ctx context.Context, reg model.Registration, total int, report *ReconcileReport) error {
	solved, err := r.repo.GetProgress(ctx, reg.HuntID, reg.ParticipantID)
	if err != nil {
		return err
	}

	done, err := r.repo.IsCompleted(ctx, reg.HuntID, reg.ParticipantID)
	if err != nil {
		return err
	}

	complete := total > 0 && len(solved) == total
	switch {
	case complete && !done:
		if err := r.repo.MarkCompleted(ctx, reg.HuntID, reg.ParticipantID, total); err != nil {
			return err
		}
		report.Completed++
		logger.Logger().Warn("completion flag was missing",
			zap.Int64("hunt_id", reg.HuntID), zap.String("participant_id", reg.ParticipantID))
	case !complete && done:
		if err := r.repo.ClearCompleted(ctx, reg.HuntID, reg.ParticipantID); err != nil {
			return err
		}
		report.Cleared++
		logger.Logger().Warn("completion flag did not match solved clues",
			zap.Int64("hunt_id", reg.HuntID), zap.String("participant_id", reg.ParticipantID),
			zap.Int("solved", len(solved)), zap.Int("total", total))
	}

	return nil
}

func (r *Reconciler) importWinners(ctx context.Context, report *ReconcileReport) error {
	hunts, err := r.ledger.GetAllHunts(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	for _, hunt := range hunts {
		for _, address := range hunt.Winners {
			reg, err := r.repo.RegistrationByAddress(ctx, hunt.HuntID, address)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			imported, err := r.repo.ImportClaim(ctx, hunt.HuntID, reg.ParticipantID, address, time.Now())
			if err != nil {
				return err
			}
			if imported {
				report.ClaimsImported++
				logger.Logger().Warn("imported ledger winner missing from local claims",
					zap.Int64("hunt_id", hunt.HuntID), zap.String("participant_id", reg.ParticipantID))
				continue
			}

			claim, err := r.repo.GetClaim(ctx, hunt.HuntID, reg.ParticipantID)
			if err != nil {
				return err
			}
			if claim.Status != model.ClaimStatusPending {
				continue
			}
			if err := r.repo.ConfirmClaim(ctx, claim.ClaimID); err != nil {
				return err
			}
			report.ClaimsConfirmed++
			logger.Logger().Warn("confirmed pending claim of a ledger winner",
				zap.Int64("hunt_id", hunt.HuntID), zap.String("participant_id", reg.ParticipantID))
		}
	}

	return nil
}
