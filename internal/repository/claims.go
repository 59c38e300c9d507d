package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TH_treasure_hunt/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type claim struct {
	ClaimID       string `db:"claim_id"`
	HuntID        int64  `db:"hunt_id"`
	ParticipantID string `db:"participant_id"`
	Address       string `db:"address"`
	Status        string `db:"status"`
	ClaimedAt     int64  `db:"claimed_at"`
}

func (c claim) toModel() (*model.Claim, error) {
	id, err := uuid.Parse(c.ClaimID)
	if err != nil {
		return nil, fmt.Errorf("invalid claim id %q: %w", c.ClaimID, err)
	}
	return &model.Claim{
		ClaimID:       id,
		HuntID:        c.HuntID,
		ParticipantID: c.ParticipantID,
		Address:       c.Address,
		Status:        model.ClaimStatus(c.Status),
		ClaimedAt:     fromMillis(c.ClaimedAt),
	}, nil
}

// errClaimRace marks a reservation lost to a concurrent insert; it never leaves the package.
var errClaimRace = errors.New("claim reserved concurrently")

var claimColumns = []string{"claim_id", "hunt_id", "participant_id", "address", "status", "claimed_at"}

// ReserveClaim inserts a pending claim unless one already exists. The
// returned flag reports whether this call made the reservation; when it is
// false the existing claim is returned instead.
func (r *Repository) ReserveClaim(ctx context.Context, huntID int64, participantID, address string) (*model.Claim, bool, error) {
	var (
		result   *model.Claim
		reserved bool
	)

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		existing, err := r.getClaim(ctx, tx, huntID, participantID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		c := &model.Claim{
			ClaimID:       uuid.New(),
			HuntID:        huntID,
			ParticipantID: participantID,
			Address:       address,
			Status:        model.ClaimStatusPending,
			ClaimedAt:     time.Now().UTC(),
		}

		query, args, err := r.builder().
			Insert("claims").
			Columns(append([]string{"chain_id"}, claimColumns...)...).
			Values(r.chainID, c.ClaimID.String(), c.HuntID, c.ParticipantID, c.Address, string(c.Status), toMillis(c.ClaimedAt)).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build claim insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return errClaimRace
			}
			return fmt.Errorf("failed to insert claim: %w", err)
		}

		result = c
		reserved = true
		return nil
	})
	if errors.Is(err, errClaimRace) {
		// a concurrent reservation committed first; hand back its row
		existing, err := r.GetClaim(ctx, huntID, participantID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return result, reserved, nil
}

// ConfirmClaim marks a pending claim as confirmed. Confirming an already
// confirmed claim is a no-op.
func (r *Repository) ConfirmClaim(ctx context.Context, claimID uuid.UUID) error {
	query, args, err := r.builder().
		Update("claims").
		Set("status", string(model.ClaimStatusConfirmed)).
		Where(r.scope(squirrel.Eq{"claim_id": claimID.String(), "status": string(model.ClaimStatusPending)})).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build claim confirm query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to confirm claim: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read claim confirm result: %w", err)
	}

	c, err := r.getClaimByID(ctx, claimID)
	if err != nil {
		return err
	}
	if affected == 0 {
		if c.Status == model.ClaimStatusConfirmed {
			return nil
		}
		return ErrNotFound
	}

	r.publish(model.Event{
		Kind:          model.EventClaimed,
		HuntID:        c.HuntID,
		ParticipantID: c.ParticipantID,
		Payload:       map[string]any{"address": c.Address, "claim_id": c.ClaimID.String()},
	})

	return nil
}

// ReleaseClaim drops a pending reservation. Confirmed claims are never released.
func (r *Repository) ReleaseClaim(ctx context.Context, claimID uuid.UUID) error {
	query, args, err := r.builder().
		Delete("claims").
		Where(r.scope(squirrel.Eq{"claim_id": claimID.String(), "status": string(model.ClaimStatusPending)})).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build claim release query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}

	return nil
}

func (r *Repository) GetClaim(ctx context.Context, huntID int64, participantID string) (*model.Claim, error) {
	return r.getClaim(ctx, r.db, huntID, participantID)
}

func (r *Repository) getClaim(ctx context.Context, q sqlx.QueryerContext, huntID int64, participantID string) (*model.Claim, error) {
	query, args, err := r.builder().
		Select(claimColumns...).
		From("claims").
		Where(r.scope(squirrel.Eq{"hunt_id": huntID, "participant_id": participantID})).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build claim query: %w", err)
	}

	var row claim
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return row.toModel()
}

func (r *Repository) getClaimByID(ctx context.Context, claimID uuid.UUID) (*model.Claim, error) {
	query, args, err := r.builder().
		Select(claimColumns...).
		From("claims").
		Where(r.scope(squirrel.Eq{"claim_id": claimID.String()})).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build claim query: %w", err)
	}

	var row claim
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return row.toModel()
}

// ImportClaim records a claim already confirmed on the ledger. It reports
// whether a row was written.
func (r *Repository) ImportClaim(ctx context.Context, huntID int64, participantID, address string, at time.Time) (bool, error) {
	query, args, err := r.builder().
		Insert("claims").
		Columns(append([]string{"chain_id"}, claimColumns...)...).
		Values(r.chainID, uuid.New().String(), huntID, participantID, address, string(model.ClaimStatusConfirmed), toMillis(at)).
		Suffix("ON CONFLICT (chain_id, hunt_id, participant_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build claim import query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to import claim: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim import result: %w", err)
	}

	return affected > 0, nil
}
