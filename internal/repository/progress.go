package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TH_treasure_hunt/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type registration struct {
	HuntID        int64  `db:"hunt_id"`
	ParticipantID string `db:"participant_id"`
	Address       string `db:"address"`
	Token         string `db:"token"`
	RegisteredAt  int64  `db:"registered_at"`
}

func (r registration) toModel() model.Registration {
	return model.Registration{
		HuntID:        r.HuntID,
		ParticipantID: r.ParticipantID,
		Address:       r.Address,
		Token:         r.Token,
		RegisteredAt:  fromMillis(r.RegisteredAt),
	}
}

// errDuplicateAppend marks a lost race on an identical append; it never leaves the package.
var errDuplicateAppend = errors.New("clue index already appended")

// GetProgress returns the solved indices in ascending order. Only the
// contiguous run 1..k counts as solved, so stray rows past a gap are ignored.
func (r *Repository) GetProgress(ctx context.Context, huntID int64, participantID string) ([]int, error) {
	return r.solvedIndices(ctx, r.db, huntID, participantID)
}

func (r *Repository) solvedIndices(ctx context.Context, q sqlx.QueryerContext, huntID int64, participantID string) ([]int, error) {
	query, args, err := r.builder().
		Select("clue_index").
		From("solved_clues").
		Where(r.scope(squirrel.Eq{"hunt_id": huntID, "participant_id": participantID})).
		OrderBy("clue_index ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build solved clues query: %w", err)
	}

	var indices []int
	if err := sqlx.SelectContext(ctx, q, &indices, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get solved clues: %w", err)
	}

	return solvedPrefix(indices), nil
}

func solvedPrefix(sorted []int) []int {
	prefix := make([]int, 0, len(sorted))
	for _, index := range sorted {
		if index != len(prefix)+1 {
			break
		}
		prefix = append(prefix, index)
	}
	return prefix
}

// AppendSolved records index as solved. Re-appending a solved index is a
// no-op; any index other than the next one fails with ErrOutOfOrder.
func (r *Repository) AppendSolved(ctx context.Context, huntID int64, participantID string, index int) error {
	return r.appendSolved(ctx, huntID, participantID, index, 0)
}

// AppendFinal records the last clue of a hunt and sets the completion flag in
// one transaction, so neither is stored without the other.
func (r *Repository) AppendFinal(ctx context.Context, huntID int64, participantID string, index, totalClues int) error {
	if totalClues <= 0 || index != totalClues {
		return fmt.Errorf("%w: clue %d is not the last of %d", ErrIncomplete, index, totalClues)
	}
	return r.appendSolved(ctx, huntID, participantID, index, totalClues)
}

// appendSolved also completes the hunt when totalClues is positive.
func (r *Repository) appendSolved(ctx context.Context, huntID int64, participantID string, index, totalClues int) error {
	var appended, completed bool

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		registered, err := r.isRegistered(ctx, tx, huntID, participantID)
		if err != nil {
			return err
		}
		if !registered {
			return ErrNotRegistered
		}

		solved, err := r.solvedIndices(ctx, tx, huntID, participantID)
		if err != nil {
			return err
		}

		switch {
		case index >= 1 && index <= len(solved):
			// already solved
		case index != len(solved)+1:
			return fmt.Errorf("%w: got %d, expected %d", ErrOutOfOrder, index, len(solved)+1)
		default:
			query, args, err := r.builder().
				Insert("solved_clues").
				SetMap(map[string]interface{}{
					"chain_id":       r.chainID,
					"hunt_id":        huntID,
					"participant_id": participantID,
					"clue_index":     index,
					"solved_at":      toMillis(time.Now()),
				}).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build solved clue insert query: %w", err)
			}

			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				if isUniqueViolation(err) {
					return errDuplicateAppend
				}
				return fmt.Errorf("failed to insert solved clue: %w", err)
			}
			appended = true
		}

		if totalClues > 0 {
			completed, err = r.markCompleted(ctx, tx, huntID, participantID, totalClues)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if errors.Is(err, errDuplicateAppend) {
		// a concurrent append of the same index won; it may not have completed
		if totalClues > 0 {
			return r.MarkCompleted(ctx, huntID, participantID, totalClues)
		}
		return nil
	}
	if err != nil {
		return err
	}

	if appended {
		r.publish(model.Event{
			Kind:          model.EventClueSolved,
			HuntID:        huntID,
			ParticipantID: participantID,
			ClueIndex:     index,
		})
	}
	if completed {
		r.publishCompleted(huntID, participantID, totalClues)
	}

	return nil
}

func (r *Repository) IsRegistered(ctx context.Context, huntID int64, participantID string) (bool, error) {
	return r.isRegistered(ctx, r.db, huntID, participantID)
}

func (r *Repository) isRegistered(ctx context.Context, q sqlx.QueryerContext, huntID int64, participantID string) (bool, error) {
	query, args, err := r.builder().
		Select("COUNT(*)").
		From("registrations").
		Where(r.scope(squirrel.Eq{"hunt_id": huntID, "participant_id": participantID})).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build registration query: %w", err)
	}

	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, args...); err != nil {
		return false, fmt.Errorf("failed to check registration: %w", err)
	}

	return count > 0, nil
}

// SetRegistered stores the registration flag. Setting it twice keeps the first record.
func (r *Repository) SetRegistered(ctx context.Context, reg model.Registration) error {
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now()
	}

	query, args, err := r.builder().
		Insert("registrations").
		SetMap(map[string]interface{}{
			"chain_id":       r.chainID,
			"hunt_id":        reg.HuntID,
			"participant_id": reg.ParticipantID,
			"address":        reg.Address,
			"token":          reg.Token,
			"registered_at":  toMillis(reg.RegisteredAt),
		}).
		Suffix("ON CONFLICT (chain_id, hunt_id, participant_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build registration insert query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert registration: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read registration insert result: %w", err)
	}

	if inserted > 0 {
		r.publish(model.Event{
			Kind:          model.EventRegistered,
			HuntID:        reg.HuntID,
			ParticipantID: reg.ParticipantID,
			Payload:       map[string]any{"address": reg.Address},
		})
	}

	return nil
}

func (r *Repository) GetRegistration(ctx context.Context, huntID int64, participantID string) (*model.Registration, error) {
	query, args, err := r.builder().
		Select("hunt_id", "participant_id", "address", "token", "registered_at").
		From("registrations").
		Where(r.scope(squirrel.Eq{"hunt_id": huntID, "participant_id": participantID})).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build registration query: %w", err)
	}

	var row registration
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}

	reg := row.toModel()
	return &reg, nil
}

// RegistrationByAddress finds the participant registered for a hunt with a ledger address.
func (r *Repository) RegistrationByAddress(ctx context.Context, huntID int64, address string) (*model.Registration, error) {
	query, args, err := r.builder().
		Select("hunt_id", "participant_id", "address", "token", "registered_at").
		From("registrations").
		Where(r.scope(squirrel.Eq{"hunt_id": huntID, "address": address})).
		OrderBy("registered_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build registration query: %w", err)
	}

	var row registration
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get registration by address: %w", err)
	}

	reg := row.toModel()
	return &reg, nil
}

// ListRegistrations returns every registration, or those of one hunt when huntID > 0.
func (r *Repository) ListRegistrations(ctx context.Context, huntID int64) ([]model.Registration, error) {
	builder := r.builder().
		Select("hunt_id", "participant_id", "address", "token", "registered_at").
		From("registrations").
		OrderBy("hunt_id ASC", "registered_at ASC")
	filter := r.scope(squirrel.Eq{})
	if huntID > 0 {
		filter["hunt_id"] = huntID
	}
	builder = builder.Where(filter)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build registrations query: %w", err)
	}

	var rows []registration
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	regs := make([]model.Registration, 0, len(rows))
	for _, row := range rows {
		regs = append(regs, row.toModel())
	}

	return regs, nil
}

func (r *Repository) IsCompleted(ctx context.Context, huntID int64, participantID string) (bool, error) {
	query, args, err := r.builder().
		Select("COUNT(*)").
		From("completions").
		Where(r.scope(squirrel.Eq{"hunt_id": huntID, "participant_id": participantID})).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build completion query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}

	return count > 0, nil
}

// MarkCompleted sets the completion flag once every clue of the hunt is solved.
func (r *Repository) MarkCompleted(ctx context.Context, huntID int64, participantID string, totalClues int) error {
	var inserted bool

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		inserted, err = r.markCompleted(ctx, tx, huntID, participantID, totalClues)
		return err
	})
	if err != nil {
		return err
	}

	if inserted {
		r.publishCompleted(huntID, participantID, totalClues)
	}

	return nil
}

// markCompleted reports whether it inserted the completion row.
func (r *Repository) markCompleted(ctx context.Context, tx *sqlx.Tx, huntID int64, participantID string, totalClues int) (bool, error) {
	solved, err := r.solvedIndices(ctx, tx, huntID, participantID)
	if err != nil {
		return false, err
	}
	if totalClues <= 0 || len(solved) != totalClues {
		return false, fmt.Errorf("%w: solved %d of %d", ErrIncomplete, len(solved), totalClues)
	}

	query, args, err := r.builder().
		Insert("completions").
		SetMap(map[string]interface{}{
			"chain_id":       r.chainID,
			"hunt_id":        huntID,
			"participant_id": participantID,
			"total_clues":    totalClues,
			"completed_at":   toMillis(time.Now()),
		}).
		Suffix("ON CONFLICT (chain_id, hunt_id, participant_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build completion insert query: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert completion: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read completion insert result: %w", err)
	}

	return affected > 0, nil
}

func (r *Repository) publishCompleted(huntID int64, participantID string, totalClues int) {
	r.publish(model.Event{
		Kind:          model.EventCompleted,
		HuntID:        huntID,
		ParticipantID: participantID,
		Payload:       map[string]any{"total_clues": totalClues},
	})
}

// ClearCompleted removes a completion flag that no longer matches the solved set.
func (r *Repository) ClearCompleted(ctx context.Context, huntID int64, participantID string) error {
	query, args, err := r.builder().
		Delete("completions").
		Where(r.scope(squirrel.Eq{"hunt_id": huntID, "participant_id": participantID})).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build completion delete query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete completion: %w", err)
	}

	return nil
}

// Progress gathers the stored state of one participant in one hunt.
func (r *Repository) Progress(ctx context.Context, huntID int64, participantID string) (*model.Progress, error) {
	solved, err := r.GetProgress(ctx, huntID, participantID)
	if err != nil {
		return nil, err
	}

	registered, err := r.IsRegistered(ctx, huntID, participantID)
	if err != nil {
		return nil, err
	}

	completed, err := r.IsCompleted(ctx, huntID, participantID)
	if err != nil {
		return nil, err
	}

	return &model.Progress{
		HuntID:        huntID,
		ParticipantID: participantID,
		Solved:        solved,
		Registered:    registered,
		Completed:     completed,
	}, nil
}
