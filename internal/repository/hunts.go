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

type hunt struct {
	ChainID         int64  `db:"chain_id"`
	HuntID          int64  `db:"hunt_id"`
	Name            string `db:"name"`
	Description     string `db:"description"`
	StartsAt        int64  `db:"starts_at"`
	DurationSeconds int64  `db:"duration_seconds"`
	ClueCount       int    `db:"clue_count"`
	Reward          string `db:"reward"`
	Difficulty      string `db:"difficulty"`
	Category        string `db:"category"`
	TeamsEnabled    bool   `db:"teams_enabled"`
	MaxTeamSize     int    `db:"max_team_size"`
	Theme           string `db:"theme"`
	NFTMetadataURI  string `db:"nft_metadata_uri"`
	CluesBlobID     string `db:"clues_blob_id"`
	AnswersBlobID   string `db:"answers_blob_id"`
	CreatedAt       int64  `db:"created_at"`
}

var huntColumns = []string{
	"chain_id", "hunt_id", "name", "description", "starts_at", "duration_seconds",
	"clue_count", "reward", "difficulty", "category", "teams_enabled", "max_team_size",
	"theme", "nft_metadata_uri", "clues_blob_id", "answers_blob_id", "created_at",
}

func (h hunt) toModel() *model.Hunt {
	return &model.Hunt{
		HuntID:         h.HuntID,
		ChainID:        h.ChainID,
		Name:           h.Name,
		Description:    h.Description,
		StartsAt:       fromMillis(h.StartsAt),
		Duration:       time.Duration(h.DurationSeconds) * time.Second,
		ClueCount:      h.ClueCount,
		Reward:         h.Reward,
		Difficulty:     h.Difficulty,
		Category:       h.Category,
		TeamsEnabled:   h.TeamsEnabled,
		MaxTeamSize:    h.MaxTeamSize,
		Theme:          h.Theme,
		NFTMetadataURI: h.NFTMetadataURI,
		CluesBlobID:    h.CluesBlobID,
		AnswersBlobID:  h.AnswersBlobID,
		CreatedAt:      fromMillis(h.CreatedAt),
	}
}

// InsertHunt assigns the next hunt id on the chain and stores the hunt under it.
func (r *Repository) InsertHunt(ctx context.Context, h *model.Hunt) (int64, error) {
	var huntID int64

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := r.builder().
			Select("COALESCE(MAX(hunt_id), 0) + 1").
			From("hunts").
			Where(squirrel.Eq{"chain_id": h.ChainID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build hunt id query: %w", err)
		}

		if err := tx.GetContext(ctx, &huntID, query, args...); err != nil {
			return fmt.Errorf("failed to allocate hunt id: %w", err)
		}

		createdAt := h.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		query, args, err = r.builder().
			Insert("hunts").
			Columns(huntColumns...).
			Values(
				h.ChainID, huntID, h.Name, h.Description, toMillis(h.StartsAt), int64(h.Duration/time.Second),
				h.ClueCount, h.Reward, h.Difficulty, h.Category, h.TeamsEnabled, h.MaxTeamSize,
				h.Theme, h.NFTMetadataURI, h.CluesBlobID, h.AnswersBlobID, toMillis(createdAt),
			).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build hunt insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert hunt: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return huntID, nil
}

func (r *Repository) GetHunt(ctx context.Context, chainID, huntID int64) (*model.Hunt, error) {
	query, args, err := r.builder().
		Select(huntColumns...).
		From("hunts").
		Where(squirrel.Eq{"chain_id": chainID, "hunt_id": huntID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build hunt query: %w", err)
	}

	var row hunt
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get hunt: %w", err)
	}

	h := row.toModel()
	if err := r.fillHuntStats(ctx, h); err != nil {
		return nil, err
	}

	return h, nil
}

func (r *Repository) ListHunts(ctx context.Context, chainID int64) ([]*model.Hunt, error) {
	return r.selectHunts(ctx, squirrel.Eq{"chain_id": chainID})
}

// HuntsDueToStart returns hunts whose start has passed and whose start was not yet announced.
func (r *Repository) HuntsDueToStart(ctx context.Context, chainID int64, now time.Time) ([]*model.Hunt, error) {
	return r.selectHunts(ctx, squirrel.And{
		squirrel.Eq{"chain_id": chainID, "started_emitted": false},
		squirrel.LtOrEq{"starts_at": toMillis(now)},
	})
}

// HuntsDueToEnd returns hunts with a duration that has elapsed and whose end was not yet announced.
func (r *Repository) HuntsDueToEnd(ctx context.Context, chainID int64, now time.Time) ([]*model.Hunt, error) {
	return r.selectHunts(ctx, squirrel.And{
		squirrel.Eq{"chain_id": chainID, "ended_emitted": false},
		squirrel.Gt{"duration_seconds": 0},
		squirrel.Expr("starts_at + duration_seconds * 1000 <= ?", toMillis(now)),
	})
}

func (r *Repository) MarkHuntStarted(ctx context.Context, chainID, huntID int64) error {
	return r.setHuntFlag(ctx, chainID, huntID, "started_emitted")
}

func (r *Repository) MarkHuntEnded(ctx context.Context, chainID, huntID int64) error {
	return r.setHuntFlag(ctx, chainID, huntID, "ended_emitted")
}

func (r *Repository) setHuntFlag(ctx context.Context, chainID, huntID int64, column string) error {
	query, args, err := r.builder().
		Update("hunts").
		Set(column, true).
		Where(squirrel.Eq{"chain_id": chainID, "hunt_id": huntID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build hunt %s update query: %w", column, err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update hunt %s: %w", column, err)
	}

	return nil
}

func (r *Repository) selectHunts(ctx context.Context, where squirrel.Sqlizer) ([]*model.Hunt, error) {
	query, args, err := r.builder().
		Select(huntColumns...).
		From("hunts").
		Where(where).
		OrderBy("hunt_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build hunts query: %w", err)
	}

	var rows []hunt
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list hunts: %w", err)
	}

	hunts := make([]*model.Hunt, 0, len(rows))
	for _, row := range rows {
		h := row.toModel()
		if err := r.fillHuntStats(ctx, h); err != nil {
			return nil, err
		}
		hunts = append(hunts, h)
	}

	return hunts, nil
}

func (r *Repository) fillHuntStats(ctx context.Context, h *model.Hunt) error {
	query, args, err := r.builder().
		Select("COUNT(*)").
		From("hunt_participants").
		Where(squirrel.Eq{"chain_id": h.ChainID, "hunt_id": h.HuntID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build participant count query: %w", err)
	}

	if err := r.db.GetContext(ctx, &h.ParticipantCount, query, args...); err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}

	query, args, err = r.builder().
		Select("address").
		From("hunt_winners").
		Where(squirrel.Eq{"chain_id": h.ChainID, "hunt_id": h.HuntID}).
		OrderBy("token_id ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build winners query: %w", err)
	}

	winners := []string{}
	if err := r.db.SelectContext(ctx, &winners, query, args...); err != nil {
		return fmt.Errorf("failed to list winners: %w", err)
	}
	h.Winners = winners

	return nil
}

func (r *Repository) huntExists(ctx context.Context, tx *sqlx.Tx, chainID, huntID int64) error {
	query, args, err := r.builder().
		Select("COUNT(*)").
		From("hunts").
		Where(squirrel.Eq{"chain_id": chainID, "hunt_id": huntID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build hunt exists query: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count, query, args...); err != nil {
		return fmt.Errorf("failed to check hunt: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}

	return nil
}

// AddHuntParticipant records a ledger registration. A second registration of
// the same address fails with ErrAlreadyRegistered.
func (r *Repository) AddHuntParticipant(ctx context.Context, chainID, huntID int64, address, token string) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.huntExists(ctx, tx, chainID, huntID); err != nil {
			return err
		}

		query, args, err := r.builder().
			Insert("hunt_participants").
			Columns("chain_id", "hunt_id", "address", "token", "registered_at").
			Values(chainID, huntID, address, token, toMillis(time.Now())).
			Suffix("ON CONFLICT (chain_id, hunt_id, address) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build participant insert query: %w", err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read participant insert result: %w", err)
		}
		if affected == 0 {
			return ErrAlreadyRegistered
		}

		return nil
	})
}

// AddHuntWinner records a winner and mints the next token id on the chain.
func (r *Repository) AddHuntWinner(ctx context.Context, chainID, huntID int64, address string) (int64, error) {
	var tokenID int64

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.huntExists(ctx, tx, chainID, huntID); err != nil {
			return err
		}

		query, args, err := r.builder().
			Select("COUNT(*)").
			From("hunt_winners").
			Where(squirrel.Eq{"chain_id": chainID, "hunt_id": huntID, "address": address}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build winner exists query: %w", err)
		}

		var count int
		if err := tx.GetContext(ctx, &count, query, args...); err != nil {
			return fmt.Errorf("failed to check winner: %w", err)
		}
		if count > 0 {
			return ErrAlreadyWinner
		}

		query, args, err = r.builder().
			Select("COALESCE(MAX(token_id), 0) + 1").
			From("hunt_winners").
			Where(squirrel.Eq{"chain_id": chainID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build token id query: %w", err)
		}

		if err := tx.GetContext(ctx, &tokenID, query, args...); err != nil {
			return fmt.Errorf("failed to allocate token id: %w", err)
		}

		query, args, err = r.builder().
			Insert("hunt_winners").
			Columns("chain_id", "hunt_id", "address", "token_id", "awarded_at").
			Values(chainID, huntID, address, tokenID, toMillis(time.Now())).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build winner insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyWinner
			}
			return fmt.Errorf("failed to insert winner: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return tokenID, nil
}

func (r *Repository) HuntWinnerToken(ctx context.Context, chainID, huntID int64, address string) (int64, error) {
	query, args, err := r.builder().
		Select("token_id").
		From("hunt_winners").
		Where(squirrel.Eq{"chain_id": chainID, "hunt_id": huntID, "address": address}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build token query: %w", err)
	}

	var tokenID int64
	if err := r.db.GetContext(ctx, &tokenID, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get token: %w", err)
	}

	return tokenID, nil
}
