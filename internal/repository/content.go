package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TH_treasure_hunt/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// SaveCustomClues stores a creator-authored clue set. A hunt keeps its first set.
func (r *Repository) SaveCustomClues(ctx context.Context, huntID int64, clues []model.ClueContent) error {
	content, err := json.Marshal(clues)
	if err != nil {
		return fmt.Errorf("failed to encode clues: %w", err)
	}

	query, args, err := r.builder().
		Insert("custom_clues").
		SetMap(map[string]interface{}{
			"chain_id":   r.chainID,
			"hunt_id":    huntID,
			"content":    string(content),
			"created_at": toMillis(time.Now()),
		}).
		Suffix("ON CONFLICT (chain_id, hunt_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build custom clues insert query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert custom clues: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read custom clues insert result: %w", err)
	}
	if affected == 0 {
		return ErrContentExists
	}

	return nil
}

func (r *Repository) CustomClues(ctx context.Context, huntID int64) ([]model.ClueContent, error) {
	query, args, err := r.builder().
		Select("content").
		From("custom_clues").
		Where(r.scope(squirrel.Eq{"hunt_id": huntID})).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build custom clues query: %w", err)
	}

	var content string
	if err := r.db.GetContext(ctx, &content, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get custom clues: %w", err)
	}

	var clues []model.ClueContent
	if err := json.Unmarshal([]byte(content), &clues); err != nil {
		return nil, fmt.Errorf("failed to decode custom clues for hunt %d: %w", huntID, err)
	}

	return clues, nil
}
