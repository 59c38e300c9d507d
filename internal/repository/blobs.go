package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

// PutBlob stores sealed content under its content address. Storing the same id twice is a no-op.
func (r *Repository) PutBlob(ctx context.Context, blobID, data string) error {
	query, args, err := r.builder().
		Insert("blobs").
		Columns("blob_id", "data", "created_at").
		Values(blobID, data, toMillis(time.Now())).
		Suffix("ON CONFLICT (blob_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build blob insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert blob: %w", err)
	}

	return nil
}

func (r *Repository) GetBlob(ctx context.Context, blobID string) (string, error) {
	query, args, err := r.builder().
		Select("data").
		From("blobs").
		Where(squirrel.Eq{"blob_id": blobID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build blob query: %w", err)
	}

	var data string
	if err := r.db.GetContext(ctx, &data, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get blob: %w", err)
	}

	return data, nil
}
