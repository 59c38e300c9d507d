package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"TH_treasure_hunt/pkg/logger"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationTable = "schema_migrations"

// migrate applies each embedded migration at most once, in file name order.
func (r *Repository) migrate(ctx context.Context) error {
	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name TEXT NOT NULL PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`, migrationTable)
	if _, err := r.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		err = r.Transaction(ctx, func(tx *sqlx.Tx) error {
			query, args, err := r.builder().
				Select("COUNT(*)").
				From(migrationTable).
				Where("name = ?", file).
				ToSql()
			if err != nil {
				return err
			}

			var applied int
			if err := tx.GetContext(ctx, &applied, query, args...); err != nil {
				return err
			}
			if applied > 0 {
				return nil
			}

			for _, stmt := range splitStatements(upSection(string(content))) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("exec migration %s: %w", file, err)
				}
			}

			insert, insertArgs, err := r.builder().
				Insert(migrationTable).
				Columns("name", "applied_at").
				Values(file, toMillis(time.Now())).
				ToSql()
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, insert, insertArgs...)
			return err
		})
		if err != nil {
			return err
		}

		logger.Logger().Debug("migration checked", zap.String("file", file))
	}

	return nil
}

func upSection(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
