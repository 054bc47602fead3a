// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"photomark/internal/models"
	"photomark/internal/settings"
)

// Postgres keeps templates in a shared database table.
type Postgres struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	const op = "storage.NewPostgres"

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Postgres{pool: pool, db: db}, nil
}

func (p *Postgres) Close() {
	p.db.Close()
	p.pool.Close()
}

func (p *Postgres) Load(ctx context.Context) (map[string]models.WatermarkSettings, error) {
	const op = "storage.Postgres.Load"

	rows, err := p.pool.Query(ctx,
		`SELECT name, text, font_name, font_size, text_color, outline_color, alpha, style, pos_x, pos_y
		 FROM templates`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make(map[string]models.WatermarkSettings)
	for rows.Next() {
		var name string
		var r record
		if err := rows.Scan(&name, &r.Text, &r.FontName, &r.FontSize, &r.TextColor, &r.OutlineColor,
			&r.Alpha, &r.Style, &r.PosX, &r.PosY); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ws, err := r.settings()
		if err != nil {
			return nil, fmt.Errorf("%s: template %q: %w: %v", op, name, settings.ErrCorrupt, err)
		}
		out[name] = ws
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Save makes the table match templates in one transaction.
func (p *Postgres) Save(ctx context.Context, templates map[string]models.WatermarkSettings) error {
	const op = "storage.Postgres.Save"

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	names := make([]string, 0, len(templates))
	for name, ws := range templates {
		r := toRecord(ws)
		_, err := tx.Exec(ctx,
			`INSERT INTO templates (name, text, font_name, font_size, text_color, outline_color, alpha, style, pos_x, pos_y)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (name) DO UPDATE SET
			   text = EXCLUDED.text, font_name = EXCLUDED.font_name, font_size = EXCLUDED.font_size,
			   text_color = EXCLUDED.text_color, outline_color = EXCLUDED.outline_color, alpha = EXCLUDED.alpha,
			   style = EXCLUDED.style, pos_x = EXCLUDED.pos_x, pos_y = EXCLUDED.pos_y, updated_at = now()`,
			name, r.Text, r.FontName, r.FontSize, r.TextColor, r.OutlineColor, r.Alpha, r.Style, r.PosX, r.PosY)
		if err != nil {
			return fmt.Errorf("%s: upsert %q: %w", op, name, err)
		}
		names = append(names, name)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM templates WHERE NOT (name = ANY($1))`, names); err != nil {
		return fmt.Errorf("%s: prune: %w", op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
