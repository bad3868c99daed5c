// Package postgres persists analytics documents as JSONB, one table per
// document type, mirroring the document-store shape of the data model.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
)

// ResultStore is the Postgres implementation of app.ResultStore.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) Save(ctx context.Context, result *domain.PaperResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO paper_results (user_id, paper_id, created_at, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, paper_id) DO UPDATE SET created_at = EXCLUDED.created_at, data = EXCLUDED.data`,
		result.UserID, result.PaperID, result.CreatedAt, data)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *ResultStore) Get(ctx context.Context, userID, paperID string) (*domain.PaperResult, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM paper_results WHERE user_id=$1 AND paper_id=$2`,
		userID, paperID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	var result domain.PaperResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

func (s *ResultStore) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.PaperResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM paper_results WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []*domain.PaperResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var result domain.PaperResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, &result)
	}
	return results, rows.Err()
}
