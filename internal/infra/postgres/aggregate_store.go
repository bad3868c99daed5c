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

// AggregateStore is the Postgres implementation of app.AggregateStore.
// Update uses an optimistic version column instead of a row lock: a writer
// that raced another gets domain.ErrConflict and the coordinator retries.
type AggregateStore struct {
	pool *pgxpool.Pool
}

func NewAggregateStore(pool *pgxpool.Pool) *AggregateStore {
	return &AggregateStore{pool: pool}
}

func (s *AggregateStore) Get(ctx context.Context, paperID string) (*domain.PaperAggregate, error) {
	agg, _, err := s.load(ctx, paperID)
	return agg, err
}

func (s *AggregateStore) GetByIDs(ctx context.Context, paperIDs []string) (map[string]*domain.PaperAggregate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM paper_aggregates WHERE paper_id = ANY($1)`, paperIDs)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()

	found := make(map[string]*domain.PaperAggregate, len(paperIDs))
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		var agg domain.PaperAggregate
		if err := json.Unmarshal(raw, &agg); err != nil {
			return nil, fmt.Errorf("unmarshal aggregate: %w", err)
		}
		found[agg.PaperID] = &agg
	}
	return found, rows.Err()
}

func (s *AggregateStore) Update(ctx context.Context, paperID string, fn func(agg *domain.PaperAggregate) (*domain.PaperAggregate, error)) (*domain.PaperAggregate, error) {
	current, version, err := s.load(ctx, paperID)
	if err != nil && !errors.Is(err, domain.ErrAggregateNotFound) {
		return nil, err
	}

	updated, err := fn(current)
	if err != nil {
		return nil, err
	}
	updated.Version = version + 1

	data, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate: %w", err)
	}

	if current == nil {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO paper_aggregates (paper_id, version, data)
			VALUES ($1, $2, $3)
			ON CONFLICT (paper_id) DO NOTHING`,
			paperID, updated.Version, data)
		if err != nil {
			return nil, fmt.Errorf("insert aggregate: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// another writer created the aggregate first
			return nil, domain.ErrConflict
		}
		return updated, nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE paper_aggregates SET version=$2, data=$3
		WHERE paper_id=$1 AND version=$4`,
		paperID, updated.Version, data, version)
	if err != nil {
		return nil, fmt.Errorf("update aggregate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrConflict
	}
	return updated, nil
}

func (s *AggregateStore) load(ctx context.Context, paperID string) (*domain.PaperAggregate, int64, error) {
	var raw []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT data, version FROM paper_aggregates WHERE paper_id=$1`, paperID).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, domain.ErrAggregateNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load aggregate: %w", err)
	}
	var agg domain.PaperAggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, 0, fmt.Errorf("unmarshal aggregate: %w", err)
	}
	return &agg, version, nil
}
