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

// TimeSeriesStore is the Postgres implementation of app.TimeSeriesStore.
type TimeSeriesStore struct {
	pool *pgxpool.Pool
}

func NewTimeSeriesStore(pool *pgxpool.Pool) *TimeSeriesStore {
	return &TimeSeriesStore{pool: pool}
}

func (s *TimeSeriesStore) Save(ctx context.Context, record *domain.TimeSeriesRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal time series: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO paper_time_series (user_id, paper_id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, paper_id) DO UPDATE SET data = EXCLUDED.data`,
		record.UserID, record.PaperID, data)
	if err != nil {
		return fmt.Errorf("save time series: %w", err)
	}
	return nil
}

func (s *TimeSeriesStore) Get(ctx context.Context, userID, paperID string) (*domain.TimeSeriesRecord, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM paper_time_series WHERE user_id=$1 AND paper_id=$2`,
		userID, paperID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTimeSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load time series: %w", err)
	}
	var record domain.TimeSeriesRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("unmarshal time series: %w", err)
	}
	return &record, nil
}
