package postgres

import (
	"context"
	"errors"
	"fmt"

	"assessment-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogLoader reads test series and their enrollments.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) GetTestSeries(ctx context.Context, seriesID string) (domain.TestSeries, error) {
	series := domain.TestSeries{ID: seriesID}
	err := l.pool.QueryRow(ctx,
		`SELECT title, is_published, price FROM test_series WHERE id=$1`, seriesID,
	).Scan(&series.Title, &series.Published, &series.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TestSeries{}, domain.ErrTestSeriesNotFound
	}
	if err != nil {
		return domain.TestSeries{}, fmt.Errorf("load test series: %w", err)
	}
	return series, nil
}

func (l *CatalogLoader) IsEnrolled(ctx context.Context, seriesID, userID string) (bool, error) {
	var enrolled bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM test_series_enrollments WHERE series_id=$1 AND user_id=$2)`,
		seriesID, userID,
	).Scan(&enrolled)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return enrolled, nil
}
