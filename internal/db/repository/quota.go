package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creator-radar/video-signal-engine-go/internal/db"
	"github.com/creator-radar/video-signal-engine-go/internal/db/models"
)

// QuotaRepository defines operations on the daily provider quota ledger.
type QuotaRepository interface {
	// GetTodaysQuota retrieves today's quota usage.
	GetTodaysQuota(ctx context.Context) (*models.QuotaInfo, error)

	// IncrementQuota adds units to today's row, creating it if absent.
	// kind is "search" or "stats_list".
	IncrementQuota(ctx context.Context, units int, kind string) error

	// GetQuotaForDate retrieves the ledger row for a specific date.
	GetQuotaForDate(ctx context.Context, date time.Time) (*models.APIQuotaUsage, error)
}

type quotaRepository struct {
	pool       *pgxpool.Pool
	dailyLimit int
}

// NewQuotaRepository creates a new QuotaRepository.
func NewQuotaRepository(pool *pgxpool.Pool, dailyLimit int) QuotaRepository {
	return &quotaRepository{pool: pool, dailyLimit: dailyLimit}
}

func (r *quotaRepository) GetTodaysQuota(ctx context.Context) (*models.QuotaInfo, error) {
	query := `
		SELECT COALESCE(quota_used, 0), COALESCE(operations_count, 0)
		FROM (SELECT 1) AS one
		LEFT JOIN api_quota_usage ON date = CURRENT_DATE
	`

	info := &models.QuotaInfo{QuotaLimit: r.dailyLimit}
	err := r.pool.QueryRow(ctx, query).Scan(&info.QuotaUsed, &info.OperationsCount)
	if err != nil {
		return nil, db.WrapError(err, "get todays quota")
	}

	info.QuotaRemaining = r.dailyLimit - info.QuotaUsed
	if info.QuotaRemaining < 0 {
		info.QuotaRemaining = 0
	}

	return info, nil
}

func (r *quotaRepository) IncrementQuota(ctx context.Context, units int, kind string) error {
	searchInc := 0
	statsInc := 0
	switch kind {
	case "search":
		searchInc = 1
	case "stats_list":
		statsInc = 1
	}

	query := `
		INSERT INTO api_quota_usage (date, quota_used, quota_limit, operations_count, search_calls, stats_list_calls)
		VALUES (CURRENT_DATE, $1, $2, 1, $3, $4)
		ON CONFLICT (date) DO UPDATE
		SET quota_used = api_quota_usage.quota_used + $1,
		    operations_count = api_quota_usage.operations_count + 1,
		    search_calls = api_quota_usage.search_calls + $3,
		    stats_list_calls = api_quota_usage.stats_list_calls + $4,
		    updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, units, r.dailyLimit, searchInc, statsInc); err != nil {
		return db.WrapError(err, "increment quota")
	}

	return nil
}

func (r *quotaRepository) GetQuotaForDate(ctx context.Context, date time.Time) (*models.APIQuotaUsage, error) {
	query := `
		SELECT id, date, quota_used, quota_limit, operations_count,
		       search_calls, stats_list_calls, created_at, updated_at
		FROM api_quota_usage
		WHERE date = $1
	`

	usage := &models.APIQuotaUsage{}
	err := r.pool.QueryRow(ctx, query, date.Format("2006-01-02")).Scan(
		&usage.ID,
		&usage.Date,
		&usage.QuotaUsed,
		&usage.QuotaLimit,
		&usage.OperationsCount,
		&usage.SearchCalls,
		&usage.StatsListCalls,
		&usage.CreatedAt,
		&usage.UpdatedAt,
	)

	if err != nil {
		return nil, db.WrapError(err, "get quota for date")
	}

	return usage, nil
}
