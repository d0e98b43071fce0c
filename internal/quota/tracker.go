// Package quota provides provider quota accounting.
package quota

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/creator-radar/video-signal-engine-go/internal/db/models"
	"github.com/creator-radar/video-signal-engine-go/internal/db/repository"
	"github.com/creator-radar/video-signal-engine-go/internal/observability"
)

// Call kinds recorded against the daily ledger.
const (
	KindSearch    = "search"
	KindStatsList = "stats_list"
)

// Tracker is the injected quota accounting collaborator. Explicitly passed
// rather than module-level state so accounting stays testable in isolation.
type Tracker interface {
	// RecordCall records one provider call of the given kind and unit cost.
	RecordCall(ctx context.Context, kind string, estimatedUnits int) error

	// Available reports whether the requested units fit under the daily
	// threshold.
	Available(ctx context.Context, estimatedUnits int) (bool, error)
}

// Manager implements Tracker over the quota ledger repository.
type Manager struct {
	repo             repository.QuotaRepository
	dailyLimit       int
	thresholdPercent int
	log              *zap.Logger
}

// NewManager creates a quota manager. thresholdPercent stops new provider
// work once that share of the daily limit is consumed.
func NewManager(repo repository.QuotaRepository, dailyLimit, thresholdPercent int, log *zap.Logger) *Manager {
	if dailyLimit <= 0 {
		dailyLimit = 10000 // provider default daily budget
	}
	if thresholdPercent <= 0 || thresholdPercent > 100 {
		thresholdPercent = 90
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Manager{
		repo:             repo,
		dailyLimit:       dailyLimit,
		thresholdPercent: thresholdPercent,
		log:              log,
	}
}

var _ Tracker = (*Manager)(nil)

func (m *Manager) RecordCall(ctx context.Context, kind string, estimatedUnits int) error {
	if err := m.repo.IncrementQuota(ctx, estimatedUnits, kind); err != nil {
		return fmt.Errorf("record quota call: %w", err)
	}

	observability.QuotaUnits.WithLabelValues(kind).Add(float64(estimatedUnits))

	m.log.Debug("quota call recorded",
		zap.String("kind", kind),
		zap.Int("units", estimatedUnits),
	)

	return nil
}

func (m *Manager) Available(ctx context.Context, estimatedUnits int) (bool, error) {
	info, err := m.repo.GetTodaysQuota(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota info: %w", err)
	}

	threshold := (m.dailyLimit * m.thresholdPercent) / 100
	if info.QuotaUsed+estimatedUnits > threshold {
		m.log.Warn("quota threshold reached",
			zap.Int("used", info.QuotaUsed),
			zap.Int("threshold", threshold),
			zap.Int("requested", estimatedUnits),
		)
		return false, nil
	}

	return true, nil
}

// Info returns today's quota position.
func (m *Manager) Info(ctx context.Context) (*models.QuotaInfo, error) {
	return m.repo.GetTodaysQuota(ctx)
}
