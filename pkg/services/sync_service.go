package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/clearrate/clearrate-engine/pkg/models"
	"github.com/clearrate/clearrate-engine/pkg/repositories"
	"github.com/clearrate/clearrate-engine/pkg/retry"
)

// DefaultSyncFreshness is how old the oldest synced record may get before
// the local replica counts as stale.
const DefaultSyncFreshness = 24 * time.Hour

// SyncService owns synchronization of the local NPA replica against the
// canonical LERG provider: staleness detection, single-flight execution,
// full-replace semantics, and sync-status bookkeeping.
type SyncService interface {
	// Initialize syncs if the replica is absent or stale, otherwise
	// recomputes status from the existing store. Safe to call at startup.
	Initialize(ctx context.Context) error

	// ShouldSync reports whether the replica is empty or stale.
	ShouldSync(ctx context.Context) (bool, error)

	// ForceSync always executes a sync regardless of staleness. Returns
	// the resulting status. A sync already in flight makes this a no-op.
	ForceSync(ctx context.Context) (models.SyncStatus, error)

	// ClearLocalData removes the local replica and resets status. It does
	// not cancel a sync in flight; last writer wins, so a concurrent
	// sync committing afterward repopulates the store. Operators who want
	// the store to stay empty clear again once sync_in_progress drops.
	ClearLocalData(ctx context.Context) error

	// Status returns a snapshot of the current sync status.
	Status() models.SyncStatus

	// HealthStatus is the read-only diagnostic view for consumers.
	HealthStatus(ctx context.Context) (*models.HealthStatus, error)

	// LocalStats summarizes the local replica by category and source.
	LocalStats(ctx context.Context) (*models.LocalStats, error)
}

type syncService struct {
	repo      repositories.ClassificationRepository
	remote    RemoteSource
	cache     *ClassificationCache
	logger    *zap.Logger
	freshness time.Duration
	retryCfg  *retry.Config

	// syncing is the one deliberate mutual-exclusion point: concurrent
	// syncs coalesce into a no-op via compare-and-swap, never a queued
	// retry. It also serializes all store writers.
	syncing atomic.Bool

	mu     sync.Mutex
	status models.SyncStatus
}

// NewSyncService creates a new SyncService. cache may be nil.
func NewSyncService(
	repo repositories.ClassificationRepository,
	remote RemoteSource,
	cache *ClassificationCache,
	freshness time.Duration,
	logger *zap.Logger,
) SyncService {
	if freshness <= 0 {
		freshness = DefaultSyncFreshness
	}
	return &syncService{
		repo:      repo,
		remote:    remote,
		cache:     cache,
		logger:    logger.Named("sync"),
		freshness: freshness,
		retryCfg:  retry.DefaultConfig(),
	}
}

var _ SyncService = (*syncService)(nil)

func (s *syncService) ShouldSync(ctx context.Context) (bool, error) {
	count, oldest, err := s.repo.Stats(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read replica stats: %w", err)
	}

	if count == 0 {
		return true, nil
	}
	if oldest != nil && time.Since(*oldest) > s.freshness {
		return true, nil
	}
	return false, nil
}

func (s *syncService) Initialize(ctx context.Context) error {
	needed, err := s.ShouldSync(ctx)
	if err != nil {
		return err
	}

	if needed {
		s.logger.Info("Local replica absent or stale, syncing from LERG provider")
		return s.sync(ctx)
	}

	// Replica is fresh; just rebuild status bookkeeping from the store.
	count, oldest, err := s.repo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read replica stats: %w", err)
	}

	s.mu.Lock()
	s.status.TotalRecords = count
	s.status.LastSync = oldest
	s.mu.Unlock()

	s.logger.Info("Local replica is fresh, skipping sync",
		zap.Int("records", count))
	return nil
}

func (s *syncService) ForceSync(ctx context.Context) (models.SyncStatus, error) {
	err := s.sync(ctx)
	return s.Status(), err
}

// sync performs one single-flight full-replace sync. If another sync is in
// progress it returns immediately without contacting the provider or
// touching the store.
func (s *syncService) sync(ctx context.Context) error {
	if !s.syncing.CompareAndSwap(false, true) {
		s.logger.Debug("Sync already in progress, coalescing")
		return nil
	}
	defer func() {
		s.syncing.Store(false)
		s.mu.Lock()
		s.status.SyncInProgress = false
		s.mu.Unlock()
	}()

	s.mu.Lock()
	s.status.SyncInProgress = true
	s.status.LastError = ""
	s.mu.Unlock()

	start := time.Now()

	var records []*models.ClassificationRecord
	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		var fetchErr error
		records, fetchErr = s.remote.FetchAll(ctx)
		return fetchErr
	})
	if err != nil {
		return s.fail(fmt.Errorf("LERG bulk fetch failed: %w", err))
	}

	syncedAt := time.Now()
	for _, record := range records {
		record.SyncedAt = syncedAt
	}

	if err := s.repo.ReplaceAll(ctx, records); err != nil {
		return s.fail(fmt.Errorf("failed to replace local replica: %w", err))
	}

	s.mu.Lock()
	s.status.LastSync = &syncedAt
	s.status.TotalRecords = len(records)
	s.mu.Unlock()

	s.cache.Flush(ctx)

	s.logger.Info("Synced LERG dataset",
		zap.Int("records", len(records)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// fail records a sync failure without mutating the store, so in-flight
// readers keep serving the stale but valid replica.
func (s *syncService) fail(err error) error {
	s.mu.Lock()
	s.status.LastError = err.Error()
	s.mu.Unlock()

	s.logger.Error("Sync failed", zap.Error(err))
	return err
}

func (s *syncService) ClearLocalData(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear local replica: %w", err)
	}

	s.mu.Lock()
	s.status = models.SyncStatus{}
	s.mu.Unlock()

	s.cache.Flush(ctx)

	s.logger.Info("Cleared local LERG replica")
	return nil
}

func (s *syncService) Status() models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *syncService) HealthStatus(ctx context.Context) (*models.HealthStatus, error) {
	stale, err := s.ShouldSync(ctx)
	if err != nil {
		return nil, err
	}

	status := s.Status()
	health := &models.HealthStatus{
		Status:       "ok",
		Stale:        stale,
		LastSync:     status.LastSync,
		TotalRecords: status.TotalRecords,
		LastError:    status.LastError,
	}
	if stale || status.LastError != "" {
		health.Status = "degraded"
	}
	return health, nil
}

func (s *syncService) LocalStats(ctx context.Context) (*models.LocalStats, error) {
	records, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read local replica: %w", err)
	}

	stats := &models.LocalStats{
		TotalRecords: len(records),
		ByCategory:   make(map[models.NPACategory]int),
		BySource:     make(map[string]int),
		Status:       s.Status(),
	}

	for _, record := range records {
		stats.ByCategory[record.Category]++
		stats.BySource[string(record.Source)]++
		if stats.OldestSync == nil || record.SyncedAt.Before(*stats.OldestSync) {
			syncedAt := record.SyncedAt
			stats.OldestSync = &syncedAt
		}
	}

	return stats, nil
}
