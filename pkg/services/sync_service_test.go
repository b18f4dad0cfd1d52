package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clearrate/clearrate-engine/pkg/models"
)

func newTestSyncService(repo *mockRepository, remote *mockRemote) SyncService {
	return NewSyncService(repo, remote, nil, DefaultSyncFreshness, zap.NewNop())
}

func TestShouldSyncEmptyStore(t *testing.T) {
	svc := newTestSyncService(newMockRepository(), &mockRemote{})

	needed, err := svc.ShouldSync(context.Background())
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestShouldSyncFreshStore(t *testing.T) {
	record := testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.95)
	record.SyncedAt = time.Now().Add(-1 * time.Hour)
	svc := newTestSyncService(newMockRepository(record), &mockRemote{})

	needed, err := svc.ShouldSync(context.Background())
	require.NoError(t, err)
	assert.False(t, needed)
}

func TestShouldSyncStaleStore(t *testing.T) {
	// Staleness keys off the oldest record, so one expired row makes the
	// whole replica stale.
	fresh := testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.95)
	stale := testRecord("416", models.CategoryCanadian, models.SourceLERG, 0.95)
	stale.SyncedAt = time.Now().Add(-25 * time.Hour)
	svc := newTestSyncService(newMockRepository(fresh, stale), &mockRemote{})

	needed, err := svc.ShouldSync(context.Background())
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestForceSyncReplacesReplica(t *testing.T) {
	repo := newMockRepository(
		testRecord("999", models.CategoryCaribbean, models.SourceManual, 0.8),
	)
	remote := &mockRemote{
		fetchAllRecords: []*models.ClassificationRecord{
			testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98),
			testRecord("416", models.CategoryCanadian, models.SourceLERG, 0.97),
		},
	}
	svc := newTestSyncService(repo, remote)

	status, err := svc.ForceSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, status.TotalRecords)
	require.NotNil(t, status.LastSync)
	assert.Empty(t, status.LastError)
	assert.False(t, status.SyncInProgress)

	// Full replace: the manual record is gone, remote records are in.
	count, _, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	got, err := repo.Get(context.Background(), "999")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestForceSyncIsIdempotent(t *testing.T) {
	remote := &mockRemote{
		fetchAllRecords: []*models.ClassificationRecord{
			testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98),
		},
	}
	repo := newMockRepository()
	svc := newTestSyncService(repo, remote)

	for i := 0; i < 3; i++ {
		status, err := svc.ForceSync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, status.TotalRecords)
	}

	count, _, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSyncStampsUniformSyncedAt(t *testing.T) {
	records := []*models.ClassificationRecord{
		testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98),
		testRecord("416", models.CategoryCanadian, models.SourceLERG, 0.97),
	}
	records[0].SyncedAt = time.Time{}
	records[1].SyncedAt = time.Time{}

	repo := newMockRepository()
	svc := newTestSyncService(repo, &mockRemote{fetchAllRecords: records})

	_, err := svc.ForceSync(context.Background())
	require.NoError(t, err)

	stored, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.False(t, stored[0].SyncedAt.IsZero())
	assert.Equal(t, stored[0].SyncedAt, stored[1].SyncedAt)
}

func TestConcurrentSyncsCoalesce(t *testing.T) {
	remote := &mockRemote{
		fetchAllRecords: []*models.ClassificationRecord{
			testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98),
		},
		fetchAllDelay: 100 * time.Millisecond,
	}
	svc := newTestSyncService(newMockRepository(), remote)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ForceSync(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// One winner contacts the provider; the rest return immediately.
	assert.Equal(t, 1, remote.allCalls())
}

func TestSyncFailureLeavesReplicaUntouched(t *testing.T) {
	existing := testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98)
	existing.SyncedAt = time.Now().Add(-48 * time.Hour)
	repo := newMockRepository(existing)
	remote := &mockRemote{fetchAllErr: errors.New("provider unavailable")}
	svc := newTestSyncService(repo, remote)

	status, err := svc.ForceSync(context.Background())
	require.Error(t, err)

	assert.NotEmpty(t, status.LastError)
	assert.Contains(t, status.LastError, "provider unavailable")
	assert.False(t, status.SyncInProgress)

	// The stale replica keeps serving.
	got, err := repo.Get(context.Background(), "212")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, repo.replaceCalls)
}

func TestSyncSuccessClearsLastError(t *testing.T) {
	remote := &mockRemote{fetchAllErr: errors.New("provider unavailable")}
	repo := newMockRepository()
	svc := newTestSyncService(repo, remote)

	_, err := svc.ForceSync(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, svc.Status().LastError)

	remote.mu.Lock()
	remote.fetchAllErr = nil
	remote.fetchAllRecords = []*models.ClassificationRecord{
		testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98),
	}
	remote.mu.Unlock()

	status, err := svc.ForceSync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 1, status.TotalRecords)
}

func TestInitializeSkipsSyncWhenFresh(t *testing.T) {
	record := testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98)
	repo := newMockRepository(record)
	remote := &mockRemote{}
	svc := newTestSyncService(repo, remote)

	require.NoError(t, svc.Initialize(context.Background()))

	assert.Equal(t, 0, remote.allCalls())
	assert.Equal(t, 1, svc.Status().TotalRecords)
}

func TestInitializeSyncsWhenEmpty(t *testing.T) {
	remote := &mockRemote{
		fetchAllRecords: []*models.ClassificationRecord{
			testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98),
		},
	}
	repo := newMockRepository()
	svc := newTestSyncService(repo, remote)

	require.NoError(t, svc.Initialize(context.Background()))

	assert.Equal(t, 1, remote.allCalls())
	count, _, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClearLocalData(t *testing.T) {
	repo := newMockRepository(
		testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98),
	)
	svc := newTestSyncService(repo, &mockRemote{})

	_, err := svc.ForceSync(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.ClearLocalData(context.Background()))

	count, _, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	status := svc.Status()
	assert.Nil(t, status.LastSync)
	assert.Zero(t, status.TotalRecords)
}

func TestHealthStatus(t *testing.T) {
	t.Run("fresh replica is ok", func(t *testing.T) {
		repo := newMockRepository(
			testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98),
		)
		svc := newTestSyncService(repo, &mockRemote{})
		require.NoError(t, svc.Initialize(context.Background()))

		health, err := svc.HealthStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", health.Status)
		assert.False(t, health.Stale)
	})

	t.Run("empty replica is degraded", func(t *testing.T) {
		svc := newTestSyncService(newMockRepository(), &mockRemote{})

		health, err := svc.HealthStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "degraded", health.Status)
		assert.True(t, health.Stale)
	})

	t.Run("sync failure is degraded", func(t *testing.T) {
		record := testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98)
		repo := newMockRepository(record)
		remote := &mockRemote{fetchAllErr: errors.New("boom")}
		svc := newTestSyncService(repo, remote)

		_, err := svc.ForceSync(context.Background())
		require.Error(t, err)

		health, err := svc.HealthStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "degraded", health.Status)
		assert.NotEmpty(t, health.LastError)
	})
}

func TestLocalStats(t *testing.T) {
	oldest := time.Now().Add(-2 * time.Hour)
	old := testRecord("416", models.CategoryCanadian, models.SourceLERG, 0.97)
	old.SyncedAt = oldest
	repo := newMockRepository(
		testRecord("212", models.CategoryUSDomestic, models.SourceLERG, 0.98),
		testRecord("213", models.CategoryUSDomestic, models.SourceLERG, 0.98),
		old,
	)
	svc := newTestSyncService(repo, &mockRemote{})

	stats, err := svc.LocalStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalRecords)
	assert.Equal(t, 2, stats.ByCategory[models.CategoryUSDomestic])
	assert.Equal(t, 1, stats.ByCategory[models.CategoryCanadian])
	assert.Equal(t, 3, stats.BySource["lerg"])
	require.NotNil(t, stats.OldestSync)
	assert.WithinDuration(t, oldest, *stats.OldestSync, time.Second)
}
