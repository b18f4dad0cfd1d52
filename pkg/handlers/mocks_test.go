package handlers

import (
	"context"
	"errors"

	"github.com/clearrate/clearrate-engine/pkg/apperrors"
	"github.com/clearrate/clearrate-engine/pkg/models"
)

// mockClassificationService returns scripted classifications keyed by NPA;
// unmapped valid NPAs degrade to the unknown classification, matching the
// real service's contract.
type mockClassificationService struct {
	classifications map[string]*models.PublicClassification
	batchErr        error
}

func (m *mockClassificationService) CategorizeNPA(ctx context.Context, npa string) (*models.PublicClassification, error) {
	if !models.IsValidNPA(npa) {
		return nil, apperrors.ErrInvalidNPA
	}
	if c, ok := m.classifications[npa]; ok {
		return c, nil
	}
	return models.UnknownClassification(npa), nil
}

func (m *mockClassificationService) CategorizeNPAsBatch(ctx context.Context, npas []string) (*models.BatchResult, error) {
	if m.batchErr != nil {
		return nil, m.batchErr
	}

	result := &models.BatchResult{
		UnknownNPAs:     []string{},
		Classifications: make(map[string]*models.PublicClassification),
	}
	seen := make(map[string]struct{})
	for _, npa := range npas {
		if !models.IsValidNPA(npa) {
			continue
		}
		if _, dup := seen[npa]; dup {
			continue
		}
		seen[npa] = struct{}{}

		classification, _ := m.CategorizeNPA(ctx, npa)
		result.Classifications[npa] = classification
		result.Total++
		if classification.Category == models.CategoryUnknown {
			result.Unknown++
			result.UnknownNPAs = append(result.UnknownNPAs, npa)
		} else {
			result.Resolved++
		}
	}
	return result, nil
}

func (m *mockClassificationService) GenerateSummary(classifications map[string]*models.PublicClassification) *models.BatchSummary {
	return &models.BatchSummary{
		Total:           len(classifications),
		ByCategory:      map[models.NPACategory]models.CategoryBucket{},
		ConfidenceBands: map[string]int{},
		BySource:        map[string]int{},
	}
}

// mockLookupService returns scripted records keyed by NPA.
type mockLookupService struct {
	records   map[string]*models.ClassificationRecord
	lookupErr error
}

func (m *mockLookupService) GetNPALocation(ctx context.Context, npa string) (*models.ClassificationRecord, error) {
	if !models.IsValidNPA(npa) {
		return nil, apperrors.ErrInvalidNPA
	}
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.records[npa], nil
}

// mockSyncService is a scriptable SyncService for handler tests.
type mockSyncService struct {
	status     models.SyncStatus
	health     *models.HealthStatus
	stats      *models.LocalStats
	syncErr    error
	clearErr   error
	syncCalls  int
	clearCalls int
}

var errMockUnconfigured = errors.New("mock not configured")

func (m *mockSyncService) Initialize(ctx context.Context) error { return nil }

func (m *mockSyncService) ShouldSync(ctx context.Context) (bool, error) { return false, nil }

func (m *mockSyncService) ForceSync(ctx context.Context) (models.SyncStatus, error) {
	m.syncCalls++
	return m.status, m.syncErr
}

func (m *mockSyncService) ClearLocalData(ctx context.Context) error {
	m.clearCalls++
	return m.clearErr
}

func (m *mockSyncService) Status() models.SyncStatus { return m.status }

func (m *mockSyncService) HealthStatus(ctx context.Context) (*models.HealthStatus, error) {
	if m.health == nil {
		return nil, errMockUnconfigured
	}
	return m.health, nil
}

func (m *mockSyncService) LocalStats(ctx context.Context) (*models.LocalStats, error) {
	if m.stats == nil {
		return nil, errMockUnconfigured
	}
	return m.stats, nil
}
