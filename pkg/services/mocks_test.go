package services

import (
	"context"
	"sync"
	"time"

	"github.com/clearrate/clearrate-engine/pkg/models"
)

// mockRepository is an in-memory ClassificationRepository for unit tests.
// Error fields, when set, are returned by the corresponding method.
type mockRepository struct {
	mu      sync.Mutex
	records map[string]*models.ClassificationRecord

	getErr     error
	getAllErr  error
	replaceErr error
	clearErr   error
	statsErr   error

	replaceCalls int
	clearCalls   int
}

func newMockRepository(records ...*models.ClassificationRecord) *mockRepository {
	repo := &mockRepository{records: make(map[string]*models.ClassificationRecord)}
	for _, record := range records {
		repo.records[record.NPA] = record
	}
	return repo
}

func (m *mockRepository) Get(ctx context.Context, npa string) (*models.ClassificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.records[npa], nil
}

func (m *mockRepository) GetAll(ctx context.Context) ([]*models.ClassificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getAllErr != nil {
		return nil, m.getAllErr
	}
	records := make([]*models.ClassificationRecord, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record)
	}
	return records, nil
}

func (m *mockRepository) ReplaceAll(ctx context.Context, records []*models.ClassificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.records = make(map[string]*models.ClassificationRecord, len(records))
	for _, record := range records {
		m.records[record.NPA] = record
	}
	return nil
}

func (m *mockRepository) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	if m.clearErr != nil {
		return m.clearErr
	}
	m.records = make(map[string]*models.ClassificationRecord)
	return nil
}

func (m *mockRepository) Stats(ctx context.Context) (int, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return 0, nil, m.statsErr
	}
	var oldest *time.Time
	for _, record := range m.records {
		if oldest == nil || record.SyncedAt.Before(*oldest) {
			syncedAt := record.SyncedAt
			oldest = &syncedAt
		}
	}
	return len(m.records), oldest, nil
}

// mockRemote is a scriptable RemoteSource.
type mockRemote struct {
	mu sync.Mutex

	fetchAllRecords []*models.ClassificationRecord
	fetchAllErr     error
	fetchAllCalls   int
	fetchAllDelay   time.Duration

	fetchNPARecords map[string]*models.ClassificationRecord
	fetchNPAErr     error
	fetchNPACalls   int
}

func (m *mockRemote) FetchAll(ctx context.Context) ([]*models.ClassificationRecord, error) {
	m.mu.Lock()
	m.fetchAllCalls++
	delay := m.fetchAllDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchAllErr != nil {
		return nil, m.fetchAllErr
	}
	return m.fetchAllRecords, nil
}

func (m *mockRemote) FetchNPA(ctx context.Context, npa string) (*models.ClassificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchNPACalls++
	if m.fetchNPAErr != nil {
		return nil, m.fetchNPAErr
	}
	return m.fetchNPARecords[npa], nil
}

func (m *mockRemote) allCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchAllCalls
}

func (m *mockRemote) npaCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchNPACalls
}

// mockSeed is a fixed-map SeedSource.
type mockSeed struct {
	records map[string]*models.ClassificationRecord
}

func (m *mockSeed) Lookup(npa string) *models.ClassificationRecord {
	return m.records[npa]
}

func testRecord(npa string, category models.NPACategory, source models.RecordSource, confidence float64) *models.ClassificationRecord {
	record := &models.ClassificationRecord{
		NPA:             npa,
		CountryCode:     "US",
		CountryName:     "United States",
		Category:        category,
		Source:          source,
		ConfidenceScore: confidence,
		IsActive:        true,
		SyncedAt:        time.Now(),
	}
	if category == models.CategoryCanadian {
		record.CountryCode = "CA"
		record.CountryName = "Canada"
	}
	return record
}
