package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clearrate/clearrate-engine/pkg/database"
	"github.com/clearrate/clearrate-engine/pkg/models"
)

// ClassificationRepository is the local NPA record store: a persisted replica
// of the canonical LERG dataset, replaced wholesale by each successful sync.
type ClassificationRepository interface {
	// Get returns the active record for an NPA, or (nil, nil) when absent.
	Get(ctx context.Context, npa string) (*models.ClassificationRecord, error)

	// GetAll returns every active record.
	GetAll(ctx context.Context) ([]*models.ClassificationRecord, error)

	// ReplaceAll atomically swaps the full record set. On failure the
	// prior records remain untouched.
	ReplaceAll(ctx context.Context, records []*models.ClassificationRecord) error

	// Clear removes all records.
	Clear(ctx context.Context) error

	// Stats returns the active record count and the oldest synced-at
	// timestamp, or a nil timestamp when the store is empty.
	Stats(ctx context.Context) (int, *time.Time, error)
}

type classificationRepository struct {
	db *database.DB

	// index caches active records by NPA for O(1) lookups during report
	// generation. nil means dirty: any mutation sets it to nil and the
	// next read rebuilds it from the authoritative table. gen counts
	// mutations; a rebuild installs its result only if gen is unchanged
	// since the rebuild started, so a reader racing a dataset swap can
	// never publish a pre-swap index.
	mu    sync.RWMutex
	index map[string]*models.ClassificationRecord
	gen   uint64
}

// NewClassificationRepository creates a new ClassificationRepository backed
// by Postgres.
func NewClassificationRepository(db *database.DB) ClassificationRepository {
	return &classificationRepository{db: db}
}

var _ ClassificationRepository = (*classificationRepository)(nil)

const classificationColumns = `id, npa, country_code, country_name,
	state_province_code, state_province_name, region, category, source,
	confidence_score, notes, is_active, synced_at, created_at, updated_at`

func (r *classificationRepository) Get(ctx context.Context, npa string) (*models.ClassificationRecord, error) {
	r.mu.RLock()
	if r.index != nil {
		record := r.index[npa]
		r.mu.RUnlock()
		return record, nil
	}
	r.mu.RUnlock()

	index, err := r.rebuildIndex(ctx)
	if err != nil {
		return nil, err
	}
	return index[npa], nil
}

func (r *classificationRepository) GetAll(ctx context.Context) ([]*models.ClassificationRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM nanp_classifications
		WHERE is_active
		ORDER BY npa`, classificationColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification records: %w", err)
	}
	defer rows.Close()

	var records []*models.ClassificationRecord
	for rows.Next() {
		record, err := scanClassificationRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating classification records: %w", err)
	}

	return records, nil
}

func (r *classificationRepository) ReplaceAll(ctx context.Context, records []*models.ClassificationRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM nanp_classifications`); err != nil {
		return fmt.Errorf("failed to clear classification records: %w", err)
	}

	now := time.Now()
	copyRows := make([][]any, 0, len(records))
	for _, record := range records {
		id := record.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		copyRows = append(copyRows, []any{
			id,
			record.NPA,
			record.CountryCode,
			record.CountryName,
			record.StateProvinceCode,
			record.StateProvinceName,
			nullString(record.Region),
			string(record.Category),
			string(record.Source),
			record.ConfidenceScore,
			nullString(record.Notes),
			record.IsActive,
			record.SyncedAt,
			createdAt,
			now,
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"nanp_classifications"},
		[]string{
			"id", "npa", "country_code", "country_name",
			"state_province_code", "state_province_name", "region",
			"category", "source", "confidence_score", "notes",
			"is_active", "synced_at", "created_at", "updated_at",
		},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return fmt.Errorf("failed to insert classification records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit replacement: %w", err)
	}

	r.invalidateIndex()
	return nil
}

func (r *classificationRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM nanp_classifications`); err != nil {
		return fmt.Errorf("failed to clear classification records: %w", err)
	}

	r.invalidateIndex()
	return nil
}

func (r *classificationRepository) Stats(ctx context.Context) (int, *time.Time, error) {
	query := `
		SELECT COUNT(*), MIN(synced_at)
		FROM nanp_classifications
		WHERE is_active`

	var count int
	var oldest *time.Time
	if err := r.db.QueryRow(ctx, query).Scan(&count, &oldest); err != nil {
		return 0, nil, fmt.Errorf("failed to query classification stats: %w", err)
	}

	return count, oldest, nil
}

// rebuildIndex loads all active records and installs them as the lookup
// index. Rebuild cost is O(n), paid once per mutation rather than per read.
// The table read deliberately happens outside the lock; installIndex
// discards the result if a mutation landed in between. The returned map is
// still valid for the caller's own lookup, since it is a point-in-time
// snapshot taken before the mutation.
func (r *classificationRepository) rebuildIndex(ctx context.Context) (map[string]*models.ClassificationRecord, error) {
	gen := r.indexGen()

	records, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string]*models.ClassificationRecord, len(records))
	for _, record := range records {
		index[record.NPA] = record
	}

	r.installIndex(index, gen)
	return index, nil
}

func (r *classificationRepository) indexGen() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

// installIndex publishes a rebuilt index unless the generation moved while
// the rebuild was reading the table. A rebuild that lost the race is
// discarded and the next read rebuilds from the post-mutation table.
func (r *classificationRepository) installIndex(index map[string]*models.ClassificationRecord, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return
	}
	r.index = index
}

func (r *classificationRepository) invalidateIndex() {
	r.mu.Lock()
	r.index = nil
	r.gen++
	r.mu.Unlock()
}

func scanClassificationRecord(row pgx.Row) (*models.ClassificationRecord, error) {
	var rec models.ClassificationRecord
	var region, notes *string

	err := row.Scan(
		&rec.ID,
		&rec.NPA,
		&rec.CountryCode,
		&rec.CountryName,
		&rec.StateProvinceCode,
		&rec.StateProvinceName,
		&region,
		&rec.Category,
		&rec.Source,
		&rec.ConfidenceScore,
		&notes,
		&rec.IsActive,
		&rec.SyncedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan classification record: %w", err)
	}

	if region != nil {
		rec.Region = *region
	}
	if notes != nil {
		rec.Notes = *notes
	}

	return &rec, nil
}

// nullString returns nil if the string is empty, otherwise returns the string pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
