package services

import (
	"context"

	"github.com/clearrate/clearrate-engine/pkg/models"
)

// RemoteSource is the canonical dataset provider boundary. The bulk fetch is
// authoritative and unpaginated; the single-record fetch backs the lookup
// fallback path. Both are fallible I/O.
type RemoteSource interface {
	FetchAll(ctx context.Context) ([]*models.ClassificationRecord, error)
	FetchNPA(ctx context.Context, npa string) (*models.ClassificationRecord, error)
}

// SeedSource is the optional offline dataset backing the last resolver tier.
type SeedSource interface {
	Lookup(npa string) *models.ClassificationRecord
}
