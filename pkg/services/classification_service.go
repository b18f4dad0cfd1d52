package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/clearrate/clearrate-engine/pkg/apperrors"
	"github.com/clearrate/clearrate-engine/pkg/models"
)

// ClassificationService is the public categorization surface consumed by
// report generation, CSV export, and +1 destination detection.
type ClassificationService interface {
	// CategorizeNPA classifies a single NPA. It errors only on a
	// malformed NPA; a valid NPA always yields a classification, degrading
	// to unknown/confidence-0 when no data exists or lookups fail.
	CategorizeNPA(ctx context.Context, npa string) (*models.PublicClassification, error)

	// CategorizeNPAsBatch classifies a deduplicated batch. Malformed
	// entries are dropped, not fatal; each NPA's outcome is independent.
	CategorizeNPAsBatch(ctx context.Context, npas []string) (*models.BatchResult, error)

	// GenerateSummary aggregates a classification map for diagnostics.
	GenerateSummary(classifications map[string]*models.PublicClassification) *models.BatchSummary
}

type classificationService struct {
	lookup LookupService
	cache  *ClassificationCache
	logger *zap.Logger
}

// NewClassificationService creates a new ClassificationService. cache may
// be nil.
func NewClassificationService(lookup LookupService, cache *ClassificationCache, logger *zap.Logger) ClassificationService {
	return &classificationService{
		lookup: lookup,
		cache:  cache,
		logger: logger.Named("classification"),
	}
}

var _ ClassificationService = (*classificationService)(nil)

func (s *classificationService) CategorizeNPA(ctx context.Context, npa string) (*models.PublicClassification, error) {
	if !models.IsValidNPA(npa) {
		return nil, apperrors.ErrInvalidNPA
	}

	if cached, ok := s.cache.Get(ctx, npa); ok {
		return cached, nil
	}

	record, err := s.lookup.GetNPALocation(ctx, npa)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidNPA) {
			return nil, err
		}
		// Lookup malfunction degrades to unknown rather than failing
		// the caller: report generation must keep rendering.
		s.logger.Warn("Lookup failed, classifying as unknown",
			zap.String("npa", npa),
			zap.Error(err))
		return models.UnknownClassification(npa), nil
	}

	if record == nil {
		return models.UnknownClassification(npa), nil
	}

	classification := &models.PublicClassification{
		NPA:             record.NPA,
		Category:        record.Category,
		ConfidenceScore: record.ConfidenceScore,
		DisplayLocation: record.DisplayLocation(),
		Source:          string(record.Source),
		IsActive:        record.IsActive,
	}

	s.cache.Set(ctx, npa, classification)
	return classification, nil
}
