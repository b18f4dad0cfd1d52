package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/clearrate/clearrate-engine/pkg/apperrors"
	"github.com/clearrate/clearrate-engine/pkg/models"
	"github.com/clearrate/clearrate-engine/pkg/repositories"
)

// LookupService resolves a single NPA to a classification record using a
// local-first strategy with remote and seed fallbacks.
type LookupService interface {
	// GetNPALocation returns the record for an NPA, or (nil, nil) when no
	// resolver has one. A malformed NPA is an error; a valid NPA with no
	// data is not.
	GetNPALocation(ctx context.Context, npa string) (*models.ClassificationRecord, error)
}

// resolver is one tier of the fallback chain. A (nil, nil) return means a
// clean miss and resolution falls through to the next tier.
type resolver struct {
	name string
	fn   func(ctx context.Context, npa string) (*models.ClassificationRecord, error)
}

type lookupService struct {
	resolvers []resolver
	logger    *zap.Logger
}

// NewLookupService builds the resolver chain: local store first, then a
// single-record remote fetch (covers NPAs assigned upstream since the last
// sync), then the optional seed dataset. Fallback reads are read-through
// only; they never write back to the store. seed may be nil.
func NewLookupService(
	repo repositories.ClassificationRepository,
	remote RemoteSource,
	seed SeedSource,
	logger *zap.Logger,
) LookupService {
	resolvers := []resolver{
		{name: "local", fn: func(ctx context.Context, npa string) (*models.ClassificationRecord, error) {
			return repo.Get(ctx, npa)
		}},
		{name: "remote", fn: func(ctx context.Context, npa string) (*models.ClassificationRecord, error) {
			return remote.FetchNPA(ctx, npa)
		}},
	}
	if seed != nil {
		resolvers = append(resolvers, resolver{name: "seed", fn: func(_ context.Context, npa string) (*models.ClassificationRecord, error) {
			return seed.Lookup(npa), nil
		}})
	}

	return &lookupService{
		resolvers: resolvers,
		logger:    logger.Named("lookup"),
	}
}

var _ LookupService = (*lookupService)(nil)

func (s *lookupService) GetNPALocation(ctx context.Context, npa string) (*models.ClassificationRecord, error) {
	if !models.IsValidNPA(npa) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidNPA, npa)
	}

	var firstErr error
	errored := 0
	for _, res := range s.resolvers {
		record, err := res.fn(ctx, npa)
		if err != nil {
			errored++
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("Resolver failed, falling through",
				zap.String("resolver", res.name),
				zap.String("npa", npa),
				zap.Error(err))
			continue
		}
		if record != nil {
			s.logger.Debug("Resolved NPA",
				zap.String("resolver", res.name),
				zap.String("npa", npa))
			return record, nil
		}
	}

	// A clean miss anywhere in the chain means the data genuinely does
	// not exist: a normal business outcome. Only a chain where every
	// tier malfunctioned surfaces the original error, since that is a
	// diagnosable system condition rather than absent data.
	if firstErr != nil && errored == len(s.resolvers) {
		return nil, fmt.Errorf("all resolvers failed for NPA %s: %w", npa, firstErr)
	}

	return nil, nil
}
