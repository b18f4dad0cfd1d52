package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clearrate/clearrate-engine/pkg/models"
)

// batchChunkSize bounds per-chunk concurrency: chunks run sequentially,
// lookups within a chunk run in parallel.
const batchChunkSize = 100

func (s *classificationService) CategorizeNPAsBatch(ctx context.Context, npas []string) (*models.BatchResult, error) {
	start := time.Now()

	unique := dedupeNPAs(npas)

	result := &models.BatchResult{
		Total:           len(unique),
		UnknownNPAs:     []string{},
		Classifications: make(map[string]*models.PublicClassification, len(unique)),
	}

	var mu sync.Mutex
	for chunkStart := 0; chunkStart < len(unique); chunkStart += batchChunkSize {
		chunkEnd := chunkStart + batchChunkSize
		if chunkEnd > len(unique) {
			chunkEnd = len(unique)
		}
		chunk := unique[chunkStart:chunkEnd]

		g, gctx := errgroup.WithContext(ctx)
		for _, npa := range chunk {
			g.Go(func() error {
				classification, err := s.CategorizeNPA(gctx, npa)
				if err != nil {
					// Entries were pre-filtered, so this only
					// fires on context cancellation.
					return err
				}

				mu.Lock()
				result.Classifications[npa] = classification
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for npa, classification := range result.Classifications {
		if classification.Category == models.CategoryUnknown {
			result.Unknown++
			result.UnknownNPAs = append(result.UnknownNPAs, npa)
		} else {
			result.Resolved++
		}
	}
	sort.Strings(result.UnknownNPAs)

	result.ElapsedMS = time.Since(start).Milliseconds()

	s.logger.Debug("Classified NPA batch",
		zap.Int("input", len(npas)),
		zap.Int("unique", result.Total),
		zap.Int("resolved", result.Resolved),
		zap.Int("unknown", result.Unknown),
		zap.Int64("elapsed_ms", result.ElapsedMS))

	return result, nil
}

// GenerateSummary is a pure aggregation over a classification map: category
// buckets, confidence bands, and per-source counts. Used for diagnostics and
// reporting, never for control flow.
func (s *classificationService) GenerateSummary(classifications map[string]*models.PublicClassification) *models.BatchSummary {
	summary := &models.BatchSummary{
		Total:      len(classifications),
		ByCategory: make(map[models.NPACategory]models.CategoryBucket),
		ConfidenceBands: map[string]int{
			models.BandHigh:   0,
			models.BandMedium: 0,
			models.BandLow:    0,
		},
		BySource: make(map[string]int),
	}

	for npa, classification := range classifications {
		bucket := summary.ByCategory[classification.Category]
		bucket.Count++
		bucket.NPAs = append(bucket.NPAs, npa)
		summary.ByCategory[classification.Category] = bucket

		summary.ConfidenceBands[models.ConfidenceBand(classification.ConfidenceScore)]++
		summary.BySource[classification.Source]++
	}

	for category, bucket := range summary.ByCategory {
		sort.Strings(bucket.NPAs)
		summary.ByCategory[category] = bucket
	}

	return summary
}

// dedupeNPAs drops malformed entries and duplicates, preserving first-seen
// order. Malformed entries are filtered silently: a bad row in a large rate
// sheet must not abort the whole batch.
func dedupeNPAs(npas []string) []string {
	seen := make(map[string]struct{}, len(npas))
	unique := make([]string, 0, len(npas))
	for _, npa := range npas {
		if !models.IsValidNPA(npa) {
			continue
		}
		if _, dup := seen[npa]; dup {
			continue
		}
		seen[npa] = struct{}{}
		unique = append(unique, npa)
	}
	return unique
}
