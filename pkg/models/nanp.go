package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// NPACategory buckets an area code for rate-sheet analysis.
type NPACategory string

const (
	CategoryUSDomestic NPACategory = "us-domestic"
	CategoryCanadian   NPACategory = "canadian"
	CategoryCaribbean  NPACategory = "caribbean"
	CategoryPacific    NPACategory = "pacific"

	// CategoryUnknown is only ever produced for NPAs with no record.
	// It is never stored.
	CategoryUnknown NPACategory = "unknown"
)

// RecordSource is the provenance of a stored classification record.
type RecordSource string

const (
	SourceLERG   RecordSource = "lerg"
	SourceManual RecordSource = "manual"
	SourceImport RecordSource = "import"
	SourceSeed   RecordSource = "seed"
)

// SourceFallback marks a classification that no resolver could back with a
// record. It appears only on PublicClassification, never on stored records.
const SourceFallback = "fallback"

// Confidence band thresholds, shared by single classification and batch
// summaries so the high/medium/low banding is defined in exactly one place.
const (
	ConfidenceHighThreshold   = 0.9
	ConfidenceMediumThreshold = 0.7
)

const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// ConfidenceBand returns the band name for a confidence score.
func ConfidenceBand(score float64) string {
	switch {
	case score >= ConfidenceHighThreshold:
		return BandHigh
	case score >= ConfidenceMediumThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

var npaPattern = regexp.MustCompile(`^[0-9]{3}$`)

// IsValidNPA reports whether s is a syntactically valid area code
// (exactly three ASCII digits).
func IsValidNPA(s string) bool {
	return npaPattern.MatchString(s)
}

// ClassificationRecord maps one NPA to its geographic metadata.
type ClassificationRecord struct {
	ID                uuid.UUID    `json:"id"`
	NPA               string       `json:"npa"`
	CountryCode       string       `json:"country_code"`
	CountryName       string       `json:"country_name"`
	StateProvinceCode string       `json:"state_province_code"`
	StateProvinceName string       `json:"state_province_name"`
	Region            string       `json:"region,omitempty"`
	Category          NPACategory  `json:"category"`
	Source            RecordSource `json:"source"`
	ConfidenceScore   float64      `json:"confidence_score"`
	Notes             string       `json:"notes,omitempty"`
	IsActive          bool         `json:"is_active"`
	SyncedAt          time.Time    `json:"synced_at"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Validate checks the invariants every stored record must satisfy.
func (r *ClassificationRecord) Validate() error {
	if !IsValidNPA(r.NPA) {
		return fmt.Errorf("invalid NPA %q: must be exactly 3 digits", r.NPA)
	}

	switch r.Category {
	case CategoryUSDomestic, CategoryCanadian, CategoryCaribbean, CategoryPacific:
	default:
		return fmt.Errorf("invalid category %q for NPA %s", r.Category, r.NPA)
	}

	switch r.Source {
	case SourceLERG, SourceManual, SourceImport, SourceSeed:
	default:
		return fmt.Errorf("invalid source %q for NPA %s", r.Source, r.NPA)
	}

	if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score %v for NPA %s out of range [0,1]", r.ConfidenceScore, r.NPA)
	}

	if r.CountryCode == "" || r.CountryName == "" {
		return fmt.Errorf("missing country identifiers for NPA %s", r.NPA)
	}

	return nil
}

// DisplayLocation renders a human-readable location string.
func (r *ClassificationRecord) DisplayLocation() string {
	if r.StateProvinceName != "" {
		return fmt.Sprintf("%s, %s", r.StateProvinceName, r.CountryName)
	}
	return r.CountryName
}

// SyncStatus describes the state of the local LERG replica.
type SyncStatus struct {
	LastSync       *time.Time `json:"last_sync,omitempty"`
	TotalRecords   int        `json:"total_records"`
	SyncInProgress bool       `json:"sync_in_progress"`
	LastError      string     `json:"last_error,omitempty"`
}

// HealthStatus is the read-only diagnostic view exposed to consumers.
type HealthStatus struct {
	Status       string     `json:"status"`
	Stale        bool       `json:"stale"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	TotalRecords int        `json:"total_records"`
	LastError    string     `json:"last_error,omitempty"`
}

// LocalStats summarizes the local replica for diagnostics.
type LocalStats struct {
	TotalRecords int                 `json:"total_records"`
	ByCategory   map[NPACategory]int `json:"by_category"`
	BySource     map[string]int      `json:"by_source"`
	OldestSync   *time.Time          `json:"oldest_sync,omitempty"`
	Status       SyncStatus          `json:"status"`
}

// PublicClassification is the derived shape consumers depend on.
// It is never persisted.
type PublicClassification struct {
	NPA             string      `json:"npa"`
	Category        NPACategory `json:"category"`
	ConfidenceScore float64     `json:"confidence_score"`
	DisplayLocation string      `json:"display_location"`
	Source          string      `json:"source"`
	IsActive        bool        `json:"is_active"`
}

// UnknownClassification builds the degraded result for an NPA no resolver
// could place. Confidence 0 and source "fallback" let consumers tell
// best-effort output apart from authoritative data.
func UnknownClassification(npa string) *PublicClassification {
	return &PublicClassification{
		NPA:             npa,
		Category:        CategoryUnknown,
		ConfidenceScore: 0,
		DisplayLocation: "Unknown",
		Source:          SourceFallback,
	}
}

// BatchResult aggregates the outcome of a bulk classification run.
type BatchResult struct {
	Total           int                              `json:"total"`
	Resolved        int                              `json:"resolved"`
	Unknown         int                              `json:"unknown"`
	UnknownNPAs     []string                         `json:"unknown_npas"`
	ElapsedMS       int64                            `json:"elapsed_ms"`
	Classifications map[string]*PublicClassification `json:"classifications"`
}

// CategoryBucket groups the NPAs that landed in one category.
type CategoryBucket struct {
	Count int      `json:"count"`
	NPAs  []string `json:"npas"`
}

// BatchSummary is a pure aggregation over a classification map, used for
// diagnostics and reporting.
type BatchSummary struct {
	Total           int                            `json:"total"`
	ByCategory      map[NPACategory]CategoryBucket `json:"by_category"`
	ConfidenceBands map[string]int                 `json:"confidence_bands"`
	BySource        map[string]int                 `json:"by_source"`
}
