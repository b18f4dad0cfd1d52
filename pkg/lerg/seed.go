package lerg

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/clearrate/clearrate-engine/pkg/models"
)

//go:embed seed.yaml
var seedYAML []byte

// SeedConfidence is the confidence score assigned to seed-sourced records.
// Seed data is curated but not refreshed, so it never reaches the
// high-confidence band.
const SeedConfidence = 0.6

// seedRecord is the on-disk shape of one seed entry.
type seedRecord struct {
	NPA               string `yaml:"npa"`
	CountryCode       string `yaml:"country_code"`
	CountryName       string `yaml:"country_name"`
	StateProvinceCode string `yaml:"state_province_code"`
	StateProvinceName string `yaml:"state_province_name"`
	Region            string `yaml:"region"`
	Category          string `yaml:"category"`
}

// SeedSource serves the embedded offline NPA dataset. It backs the final
// resolver tier of the lookup chain and is never persisted to the store.
type SeedSource struct {
	records map[string]*models.ClassificationRecord
}

// NewSeedSource parses and validates the embedded seed dataset.
func NewSeedSource() (*SeedSource, error) {
	var file struct {
		Records []seedRecord `yaml:"records"`
	}

	if err := yaml.Unmarshal(seedYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed dataset: %w", err)
	}
	if len(file.Records) == 0 {
		return nil, fmt.Errorf("seed dataset is empty")
	}

	records := make(map[string]*models.ClassificationRecord, len(file.Records))
	for _, sr := range file.Records {
		record := &models.ClassificationRecord{
			NPA:               sr.NPA,
			CountryCode:       sr.CountryCode,
			CountryName:       sr.CountryName,
			StateProvinceCode: sr.StateProvinceCode,
			StateProvinceName: sr.StateProvinceName,
			Region:            sr.Region,
			Category:          models.NPACategory(sr.Category),
			Source:            models.SourceSeed,
			ConfidenceScore:   SeedConfidence,
			IsActive:          true,
		}
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("invalid seed record: %w", err)
		}
		if _, exists := records[record.NPA]; exists {
			return nil, fmt.Errorf("duplicate seed record for NPA %s", record.NPA)
		}
		records[record.NPA] = record
	}

	return &SeedSource{records: records}, nil
}

// Lookup returns the seed record for an NPA, or nil when the seed has none.
func (s *SeedSource) Lookup(npa string) *models.ClassificationRecord {
	return s.records[npa]
}

// Len returns the number of seed records.
func (s *SeedSource) Len() int {
	return len(s.records)
}
