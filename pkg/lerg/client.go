// Package lerg provides a client for the canonical LERG dataset provider.
package lerg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/clearrate/clearrate-engine/pkg/apperrors"
	"github.com/clearrate/clearrate-engine/pkg/config"
	"github.com/clearrate/clearrate-engine/pkg/models"
)

// DefaultTimeout is the maximum time to wait for LERG provider responses.
const DefaultTimeout = 30 * time.Second

// Client provides access to the LERG provider API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new LERG provider client.
func NewClient(cfg *config.LERGConfig, logger *zap.Logger) *Client {
	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("lerg"),
	}
}

// bulkEnvelope is the bulk endpoint response shape. Records is a pointer so
// a payload missing the records array (malformed) is distinguishable from a
// payload with an explicitly empty one (a legitimately empty dataset).
type bulkEnvelope struct {
	Records *[]*models.ClassificationRecord `json:"records"`
	Total   int                             `json:"total"`
}

// recordEnvelope is the single-record endpoint response shape.
type recordEnvelope struct {
	Record *models.ClassificationRecord `json:"record"`
}

// FetchAll retrieves the complete authoritative NPA dataset.
// The response is treated as the full set; no pagination is assumed.
// A transport failure, non-200 status, undecodable body, missing records
// array, or any invalid record fails the whole fetch so a bad payload can
// never replace a valid local replica.
func (c *Client) FetchAll(ctx context.Context) ([]*models.ClassificationRecord, error) {
	endpoint, err := buildURL(c.baseURL, "api", "v1", "lerg", "npa-records")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var envelope bulkEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedPayload, err)
	}
	if envelope.Records == nil {
		return nil, fmt.Errorf("%w: response has no records array", apperrors.ErrMalformedPayload)
	}

	records := *envelope.Records
	for _, record := range records {
		if record == nil {
			return nil, fmt.Errorf("%w: null record in payload", apperrors.ErrMalformedPayload)
		}
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedPayload, err)
		}
	}

	c.logger.Debug("Fetched bulk LERG dataset",
		zap.Int("records", len(records)),
		zap.Int("reported_total", envelope.Total))

	return records, nil
}

// FetchNPA retrieves a single record by area code. Returns (nil, nil) when
// the provider has no record for the NPA.
func (c *Client) FetchNPA(ctx context.Context, npa string) (*models.ClassificationRecord, error) {
	if !models.IsValidNPA(npa) {
		return nil, apperrors.ErrInvalidNPA
	}

	endpoint, err := buildURL(c.baseURL, "api", "v1", "lerg", "npa-records", npa)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call LERG provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("LERG provider returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("npa", npa))
		return nil, fmt.Errorf("LERG provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope recordEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedPayload, err)
	}
	if envelope.Record == nil {
		return nil, nil
	}
	if err := envelope.Record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedPayload, err)
	}

	return envelope.Record, nil
}

// get executes a GET request and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call LERG provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("LERG provider returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("LERG provider returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}
