package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/greenlight/pkg/subject"
)

// WaiverDBConfig contains configuration for the waiver store client.
type WaiverDBConfig struct {
	// URL is the base URL of the waiver store API
	// (e.g. "https://waiverdb.example.com/api/v1.0").
	URL string `yaml:"url"`

	// Timeout is the per-request HTTP timeout. Default: 15s
	Timeout time.Duration `yaml:"timeout"`
}

// WaiverDBClient queries a waiverdb-compatible API for waivers.
type WaiverDBClient struct {
	baseURL string
	client  *http.Client
	retry   RetryConfig
	logger  *slog.Logger
}

// NewWaiverDBClient creates a waiver store client.
func NewWaiverDBClient(cfg WaiverDBConfig, retry RetryConfig, logger *slog.Logger) (*WaiverDBClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("waiver store URL cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &WaiverDBClient{
		baseURL: cfg.URL,
		client:  &http.Client{Timeout: timeout},
		retry:   retry,
		logger:  logger.With("component", "evidence.waiverdb"),
	}, nil
}

// waiverFilter is one subject filter in the filtered-query request body.
type waiverFilter struct {
	SubjectType       string `json:"subject_type"`
	SubjectIdentifier string `json:"subject_identifier"`
}

// waiverPage is the wire shape of a waiver store response.
type waiverPage struct {
	Data []waiverRecord `json:"data"`
}

// waiverRecord is the wire shape of one waiver.
type waiverRecord struct {
	ID                json.Number `json:"id"`
	TestCase          string      `json:"testcase"`
	SubjectType       string      `json:"subject_type"`
	SubjectIdentifier string      `json:"subject_identifier"`
	Waived            bool        `json:"waived"`
	Comment           string      `json:"comment"`
	Username          string      `json:"username"`
	Timestamp         string      `json:"timestamp"`
}

// FetchWaivers returns all waivers issued against any reference form of the
// subject, revoked ones included. One retried POST covers every reference
// form via the store's filtered query.
func (c *WaiverDBClient) FetchWaivers(ctx context.Context, refs []subject.Reference) ([]Waiver, error) {
	if len(refs) == 0 {
		return nil, &FetchError{
			Store: StoreWaivers,
			Kind:  FailureNonRetryable,
			Err:   fmt.Errorf("no subject references to query"),
		}
	}

	filters := make([]waiverFilter, len(refs))
	for i, ref := range refs {
		filters[i] = waiverFilter{SubjectType: ref.Type, SubjectIdentifier: ref.Identifier}
	}
	payload, err := json.Marshal(map[string]any{"filters": filters})
	if err != nil {
		return nil, &FetchError{Store: StoreWaivers, Kind: FailureNonRetryable, Err: err}
	}

	endpoint := c.baseURL + "/waivers/+filtered"
	resp, err := DoWithRetry(ctx, c.client, c.retry, StoreWaivers, c.logger, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body waiverPage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &FetchError{
			Store: StoreWaivers,
			Kind:  FailureNonRetryable,
			Err:   fmt.Errorf("malformed waivers response: %w", err),
		}
	}

	waivers := make([]Waiver, 0, len(body.Data))
	for _, rec := range body.Data {
		w, err := rec.normalize()
		if err != nil {
			return nil, &FetchError{Store: StoreWaivers, Kind: FailureNonRetryable, Err: err}
		}
		waivers = append(waivers, w)
	}
	return waivers, nil
}

// normalize converts a wire record into a Waiver.
func (r waiverRecord) normalize() (Waiver, error) {
	if r.TestCase == "" {
		return Waiver{}, fmt.Errorf("waiver %s has no test case name", r.ID.String())
	}
	ts, err := parseStoreTime(r.Timestamp)
	if err != nil {
		return Waiver{}, fmt.Errorf("waiver %s: %w", r.ID.String(), err)
	}
	return Waiver{
		ID:        r.ID.String(),
		TestCase:  r.TestCase,
		Ref:       subject.Reference{Type: r.SubjectType, Identifier: r.SubjectIdentifier},
		Waived:    r.Waived,
		Comment:   r.Comment,
		Username:  r.Username,
		Timestamp: ts,
	}, nil
}
