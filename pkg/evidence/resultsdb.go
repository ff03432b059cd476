package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"mercator-hq/greenlight/pkg/subject"
)

// ResultsDBConfig contains configuration for the results store client.
type ResultsDBConfig struct {
	// URL is the base URL of the results store API
	// (e.g. "https://resultsdb.example.com/api/v2.0").
	URL string `yaml:"url"`

	// Timeout is the per-request HTTP timeout. Default: 15s
	Timeout time.Duration `yaml:"timeout"`

	// MaxPages bounds pagination. Responses beyond this limit are reported
	// as truncated rather than followed indefinitely. Default: 5
	MaxPages int `yaml:"max_pages"`
}

// ResultsDBClient queries a resultsdb-compatible API for test results.
type ResultsDBClient struct {
	baseURL string
	client  *http.Client
	retry   RetryConfig
	maxPage int
	logger  *slog.Logger
}

// NewResultsDBClient creates a results store client.
func NewResultsDBClient(cfg ResultsDBConfig, retry RetryConfig, logger *slog.Logger) (*ResultsDBClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("results store URL cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}

	return &ResultsDBClient{
		baseURL: cfg.URL,
		client:  &http.Client{Timeout: timeout},
		retry:   retry,
		maxPage: maxPages,
		logger:  logger.With("component", "evidence.resultsdb"),
	}, nil
}

// resultsPage is the wire shape of one results store response page.
type resultsPage struct {
	Data []resultRecord `json:"data"`
	Next string         `json:"next"`
}

// resultRecord is the wire shape of one result.
type resultRecord struct {
	ID       json.Number `json:"id"`
	Outcome  string      `json:"outcome"`
	TestCase struct {
		Name string `json:"name"`
	} `json:"testcase"`
	SubmitTime string `json:"submit_time"`
	Data       struct {
		Item     []string `json:"item"`
		Type     []string `json:"type"`
		Scenario []string `json:"scenario"`
		Arch     []string `json:"arch"`
	} `json:"data"`
}

// FetchResults returns the latest results reported against each reference
// form of the subject. One retried call sequence is issued per reference
// form; pagination is followed up to the configured page limit, beyond
// which the response is reported as truncated.
func (c *ResultsDBClient) FetchResults(ctx context.Context, refs []subject.Reference) ([]TestResult, bool, error) {
	if len(refs) == 0 {
		return nil, false, &FetchError{
			Store: StoreResults,
			Kind:  FailureNonRetryable,
			Err:   fmt.Errorf("no subject references to query"),
		}
	}

	var out []TestResult
	truncated := false

	for _, ref := range refs {
		params := url.Values{}
		params.Set("item", ref.Identifier)
		params.Set("type", ref.Type)
		next := c.baseURL + "/results/latest?" + params.Encode()

		for page := 0; next != ""; page++ {
			if page >= c.maxPage {
				c.logger.Warn("results response truncated at page limit",
					"reference", ref.String(),
					"max_pages", c.maxPage,
				)
				truncated = true
				break
			}

			pageURL := next
			resp, err := DoWithRetry(ctx, c.client, c.retry, StoreResults, c.logger, func(ctx context.Context) (*http.Request, error) {
				return http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
			})
			if err != nil {
				return nil, false, err
			}

			var body resultsPage
			err = json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			if err != nil {
				return nil, false, &FetchError{
					Store: StoreResults,
					Kind:  FailureNonRetryable,
					Err:   fmt.Errorf("malformed results response: %w", err),
				}
			}

			for _, rec := range body.Data {
				result, err := rec.normalize(ref)
				if err != nil {
					return nil, false, &FetchError{Store: StoreResults, Kind: FailureNonRetryable, Err: err}
				}
				out = append(out, result)
			}
			next = body.Next
		}
	}

	return out, truncated, nil
}

// normalize converts a wire record into a TestResult.
func (r resultRecord) normalize(ref subject.Reference) (TestResult, error) {
	outcome, err := ParseOutcome(r.Outcome)
	if err != nil {
		return TestResult{}, err
	}
	if r.TestCase.Name == "" {
		return TestResult{}, fmt.Errorf("result %s has no test case name", r.ID.String())
	}

	submitTime, err := parseStoreTime(r.SubmitTime)
	if err != nil {
		return TestResult{}, fmt.Errorf("result %s: %w", r.ID.String(), err)
	}

	result := TestResult{
		ID:         r.ID.String(),
		TestCase:   r.TestCase.Name,
		Outcome:    outcome,
		SubmitTime: submitTime,
		Ref:        ref,
	}
	if len(r.Data.Scenario) > 0 {
		result.Scenario = r.Data.Scenario[0]
	}
	if len(r.Data.Arch) > 0 {
		result.Architecture = r.Data.Arch[0]
	}
	return result, nil
}

// parseStoreTime accepts the timestamp formats the stores emit: RFC 3339
// with or without a zone suffix, with optional fractional seconds.
func parseStoreTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
