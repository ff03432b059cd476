package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/greenlight/pkg/evidence"
	"mercator-hq/greenlight/pkg/policy"
	"mercator-hq/greenlight/pkg/subject"
)

// StoreRemoteRules is the store label used in errors and metrics for remote
// rule fetches.
const StoreRemoteRules = "remote_rules"

// maxDocumentSize bounds how much of a gating file is read.
const maxDocumentSize = 1 << 20

// Config configures remote rule fetching.
type Config struct {
	// Enabled controls whether RemotePolicyRule is honored at all. When
	// disabled, such rules evaluate to an error verdict.
	Enabled bool `yaml:"enabled"`

	// URLTemplate locates the gating file for a subject. Placeholders:
	// ${pkg_name}, ${subject_identifier}, ${subject_type}.
	// Example: "https://src.example.com/rpms/${pkg_name}/raw/main/f/gating.yaml"
	URLTemplate string `yaml:"url_template"`

	// Timeout is the per-request HTTP timeout. Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// Fetcher retrieves the remote gating rules published for a subject.
type Fetcher interface {
	// Fetch returns the subject's remote rule document, or (nil, nil) when
	// the subject's repository publishes none.
	Fetch(ctx context.Context, sub subject.Subject) (*Document, error)
}

// Document is one fetched and parsed gating file.
type Document struct {
	// URL is where the document was fetched from.
	URL string

	// Policies are the remote policies the file declares, in declaration
	// order.
	Policies []*policy.Policy
}

// HTTPFetcher fetches gating files over HTTP with the shared evidence retry
// discipline. A HEAD probe distinguishes "no file published" from transport
// failure before the body is fetched.
type HTTPFetcher struct {
	template string
	client   *http.Client
	retry    evidence.RetryConfig
	logger   *slog.Logger
}

// NewHTTPFetcher creates a remote rule fetcher.
func NewHTTPFetcher(cfg Config, retry evidence.RetryConfig, logger *slog.Logger) (*HTTPFetcher, error) {
	if cfg.URLTemplate == "" {
		return nil, fmt.Errorf("remote rule URL template cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		template: cfg.URLTemplate,
		client:   &http.Client{Timeout: timeout},
		retry:    retry,
		logger:   logger.With("component", "policy.remote"),
	}, nil
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, sub subject.Subject) (*Document, error) {
	url := f.documentURL(sub)

	// Probe first: a repository that publishes no gating file is common and
	// not a failure.
	head, err := evidence.DoWithRetry(ctx, f.client, f.retry, StoreRemoteRules, f.logger, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	})
	if err != nil {
		if fe, ok := evidence.AsFetchError(err); ok && fe.StatusCode == http.StatusNotFound {
			f.logger.Debug("no remote rule file published", "url", url)
			return nil, nil
		}
		return nil, err
	}
	head.Body.Close()

	resp, err := evidence.DoWithRetry(ctx, f.client, f.retry, StoreRemoteRules, f.logger, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, &evidence.FetchError{
			Store: StoreRemoteRules,
			Kind:  evidence.FailureRetryable,
			Err:   fmt.Errorf("reading remote rule file: %w", err),
		}
	}

	policies, err := ParseDocument(data, url)
	if err != nil {
		return nil, err
	}
	return &Document{URL: url, Policies: policies}, nil
}

// documentURL expands the URL template for a subject.
func (f *HTTPFetcher) documentURL(sub subject.Subject) string {
	return strings.NewReplacer(
		"${pkg_name}", policy.PackageName(sub.Identifier()),
		"${subject_identifier}", sub.Identifier(),
		"${subject_type}", sub.Type(),
	).Replace(f.template)
}
