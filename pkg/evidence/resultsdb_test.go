package evidence

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/greenlight/pkg/subject"
)

func fastRetry() RetryConfig {
	return RetryConfig{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func testRefs() []subject.Reference {
	return []subject.Reference{{Type: "koji_build", Identifier: "glibc-2.26-27.fc27"}}
}

func TestFetchResults_NormalizesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/results/latest" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("item"); got != "glibc-2.26-27.fc27" {
			t.Errorf("item = %q", got)
		}
		fmt.Fprint(w, `{"data": [
			{"id": 123, "outcome": "PASSED", "testcase": {"name": "dist.rpmdeplint"},
			 "submit_time": "2026-08-20T10:00:00.000000",
			 "data": {"item": ["glibc-2.26-27.fc27"], "type": ["koji_build"],
			          "scenario": ["fedora.universal.x86_64"], "arch": ["x86_64"]}}
		]}`)
	}))
	defer srv.Close()

	client, err := NewResultsDBClient(ResultsDBConfig{URL: srv.URL}, fastRetry(), nil)
	if err != nil {
		t.Fatal(err)
	}

	results, truncated, err := client.FetchResults(context.Background(), testRefs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if truncated {
		t.Error("single page must not be truncated")
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.ID != "123" || r.TestCase != "dist.rpmdeplint" || r.Outcome != OutcomePassed {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Scenario != "fedora.universal.x86_64" || r.Architecture != "x86_64" {
		t.Errorf("dimensions not normalized: %+v", r)
	}
	if r.SubmitTime.IsZero() {
		t.Error("submit time not parsed")
	}
}

func TestFetchResults_FollowsPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"data": [
				{"id": 2, "outcome": "FAILED", "testcase": {"name": "b"},
				 "submit_time": "2026-08-20T10:00:00Z", "data": {}}], "next": ""}`)
			return
		}
		fmt.Fprintf(w, `{"data": [
			{"id": 1, "outcome": "PASSED", "testcase": {"name": "a"},
			 "submit_time": "2026-08-20T10:00:00Z", "data": {}}],
			"next": %q}`, srv.URL+"/results/latest?page=2")
	}))
	defer srv.Close()

	client, err := NewResultsDBClient(ResultsDBConfig{URL: srv.URL}, fastRetry(), nil)
	if err != nil {
		t.Fatal(err)
	}

	results, truncated, err := client.FetchResults(context.Background(), testRefs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if truncated {
		t.Error("fully paged response must not be truncated")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestFetchResults_ReportsTruncation(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every page claims another one follows.
		fmt.Fprintf(w, `{"data": [
			{"id": 1, "outcome": "PASSED", "testcase": {"name": "a"},
			 "submit_time": "2026-08-20T10:00:00Z", "data": {}}],
			"next": %q}`, srv.URL+"/results/latest?more=1")
	}))
	defer srv.Close()

	client, err := NewResultsDBClient(ResultsDBConfig{URL: srv.URL, MaxPages: 2}, fastRetry(), nil)
	if err != nil {
		t.Fatal(err)
	}

	results, truncated, err := client.FetchResults(context.Background(), testRefs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !truncated {
		t.Error("page-limited response must be reported as truncated")
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want the 2 fetched pages", len(results))
	}
}

func TestFetchResults_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer srv.Close()

	client, err := NewResultsDBClient(ResultsDBConfig{URL: srv.URL}, fastRetry(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := client.FetchResults(context.Background(), testRefs()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("got %d calls, want 3", calls.Load())
	}
}

func TestFetchResults_FailureClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind FailureKind
	}{
		{
			name:     "persistent 5xx exhausts retries",
			status:   http.StatusServiceUnavailable,
			body:     "unavailable",
			wantKind: FailureRetryable,
		},
		{
			name:     "4xx is not retried",
			status:   http.StatusNotFound,
			body:     "nope",
			wantKind: FailureNonRetryable,
		},
		{
			name:     "malformed body is not retried",
			status:   http.StatusOK,
			body:     "{not json",
			wantKind: FailureNonRetryable,
		},
		{
			name:     "unknown outcome is rejected",
			status:   http.StatusOK,
			body:     `{"data": [{"id": 1, "outcome": "MAYBE", "testcase": {"name": "a"}, "submit_time": "2026-08-20T10:00:00Z"}]}`,
			wantKind: FailureNonRetryable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			client, err := NewResultsDBClient(ResultsDBConfig{URL: srv.URL}, fastRetry(), nil)
			if err != nil {
				t.Fatal(err)
			}

			_, _, err = client.FetchResults(context.Background(), testRefs())
			fe, ok := AsFetchError(err)
			if !ok {
				t.Fatalf("expected *FetchError, got %v", err)
			}
			if fe.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", fe.Kind, tt.wantKind)
			}
			if fe.Store != StoreResults {
				t.Errorf("store = %s, want %s", fe.Store, StoreResults)
			}
			if tt.wantKind == FailureNonRetryable && tt.status >= 400 && calls.Load() != 1 {
				t.Errorf("non-retryable status retried %d times", calls.Load())
			}
		})
	}
}
