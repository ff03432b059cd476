package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/greenlight/pkg/evidence"
	"mercator-hq/greenlight/pkg/policy"
	"mercator-hq/greenlight/pkg/subject"
)

func fastRetry() evidence.RetryConfig {
	return evidence.RetryConfig{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func testSubject(t *testing.T) subject.Subject {
	t.Helper()
	sub, err := subject.New("koji_build", "glibc-2.26-27.fc27")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sub
}

func newFetcher(t *testing.T, url string) *HTTPFetcher {
	t.Helper()
	f, err := NewHTTPFetcher(Config{Enabled: true, URLTemplate: url}, fastRetry(), nil)
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	return f
}

func TestFetchParsesDocument(t *testing.T) {
	const doc = `---
product_versions:
  - fedora-*
decision_context: bodhi_update_push_stable
rules:
  - type: passing_test_case
    test_case: dist.rpmdeplint
  - type: passing_test_case
    test_case: dist.upgradepath
    scenario: x86_64
`
	var sawHead bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			sawHead = true
			return
		}
		w.Write([]byte(doc))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL+"/rpms/${pkg_name}/gating.yaml")
	got, err := f.Fetch(context.Background(), testSubject(t))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !sawHead {
		t.Error("expected a HEAD probe before the GET")
	}
	if got == nil || len(got.Policies) != 1 {
		t.Fatalf("got %+v, want one policy", got)
	}
	p := got.Policies[0]
	if len(p.Rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(p.Rules))
	}
	first, ok := p.Rules[0].(policy.PassingTestCaseRule)
	if !ok || first.TestCase != "dist.rpmdeplint" {
		t.Errorf("rules[0] = %#v, want passing dist.rpmdeplint", p.Rules[0])
	}
	second, ok := p.Rules[1].(policy.PassingTestCaseRule)
	if !ok || second.Scenario != "x86_64" {
		t.Errorf("rules[1] = %#v, want scenario x86_64", p.Rules[1])
	}
}

func TestFetchNotFoundMeansNoRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL+"/gating.yaml")
	got, err := f.Fetch(context.Background(), testSubject(t))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil document for 404", got)
	}
}

func TestFetchServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL+"/gating.yaml")
	_, err := f.Fetch(context.Background(), testSubject(t))
	fe, ok := evidence.AsFetchError(err)
	if !ok {
		t.Fatalf("got %v, want FetchError", err)
	}
	if fe.Store != StoreRemoteRules || !fe.Retryable() {
		t.Errorf("got store=%q retryable=%v, want remote_rules retryable", fe.Store, fe.Retryable())
	}
}

func TestFetchMalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("rules: [\n"))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL+"/gating.yaml")
	_, err := f.Fetch(context.Background(), testSubject(t))
	var malformed *MalformedDocumentError
	if !errors.As(err, &malformed) {
		t.Fatalf("got %v, want MalformedDocumentError", err)
	}
}

func TestDocumentURLExpansion(t *testing.T) {
	f := newFetcher(t, "https://src.example.com/${subject_type}/${pkg_name}/raw/${subject_identifier}")
	got := f.documentURL(testSubject(t))
	want := "https://src.example.com/koji_build/glibc/raw/glibc-2.26-27.fc27"
	if got != want {
		t.Errorf("documentURL() = %q, want %q", got, want)
	}
}
