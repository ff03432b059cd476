package policy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const taskotronPolicy = `
---
id: taskotron_release_critical_tasks
product_versions:
  - fedora-26
  - fedora-27
decision_context: bodhi_update_push_stable
subject_type: koji_build
rules:
  - type: passing_test_case
    test_case: dist.rpmdeplint
  - type: passing_test_case
    test_case: dist.abicheck
---
id: compose_sync
product_versions:
  - fedora-rawhide
decision_contexts:
  - rawhide_compose_sync_to_mirrors
subject_type: compose
rules:
  - type: passing_test_case
    test_case: compose.install_default_upload
    scenario: fedora.universal.x86_64
`

func writePolicyFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDir_MultiDocument(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "fedora.yaml", taskotronPolicy)

	policies, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("got %d policies, want 2", len(policies))
	}
	if policies[0].ID != "taskotron_release_critical_tasks" {
		t.Errorf("declaration order not preserved: %q first", policies[0].ID)
	}
	if len(policies[0].Rules) != 2 {
		t.Errorf("got %d rules", len(policies[0].Rules))
	}
	rule, ok := policies[1].Rules[0].(PassingTestCaseRule)
	if !ok {
		t.Fatalf("rule kind = %T", policies[1].Rules[0])
	}
	if rule.Scenario != "fedora.universal.x86_64" {
		t.Errorf("scenario = %q", rule.Scenario)
	}
}

func TestLoadDir_LexicalFileOrder(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "b.yaml", `
id: second
product_versions: ["fedora-*"]
decision_context: ctx
subject_type: koji_build
rules: []
`)
	writePolicyFile(t, dir, "a.yaml", `
id: first
product_versions: ["fedora-*"]
decision_context: ctx
subject_type: koji_build
rules: []
`)

	policies, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if policies[0].ID != "first" || policies[1].ID != "second" {
		t.Errorf("order = %q, %q", policies[0].ID, policies[1].ID)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "missing decision context",
			doc: `
id: broken
product_versions: ["fedora-26"]
subject_type: koji_build
rules: []
`,
			wantErr: "decision_context",
		},
		{
			name: "missing product versions",
			doc: `
id: broken
decision_context: ctx
subject_type: koji_build
rules: []
`,
			wantErr: "product_versions",
		},
		{
			name: "unknown rule type",
			doc: `
id: broken
product_versions: ["fedora-26"]
decision_context: ctx
subject_type: koji_build
rules:
  - type: frobnicate
`,
			wantErr: "unknown rule type",
		},
		{
			name: "test_case and gating_tag together",
			doc: `
id: broken
product_versions: ["fedora-26"]
decision_context: ctx
subject_type: koji_build
rules:
  - type: passing_test_case
    test_case: a
    gating_tag: b
`,
			wantErr: "exactly one of",
		},
		{
			name: "invalid product version pattern",
			doc: `
id: broken
product_versions: ["fedora-[26"]
decision_context: ctx
subject_type: koji_build
rules: []
`,
			wantErr: "invalid pattern",
		},
		{
			name: "blacklist without test cases",
			doc: `
id: broken
product_versions: ["fedora-26"]
decision_context: ctx
subject_type: koji_build
rules:
  - type: blacklist
`,
			wantErr: "must list test_cases",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writePolicyFile(t, dir, "broken.yaml", tt.doc)

			_, err := LoadDir(dir)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if !strings.Contains(verr.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", verr.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadDir_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	doc := `
id: dup
product_versions: ["fedora-26"]
decision_context: ctx
subject_type: koji_build
rules: []
`
	writePolicyFile(t, dir, "a.yaml", doc)
	writePolicyFile(t, dir, "b.yaml", doc)

	_, err := LoadDir(dir)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "duplicate") {
		t.Errorf("error = %q", verr.Error())
	}
}
