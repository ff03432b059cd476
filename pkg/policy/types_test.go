package policy

import (
	"testing"

	"mercator-hq/greenlight/pkg/subject"
)

func mustSubject(t *testing.T, itemType, identifier string) subject.Subject {
	t.Helper()
	s, err := subject.New(itemType, identifier)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPolicyMatches(t *testing.T) {
	p := &Policy{
		ID:               "taskotron",
		ProductVersions:  []string{"fedora-*"},
		DecisionContexts: []string{"bodhi_update_push_stable"},
		SubjectType:      "koji_build",
		ExcludedPackages: []string{"python-requests"},
	}

	tests := []struct {
		name            string
		subjectType     string
		identifier      string
		productVersion  string
		decisionContext string
		want            bool
	}{
		{
			name:            "full match",
			subjectType:     "koji_build",
			identifier:      "glibc-2.26-27.fc27",
			productVersion:  "fedora-27",
			decisionContext: "bodhi_update_push_stable",
			want:            true,
		},
		{
			name:            "product version pattern match",
			subjectType:     "koji_build",
			identifier:      "glibc-2.26-27.fc27",
			productVersion:  "fedora-rawhide",
			decisionContext: "bodhi_update_push_stable",
			want:            true,
		},
		{
			name:            "brew-build alias matches koji_build policy",
			subjectType:     "brew-build",
			identifier:      "glibc-2.26-27.fc27",
			productVersion:  "fedora-27",
			decisionContext: "bodhi_update_push_stable",
			want:            true,
		},
		{
			name:            "wrong decision context",
			subjectType:     "koji_build",
			identifier:      "glibc-2.26-27.fc27",
			productVersion:  "fedora-27",
			decisionContext: "bodhi_update_push_testing",
			want:            false,
		},
		{
			name:            "wrong product version",
			subjectType:     "koji_build",
			identifier:      "glibc-2.26-27.fc27",
			productVersion:  "rhel-8",
			decisionContext: "bodhi_update_push_stable",
			want:            false,
		},
		{
			name:            "wrong subject type",
			subjectType:     "compose",
			identifier:      "Fedora-Rawhide-20260820.n.0",
			productVersion:  "fedora-27",
			decisionContext: "bodhi_update_push_stable",
			want:            false,
		},
		{
			name:            "excluded package",
			subjectType:     "koji_build",
			identifier:      "python-requests-2.18-1.fc27",
			productVersion:  "fedora-27",
			decisionContext: "bodhi_update_push_stable",
			want:            false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := mustSubject(t, tt.subjectType, tt.identifier)
			if got := p.Matches(sub, tt.productVersion, tt.decisionContext); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScopeMatches(t *testing.T) {
	sub := mustSubject(t, "koji_build", "glibc-2.26-27.fc27")

	empty := Scope{}
	if !empty.Matches(sub, "anything") {
		t.Error("empty scope must match everything")
	}

	scoped := Scope{
		SubjectTypes:    []string{"brew-build"},
		ProductVersions: []string{"rhel-*"},
	}
	if scoped.Matches(sub, "fedora-27") {
		t.Error("product version outside scope must not match")
	}
	if !scoped.Matches(sub, "rhel-8") {
		t.Error("alias reference should satisfy subject type scope")
	}
}

func TestPackageName(t *testing.T) {
	tests := []struct {
		identifier string
		want       string
	}{
		{"glibc-2.26-27.fc27", "glibc"},
		{"python-requests-2.18-1.fc27", "python-requests"},
		{"Fedora-Rawhide-20260820.n.0", "Fedora"},
		{"nodashes", "nodashes"},
	}
	for _, tt := range tests {
		if got := PackageName(tt.identifier); got != tt.want {
			t.Errorf("PackageName(%q) = %q, want %q", tt.identifier, got, tt.want)
		}
	}
}

func TestBlacklistRule(t *testing.T) {
	rule := BlacklistRule{
		TestCases: []string{"dist.abicheck", "compose.*"},
		Packages:  []string{"firefox*"},
	}

	firefox := mustSubject(t, "koji_build", "firefox-62.0-1.fc28")
	glibc := mustSubject(t, "koji_build", "glibc-2.26-27.fc27")

	if !rule.AppliesTo(firefox) {
		t.Error("firefox build should be covered")
	}
	if rule.AppliesTo(glibc) {
		t.Error("glibc build should not be covered")
	}
	if !rule.Suppresses("dist.abicheck") || !rule.Suppresses("compose.cloud") {
		t.Error("listed test cases should be suppressed")
	}
	if rule.Suppresses("dist.rpmdeplint") {
		t.Error("unlisted test case suppressed")
	}
}
