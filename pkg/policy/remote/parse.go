package remote

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"mercator-hq/greenlight/pkg/policy"
)

// remoteDoc is the YAML shape of one remote policy document. It is a subset
// of the main policy format: no id, no exclusions, and no nested
// remote_policy rules (remote rules cannot defer further).
type remoteDoc struct {
	ProductVersions  []string        `yaml:"product_versions"`
	DecisionContext  string          `yaml:"decision_context"`
	DecisionContexts []string        `yaml:"decision_contexts"`
	SubjectType      string          `yaml:"subject_type"`
	Rules            []remoteRuleDoc `yaml:"rules"`
}

// remoteRuleDoc is the YAML shape of one remote rule.
type remoteRuleDoc struct {
	Type      string   `yaml:"type"`
	TestCase  string   `yaml:"test_case"`
	GatingTag string   `yaml:"gating_tag"`
	Scenario  string   `yaml:"scenario"`
	TestCases []string `yaml:"test_cases"`
	Packages  []string `yaml:"packages"`
}

// ParseDocument parses a gating file into remote policies. Scoping fields
// are optional: a document without product_versions or decision contexts
// applies wherever the deferring rule applies.
func ParseDocument(data []byte, url string) ([]*policy.Policy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var policies []*policy.Policy

	for i := 0; ; i++ {
		var doc remoteDoc
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &MalformedDocumentError{URL: url, Cause: err}
		}

		p, err := doc.build(url, i)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// build validates one remote document and converts it into a Policy.
func (d remoteDoc) build(url string, index int) (*policy.Policy, error) {
	contexts := d.DecisionContexts
	if d.DecisionContext != "" {
		contexts = append([]string{d.DecisionContext}, contexts...)
	}

	rules := make([]policy.Rule, 0, len(d.Rules))
	for i, rd := range d.Rules {
		rule, err := rd.build(i)
		if err != nil {
			return nil, &MalformedDocumentError{URL: url, Cause: err}
		}
		rules = append(rules, rule)
	}

	return &policy.Policy{
		ID:               fmt.Sprintf("remote:%s#%d", url, index),
		ProductVersions:  d.ProductVersions,
		DecisionContexts: contexts,
		SubjectType:      d.SubjectType,
		Rules:            rules,
	}, nil
}

// build converts one remote rule document into its variant. Nested
// remote_policy rules are rejected to keep remote evaluation non-recursive.
func (d remoteRuleDoc) build(index int) (policy.Rule, error) {
	switch d.Type {
	case "passing_test_case", "":
		if (d.TestCase == "") == (d.GatingTag == "") {
			return nil, fmt.Errorf("rules[%d]: exactly one of test_case and gating_tag must be set", index)
		}
		return policy.PassingTestCaseRule{
			TestCase:  d.TestCase,
			GatingTag: d.GatingTag,
			Scenario:  d.Scenario,
		}, nil

	case "blacklist":
		if len(d.TestCases) == 0 {
			return nil, fmt.Errorf("rules[%d]: blacklist rule must list test_cases", index)
		}
		return policy.BlacklistRule{
			TestCases: d.TestCases,
			Packages:  d.Packages,
		}, nil

	case "remote_policy":
		return nil, fmt.Errorf("rules[%d]: remote rule files cannot contain remote_policy rules", index)

	default:
		return nil, fmt.Errorf("rules[%d]: unknown rule type %q", index, d.Type)
	}
}
