package policy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule type discriminators used in policy YAML documents.
const (
	ruleTypePassingTestCase = "passing_test_case"
	ruleTypeBlacklist       = "blacklist"
	ruleTypeRemotePolicy    = "remote_policy"
)

// policyDoc is the YAML shape of one policy document.
type policyDoc struct {
	ID               string    `yaml:"id"`
	ProductVersions  []string  `yaml:"product_versions"`
	DecisionContext  string    `yaml:"decision_context"`
	DecisionContexts []string  `yaml:"decision_contexts"`
	SubjectType      string    `yaml:"subject_type"`
	ExcludedPackages []string  `yaml:"excluded_packages"`
	Rules            []ruleDoc `yaml:"rules"`
}

// ruleDoc is the YAML shape of one rule, discriminated by "type".
type ruleDoc struct {
	Type            string   `yaml:"type"`
	TestCase        string   `yaml:"test_case"`
	GatingTag       string   `yaml:"gating_tag"`
	Scenario        string   `yaml:"scenario"`
	TestCases       []string `yaml:"test_cases"`
	Packages        []string `yaml:"packages"`
	SubjectTypes    []string `yaml:"subject_types"`
	ProductVersions []string `yaml:"product_versions"`
}

// LoadDir loads every policy document from the .yaml/.yml files in dir,
// in lexical file order. Document order within a file is preserved, so the
// loaded policy order is stable across runs.
func LoadDir(dir string) ([]*Policy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Cause: err}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	var policies []*Policy
	seen := make(map[string]string)
	for _, file := range files {
		loaded, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		for _, p := range loaded {
			if prior, dup := seen[p.ID]; dup {
				return nil, &ValidationError{
					Source:   file,
					PolicyID: p.ID,
					Errors:   []string{fmt.Sprintf("duplicate policy ID, first defined in %s", prior)},
				}
			}
			seen[p.ID] = file
		}
		policies = append(policies, loaded...)
	}
	return policies, nil
}

// LoadFile loads all policy documents from one YAML file.
func LoadFile(path string) ([]*Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	defer f.Close()
	return parseDocuments(f, path)
}

// parseDocuments decodes a multi-document YAML stream into validated
// policies.
func parseDocuments(r io.Reader, source string) ([]*Policy, error) {
	dec := yaml.NewDecoder(r)
	var policies []*Policy

	for {
		var doc policyDoc
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Path: source, Cause: err}
		}

		p, err := doc.build(source)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// build validates a document and converts it into a Policy.
func (d policyDoc) build(source string) (*Policy, error) {
	var problems []string

	if d.ID == "" {
		problems = append(problems, "policy must have an id")
	}
	if len(d.ProductVersions) == 0 {
		problems = append(problems, "policy must list product_versions")
	}
	contexts := d.DecisionContexts
	if d.DecisionContext != "" {
		contexts = append([]string{d.DecisionContext}, contexts...)
	}
	if len(contexts) == 0 {
		problems = append(problems, "policy must set decision_context or decision_contexts")
	}
	if d.SubjectType == "" {
		problems = append(problems, "policy must set subject_type")
	}
	problems = append(problems, validatePatterns("product_versions", d.ProductVersions)...)
	problems = append(problems, validatePatterns("excluded_packages", d.ExcludedPackages)...)

	rules := make([]Rule, 0, len(d.Rules))
	for i, rd := range d.Rules {
		rule, errs := rd.build(i)
		problems = append(problems, errs...)
		if rule != nil {
			rules = append(rules, rule)
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Source: source, PolicyID: d.ID, Errors: problems}
	}

	return &Policy{
		ID:               d.ID,
		ProductVersions:  d.ProductVersions,
		DecisionContexts: contexts,
		SubjectType:      d.SubjectType,
		ExcludedPackages: d.ExcludedPackages,
		Rules:            rules,
	}, nil
}

// build converts one rule document into its tagged variant.
func (d ruleDoc) build(index int) (Rule, []string) {
	scope := Scope{SubjectTypes: d.SubjectTypes, ProductVersions: d.ProductVersions}
	problems := validatePatterns(fmt.Sprintf("rules[%d].product_versions", index), d.ProductVersions)

	switch d.Type {
	case ruleTypePassingTestCase, "":
		if (d.TestCase == "") == (d.GatingTag == "") {
			problems = append(problems,
				fmt.Sprintf("rules[%d]: exactly one of test_case and gating_tag must be set", index))
			return nil, problems
		}
		return PassingTestCaseRule{
			TestCase:  d.TestCase,
			GatingTag: d.GatingTag,
			Scenario:  d.Scenario,
			Scope:     scope,
		}, problems

	case ruleTypeBlacklist:
		if len(d.TestCases) == 0 {
			problems = append(problems,
				fmt.Sprintf("rules[%d]: blacklist rule must list test_cases", index))
			return nil, problems
		}
		problems = append(problems, validatePatterns(fmt.Sprintf("rules[%d].test_cases", index), d.TestCases)...)
		problems = append(problems, validatePatterns(fmt.Sprintf("rules[%d].packages", index), d.Packages)...)
		return BlacklistRule{
			TestCases: d.TestCases,
			Packages:  d.Packages,
			Scope:     scope,
		}, problems

	case ruleTypeRemotePolicy:
		return RemotePolicyRule{Scope: scope}, problems

	default:
		problems = append(problems,
			fmt.Sprintf("rules[%d]: unknown rule type %q", index, d.Type))
		return nil, problems
	}
}

// validatePatterns rejects glob patterns that path.Match cannot parse, so a
// bad scope fails at load time instead of silently never matching.
func validatePatterns(field string, patterns []string) []string {
	var problems []string
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid pattern %q", field, p))
		}
	}
	return problems
}
