package engine

import (
	"fmt"
	"strings"
)

// summarize produces the one-line decision explanation from the full
// verdict list.
func summarize(verdicts []Verdict) string {
	total := len(verdicts)
	if total == 0 {
		return "no tests are required"
	}

	var failed, missing, errored int
	for _, v := range verdicts {
		switch v.Kind {
		case VerdictFailed:
			failed++
		case VerdictMissing:
			missing++
		case VerdictError:
			errored++
		}
	}
	if failed+missing+errored == 0 {
		return "All required tests passed"
	}

	var parts []string
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d of %d required tests failed", failed, total))
	}
	if missing > 0 {
		if len(parts) > 0 {
			parts = append(parts, fmt.Sprintf("%d %s missing", missing, plural(missing, "result", "results")))
		} else {
			parts = append(parts, fmt.Sprintf("%d of %d required test results missing", missing, total))
		}
	}
	if errored > 0 {
		if len(parts) > 0 {
			parts = append(parts, fmt.Sprintf("%d %s errored", errored, plural(errored, "test", "tests")))
		} else {
			parts = append(parts, fmt.Sprintf("%d of %d required tests errored", errored, total))
		}
	}
	return strings.Join(parts, ", ")
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
