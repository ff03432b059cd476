package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/greenlight/pkg/policy"
)

var lintFlags struct {
	dir    string
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint [file ...]",
	Short: "Validate policy files without starting the service",
	Long: `Validate policy YAML files. Files can be given as arguments, or a whole
directory can be checked with --dir. The command exits with status 1 when any
file fails validation.

Example:
  greenlight lint --dir policies/`,
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "validate every policy file in a directory")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format (text or json)")
}

// lintResult is one file's outcome, used for JSON output.
type lintResult struct {
	Path     string `json:"path"`
	Valid    bool   `json:"valid"`
	Policies int    `json:"policies"`
	Error    string `json:"error,omitempty"`
}

func runLint(cmd *cobra.Command, args []string) error {
	if lintFlags.format != "text" && lintFlags.format != "json" {
		return fmt.Errorf("unknown output format %q", lintFlags.format)
	}
	if lintFlags.dir == "" && len(args) == 0 {
		return errors.New("nothing to lint: give policy files as arguments or use --dir")
	}

	var results []lintResult
	if lintFlags.dir != "" {
		policies, err := policy.LoadDir(lintFlags.dir)
		res := lintResult{Path: lintFlags.dir, Valid: err == nil, Policies: len(policies)}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	for _, file := range args {
		policies, err := policy.LoadFile(file)
		res := lintResult{Path: file, Valid: err == nil, Policies: len(policies)}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}

	failed := 0
	for _, res := range results {
		if !res.Valid {
			failed++
		}
	}

	switch lintFlags.format {
	case "json":
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		for _, res := range results {
			if res.Valid {
				fmt.Printf("%s: ok (%d %s)\n", res.Path, res.Policies, plural(res.Policies))
			} else {
				fmt.Fprintf(os.Stderr, "%s: %s\n", res.Path, res.Error)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return "policy"
	}
	return "policies"
}
