// Package commands implements probe's cobra subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/probe-search/probe/pkg/search"
)

// exit codes (spec §6.2).
const (
	exitOK           = 0
	exitConfig       = 1
	exitInternalOrIO = 2
)

// NewSearchCommand builds the root `probe <pattern>` command (spec §6.2).
// Returning results is the default action, so the search flags are attached
// directly to the root command rather than to a "search" subcommand.
func NewSearchCommand() *cobra.Command {
	cfg := search.Config{}

	cmd := &cobra.Command{
		Use:   "probe <pattern> [paths...]",
		Short: "Search source code for a pattern and return the smallest enclosing syntactic block around each match",
		Args:  cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			cfg.Pattern = args[0]
			if len(args) > 1 {
				cfg.Paths = args[1:]
			}

			return runSearch(cobraCmd.Context(), cobraCmd.OutOrStdout(), cfg)
		},
	}

	bindSearchFlags(cmd, &cfg)

	return cmd
}

func bindSearchFlags(cmd *cobra.Command, cfg *search.Config) {
	flags := cmd.Flags()

	var reranker string

	flags.StringVar(&reranker, "reranker", string(search.RerankerHybrid),
		"scoring strategy: hybrid, hybrid2, bm25, or tfidf")
	flags.StringSliceVar(&cfg.Ignore, "ignore", nil, "glob patterns added to the default ignore set")
	flags.BoolVar(&cfg.FilesOnly, "files-only", false, "return one whole-file block (lines 1..N) per matching file, no AST expansion")
	flags.BoolVar(&cfg.IncludeFilenames, "include-filenames", false,
		"let blocks whose path tokens match a query term pass the term gate (files without a content hit are not returned)")
	flags.BoolVar(&cfg.FrequencySearch, "frequency-search", true, "enable stemming and stopword removal")
	flags.BoolVar(&cfg.Exact, "exact", false, "lowercased whole-word term matching without stemming or stopword removal; overrides --frequency-search")
	flags.IntVar(&cfg.MaxResults, "max-results", 0, "maximum number of results (0 = unbounded)")
	flags.IntVar(&cfg.MaxBytes, "max-bytes", 0, "maximum total bytes of returned block text (0 = unbounded)")
	flags.IntVar(&cfg.MaxTokens, "max-tokens", 0, "maximum total estimated tokens of returned block text (0 = unbounded)")
	flags.BoolVar(&cfg.AllowTests, "allow-tests", false, "include blocks from test files")
	flags.BoolVar(&cfg.AnyTerm, "any-term", false, "require any query term instead of all")
	flags.BoolVar(&cfg.MergeBlocks, "merge-blocks", false, "merge adjacent blocks in the same file")
	flags.IntVar(&cfg.MergeThreshold, "merge-threshold", 5, "max line gap honored by --merge-blocks")
	flags.StringVar(&cfg.ForceLanguage, "language", "", "force a language adapter (by name) for extensionless files")

	cmd.PreRunE = func(_ *cobra.Command, _ []string) error {
		cfg.Reranker = search.Reranker(reranker)

		return nil
	}
}

func runSearch(ctx context.Context, out io.Writer, cfg search.Config) error {
	result, err := search.Search(ctx, cfg)
	if err != nil {
		if isConfigError(err) {
			return &exitError{code: exitConfig, err: err}
		}

		return &exitError{code: exitInternalOrIO, err: err}
	}

	if result.Cancelled {
		return &exitError{code: exitInternalOrIO, err: search.ErrCancelled}
	}

	printResults(out, result, cfg)

	return nil
}

func isConfigError(err error) bool {
	return errors.Is(err, search.ErrEmptyPattern) ||
		errors.Is(err, search.ErrUnknownReranker) ||
		errors.Is(err, search.ErrNegativeLimit) ||
		errors.Is(err, search.ErrNegativeThreshold)
}

// printResults renders each result as a `file:start-end` header followed by
// the block text, separated by blank lines (spec §6.2).
func printResults(out io.Writer, result search.Result, cfg search.Config) {
	header := color.New(color.FgCyan, color.Bold)

	for i, scored := range result.Blocks {
		if i > 0 {
			fmt.Fprintln(out)
		}

		b := scored.Block
		header.Fprintf(out, "%s:%d-%d\n", b.Path, b.StartLine, b.EndLine)
		fmt.Fprintln(out, b.Text)
	}

	if cfg.MaxBytes > 0 {
		fmt.Fprintf(out, "\n(budget: %s)\n", humanize.Bytes(uint64(cfg.MaxBytes))) //nolint:gosec // budget is user-supplied, always non-negative
	}
}

// exitError carries the process exit code alongside the underlying error.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode extracts the exit code intended for an error returned by a
// command's RunE, defaulting to exitInternalOrIO for unclassified errors.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	return exitInternalOrIO
}
