package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/buddykit/buddy"
	"github.com/joshuapare/buddykit/internal/script"
)

var (
	runShowMap bool
	runStrict  bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().BoolVar(&runShowMap, "map", false, "Render the arena map after the script")
	cmd.Flags().BoolVar(&runStrict, "strict", false, "Exit with an error if any request fails")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Replay an allocation script",
		Long: `The run command executes a request script against a fresh allocator and
prints one response per request. Requests that fail are reported and the
script continues.

Script syntax:
  init BASIC_BLOCK_SIZE LENGTH
  malloc SIZE NAME
  free NAME
  check
  release
  # comment

Example:
  buddyctl run example.bs
  buddyctl run example.bs --map
  buddyctl run example.bs --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(args)
		},
	}
	return cmd
}

// RunReport is the JSON form of a script run.
type RunReport struct {
	Script  string          `json:"script"`
	Results []script.Result `json:"results"`
	Failed  int             `json:"failed"`
	Blocks  []buddy.Block   `json:"blocks,omitempty"`
	Stats   *buddy.Stats    `json:"stats,omitempty"`
}

func runScript(args []string) error {
	path := args[0]

	var w io.Writer = os.Stdout
	if quiet || jsonOut {
		w = nil
	}
	a, results, err := replay(path, w)
	if err != nil {
		return err
	}
	defer releaseIfReady(a)

	report := RunReport{Script: path, Results: results}
	for _, r := range results {
		if !r.OK() {
			report.Failed++
		}
	}

	if a.State() == buddy.StateReady && (runShowMap || jsonOut) {
		blocks, err := a.Blocks()
		if err != nil {
			return fmt.Errorf("failed to map arena: %w", err)
		}
		stats := a.Stats()
		if jsonOut {
			report.Blocks, report.Stats = blocks, &stats
		} else {
			printInfo("\n%s\n%s", mapRenderer{color: !noColor}.Render(blocks, stats.Capacity), renderStats(stats))
		}
	}

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printVerbose("%d requests, %d failed\n", len(results), report.Failed)
	}

	if runStrict && report.Failed > 0 {
		return fmt.Errorf("%d of %d requests failed", report.Failed, len(results))
	}
	return nil
}

// replay parses the script at path and executes it on a new allocator,
// writing responses to w when w is non-nil.
func replay(path string, w io.Writer) (*buddy.Allocator, []script.Result, error) {
	cfg, err := loadArenaConfig(nil)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	cmds, err := script.Parse(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse script: %w", err)
	}
	printVerbose("Parsed %d requests from %s\n", len(cmds), path)

	a := buddy.New(allocatorOptions(cfg)...)
	results, err := script.Exec(a, cmds, w)
	if err != nil {
		releaseIfReady(a)
		return nil, nil, fmt.Errorf("failed to write responses: %w", err)
	}
	return a, results, nil
}

func releaseIfReady(a *buddy.Allocator) {
	if a.State() == buddy.StateReady {
		_ = a.Release()
	}
}
