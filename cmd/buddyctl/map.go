package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/buddykit/buddy"
)

func init() {
	rootCmd.AddCommand(newMapCmd())
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map <script>",
		Short: "Render the arena left behind by a script",
		Long: `The map command executes a request script silently and draws the
resulting arena: which ranges are allocated, which are free, and every
block with its order and size.

Example:
  buddyctl map example.bs
  buddyctl map example.bs --no-color`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(args)
		},
	}
	return cmd
}

func runMap(args []string) error {
	a, _, err := replay(args[0], nil)
	if err != nil {
		return err
	}
	defer releaseIfReady(a)

	if a.State() != buddy.StateReady {
		return fmt.Errorf("script leaves no initialized arena to map")
	}
	blocks, err := a.Blocks()
	if err != nil {
		return fmt.Errorf("failed to map arena: %w", err)
	}
	stats := a.Stats()

	if jsonOut {
		return printJSON(struct {
			Blocks []buddy.Block `json:"blocks"`
			Stats  buddy.Stats   `json:"stats"`
		}{blocks, stats})
	}
	printInfo("%s\n%s", mapRenderer{color: !noColor}.Render(blocks, stats.Capacity), renderStats(stats))
	return nil
}
