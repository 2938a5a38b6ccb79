package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/buddykit/buddy"
)

var infoFlags arenaFlags

func init() {
	cmd := newInfoCmd()
	infoFlags.register(cmd)
	rootCmd.AddCommand(cmd)
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the size class table of an arena",
		Long: `The info command builds an arena and prints its orders: the block size
of each order and how many blocks of that size the arena holds.

Example:
  buddyctl info -b 8 -l 64
  buddyctl info --config arena.json --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
	return cmd
}

// OrderInfo is one row of the size class table.
type OrderInfo struct {
	Order     buddy.Order `json:"order"`
	BlockSize int         `json:"block_size"`
	Blocks    int         `json:"blocks"`
}

// InfoReport describes an arena's geometry.
type InfoReport struct {
	BasicBlockSize int           `json:"basic_block_size"`
	Length         int           `json:"length"`
	Capacity       int           `json:"capacity"`
	Backing        buddy.Backing `json:"backing"`
	BaseOrder      int           `json:"base_order"`
	TopOrder       buddy.Order   `json:"top_order"`
	Orders         []OrderInfo   `json:"orders"`
}

func runInfo() error {
	cfg, err := loadArenaConfig(&infoFlags)
	if err != nil {
		return err
	}
	report, err := buildInfo(cfg)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("\nArena: %s requested, %s capacity (%s bytes)\n",
		formatBytes(int64(report.Length)), formatBytes(int64(report.Capacity)), formatNumber(int64(report.Capacity)))
	printInfo("%s\n", strings.Repeat("═", 40))
	printInfo("  Basic block: %d B (base order %d)\n", report.BasicBlockSize, report.BaseOrder)
	printInfo("  Orders:      %d (0..%d)\n", len(report.Orders), report.TopOrder)
	printInfo("  Backing:     %s\n\n", report.Backing)

	printInfo("  %-6s %14s %14s\n", "ORDER", "BLOCK SIZE", "BLOCKS")
	for _, o := range report.Orders {
		printInfo("  %-6d %14s %14s\n", o.Order, formatNumber(int64(o.BlockSize)), formatNumber(int64(o.Blocks)))
	}
	return nil
}

// buildInfo initializes an arena for cfg, reads its geometry and releases it.
func buildInfo(cfg *buddy.Config) (*InfoReport, error) {
	a, capacity, err := buddy.Open(cfg, allocatorOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize arena: %w", err)
	}
	defer a.Release()

	base, err := a.BaseOrder()
	if err != nil {
		return nil, err
	}
	top, err := a.TopOrder()
	if err != nil {
		return nil, err
	}

	backing := cfg.Backing
	if backing == "" {
		backing = buddy.BackingHeap
	}
	report := &InfoReport{
		BasicBlockSize: 1 << base,
		Length:         cfg.Length,
		Capacity:       capacity,
		Backing:        backing,
		BaseOrder:      base,
		TopOrder:       top,
	}
	for k := buddy.Order(0); k <= top; k++ {
		size, err := a.BlockSize(k)
		if err != nil {
			return nil, err
		}
		report.Orders = append(report.Orders, OrderInfo{Order: k, BlockSize: size, Blocks: capacity / size})
	}
	printVerbose("Initialized %s arena with %d orders\n", backing, len(report.Orders))
	return report, nil
}
