package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joshuapare/buddykit/buddy"
)

const (
	mapColumns  = 64
	maxMapCells = 1024
	maxMapRows  = 64 // block table rows before truncation
)

var (
	primaryColor = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#04B575")
	warningColor = lipgloss.Color("#FFA500")
	mutedColor   = lipgloss.Color("#666666")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	usedStyle  = lipgloss.NewStyle().Foreground(primaryColor)
	freeStyle  = lipgloss.NewStyle().Foreground(successColor)
	mixedStyle = lipgloss.NewStyle().Foreground(warningColor)
	axisStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

const (
	glyphUsed  = "█"
	glyphFree  = "░"
	glyphMixed = "▒"
)

// mapRenderer draws an arena as a grid of cells. Each cell stands for a fixed
// number of bytes and shows whether those bytes are allocated, free or both.
type mapRenderer struct {
	color bool
}

func (r mapRenderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

// cellSize returns the bytes per cell for an arena of capacity bytes.
func cellSize(capacity int) int {
	return max(1, capacity/maxMapCells)
}

// Render returns the arena grid, a legend and the block table.
func (r mapRenderer) Render(blocks []buddy.Block, capacity int) string {
	var b strings.Builder

	per := cellSize(capacity)
	cells := capacity / per
	used := make([]bool, cells)
	free := make([]bool, cells)
	for _, blk := range blocks {
		first := int(blk.Addr) / per
		last := (int(blk.Addr) + blk.Size - 1) / per
		for c := first; c <= last && c < cells; c++ {
			if blk.Free {
				free[c] = true
			} else {
				used[c] = true
			}
		}
	}

	b.WriteString(r.style(titleStyle, fmt.Sprintf("Arena map: %s, %s per cell", formatBytes(int64(capacity)), formatBytes(int64(per)))))
	b.WriteString("\n")
	for row := 0; row < cells; row += mapColumns {
		b.WriteString(r.style(axisStyle, fmt.Sprintf("%10d │", row*per)))
		for c := row; c < min(row+mapColumns, cells); c++ {
			switch {
			case used[c] && free[c]:
				b.WriteString(r.style(mixedStyle, glyphMixed))
			case used[c]:
				b.WriteString(r.style(usedStyle, glyphUsed))
			default:
				b.WriteString(r.style(freeStyle, glyphFree))
			}
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s allocated  %s free  %s mixed\n\n",
		r.style(usedStyle, glyphUsed), r.style(freeStyle, glyphFree), r.style(mixedStyle, glyphMixed))

	b.WriteString(r.style(titleStyle, fmt.Sprintf("%-10s %-6s %12s  %s", "ADDR", "ORDER", "SIZE", "STATE")))
	b.WriteString("\n")
	for i, blk := range blocks {
		if i == maxMapRows {
			fmt.Fprintf(&b, "... (%d more blocks)\n", len(blocks)-maxMapRows)
			break
		}
		state := r.style(usedStyle, "allocated")
		if blk.Free {
			state = r.style(freeStyle, "free")
		}
		fmt.Fprintf(&b, "%-10d %-6d %12s  %s\n", blk.Addr, blk.Order, formatNumber(int64(blk.Size)), state)
	}
	return b.String()
}

// renderStats summarizes allocator usage below a map.
func renderStats(s buddy.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Capacity:      %s bytes\n", formatNumber(int64(s.Capacity)))
	fmt.Fprintf(&b, "In use:        %s bytes in %d blocks\n", formatNumber(int64(s.BytesInUse)), s.LiveBlocks)
	fmt.Fprintf(&b, "Free:          %s bytes, largest %s\n", formatNumber(int64(s.BytesFree)), formatNumber(int64(s.LargestFree)))
	fmt.Fprintf(&b, "Fragmentation: %.1f%%\n", s.Fragmentation()*100)
	fmt.Fprintf(&b, "Splits/Merges: %s / %s\n", formatNumber(int64(s.Splits)), formatNumber(int64(s.Merges)))
	return b.String()
}
