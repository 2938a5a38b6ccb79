// Package script runs line-oriented request scripts against an Allocator.
//
// Each non-blank line that does not start with '#' is one request:
//
//	init BASIC_BLOCK_SIZE LENGTH
//	malloc SIZE NAME
//	free NAME
//	check
//	release
//
// NAME binds the address returned by malloc so that a later free can refer
// to it. Every request produces one response line; allocator errors become
// "error: ..." responses and the script keeps going.
package script

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSyntax is returned by Parse for malformed lines.
var ErrSyntax = errors.New("script: syntax error")

// Op is a request verb.
type Op string

const (
	OpInit    Op = "init"
	OpMalloc  Op = "malloc"
	OpFree    Op = "free"
	OpCheck   Op = "check"
	OpRelease Op = "release"
)

// arity is the number of arguments after the verb.
var arity = map[Op]int{
	OpInit:    2,
	OpMalloc:  2,
	OpFree:    1,
	OpCheck:   0,
	OpRelease: 0,
}

// Command is one parsed request.
type Command struct {
	Line int `json:"line"`
	Op   Op  `json:"op"`

	BasicBlockSize int    `json:"basic_block_size,omitempty"` // init
	Length         int    `json:"length,omitempty"`           // init
	Size           int    `json:"size,omitempty"`             // malloc
	Name           string `json:"name,omitempty"`             // malloc, free
}

// String renders the command the way it is written in a script.
func (c Command) String() string {
	switch c.Op {
	case OpInit:
		return fmt.Sprintf("init %d %d", c.BasicBlockSize, c.Length)
	case OpMalloc:
		return fmt.Sprintf("malloc %d %s", c.Size, c.Name)
	case OpFree:
		return "free " + c.Name
	default:
		return string(c.Op)
	}
}

// Parse reads a script. It stops at the first malformed line.
func Parse(r io.Reader) ([]Command, error) {
	var cmds []Command
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cmd, err := parseLine(line, strings.Fields(text))
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return cmds, nil
}

func parseLine(line int, fields []string) (Command, error) {
	op := Op(strings.ToLower(fields[0]))
	n, ok := arity[op]
	if !ok {
		return Command{}, fmt.Errorf("%w: line %d: unknown request %q", ErrSyntax, line, fields[0])
	}
	if len(fields)-1 != n {
		return Command{}, fmt.Errorf("%w: line %d: %s takes %d argument(s), got %d",
			ErrSyntax, line, op, n, len(fields)-1)
	}

	cmd := Command{Line: line, Op: op}
	var err error
	switch op {
	case OpInit:
		if cmd.BasicBlockSize, err = parseInt(line, fields[1]); err != nil {
			return Command{}, err
		}
		if cmd.Length, err = parseInt(line, fields[2]); err != nil {
			return Command{}, err
		}
	case OpMalloc:
		if cmd.Size, err = parseInt(line, fields[1]); err != nil {
			return Command{}, err
		}
		cmd.Name = fields[2]
	case OpFree:
		cmd.Name = fields[1]
	}
	return cmd, nil
}

func parseInt(line int, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %q is not an integer", ErrSyntax, line, s)
	}
	return v, nil
}
