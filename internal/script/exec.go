package script

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/joshuapare/buddykit/buddy"
)

// Result is the response to one command.
type Result struct {
	Command  Command `json:"command"`
	Response string  `json:"response"`
	Err      error   `json:"-"`
}

// OK reports whether the request succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Exec runs cmds against a in order and writes "REQUEST -> RESPONSE" lines
// to w when w is non-nil. Allocator errors are recorded in the results; the
// returned error is only set when writing to w fails.
func Exec(a *buddy.Allocator, cmds []Command, w io.Writer) ([]Result, error) {
	names := make(map[string]buddy.Addr)
	results := make([]Result, 0, len(cmds))

	for _, cmd := range cmds {
		resp, err := execOne(a, names, cmd)
		if err != nil {
			resp = "error: " + err.Error()
		}
		results = append(results, Result{Command: cmd, Response: resp, Err: err})

		if w != nil {
			if _, werr := fmt.Fprintf(w, "%s -> %s\n", cmd, resp); werr != nil {
				return results, werr
			}
		}
	}
	return results, nil
}

func execOne(a *buddy.Allocator, names map[string]buddy.Addr, cmd Command) (string, error) {
	switch cmd.Op {
	case OpInit:
		capacity, err := a.Init(cmd.BasicBlockSize, cmd.Length)
		if err != nil {
			return "", err
		}
		return "ok " + strconv.Itoa(capacity), nil

	case OpMalloc:
		if addr, ok := names[cmd.Name]; ok {
			return "", fmt.Errorf("name %q already holds block %d", cmd.Name, addr)
		}
		addr, _, err := a.Malloc(cmd.Size)
		if err != nil {
			return "", err
		}
		names[cmd.Name] = addr
		return "ok " + strconv.Itoa(int(addr)), nil

	case OpFree:
		addr, ok := names[cmd.Name]
		if !ok {
			return "", fmt.Errorf("unknown name %q", cmd.Name)
		}
		if err := a.Free(addr); err != nil {
			return "", err
		}
		delete(names, cmd.Name)
		return "ok", nil

	case OpCheck:
		if err := a.Check(); err != nil {
			return "", err
		}
		return "ok", nil

	case OpRelease:
		if err := a.Release(); err != nil {
			return "", err
		}
		clear(names)
		return "ok", nil
	}
	return "", errors.New("unsupported request " + string(cmd.Op))
}
