// Package command parses and applies the remote counter commands delivered
// over the transport. Unlike organic pulse counting, every mutating command
// is followed by an immediate durable write, bypassing the flush threshold.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Op identifies a command form.
type Op string

const (
	OpForceSet Op = "force_set"
	OpRead     Op = "read"
	OpResetAll Op = "reset_all"
)

// Command is a parsed, not yet validated, command intent.
type Command struct {
	Op    Op
	Index int    // ForceSet, Read
	Value uint32 // ForceSet only
}

// ErrMalformed wraps every syntax error so callers can treat them uniformly.
var ErrMalformed = errors.New("malformed command")

// ErrOutOfRange is returned for a syntactically valid but unconfigured
// channel index. A rejected command, never a fault.
var ErrOutOfRange = errors.New("channel index out of range")

// Grammar, case-sensitive:
//
//	Force_Compteur[<index>]=<uint32>
//	Read_Compteur[<index>]
//	Init_All
const (
	forceSetPrefix = "Force_Compteur["
	readPrefix     = "Read_Compteur["
	resetAll       = "Init_All"
)

// Parse turns one inbound message into a Command. Syntax only; index bounds
// are validated by the Processor before any state is touched.
func Parse(msg string) (Command, error) {
	switch {
	case msg == resetAll:
		return Command{Op: OpResetAll}, nil

	case strings.HasPrefix(msg, forceSetPrefix):
		rest := msg[len(forceSetPrefix):]
		bracket := strings.Index(rest, "]")
		if bracket < 0 {
			return Command{}, fmt.Errorf("%w: missing ']' in %q", ErrMalformed, msg)
		}
		idx, err := parseIndex(rest[:bracket])
		if err != nil {
			return Command{}, fmt.Errorf("%w: %v in %q", ErrMalformed, err, msg)
		}
		rest = rest[bracket+1:]
		if !strings.HasPrefix(rest, "=") {
			return Command{}, fmt.Errorf("%w: missing '=' in %q", ErrMalformed, msg)
		}
		value, err := strconv.ParseUint(rest[1:], 10, 32)
		if err != nil {
			return Command{}, fmt.Errorf("%w: bad value in %q", ErrMalformed, msg)
		}
		return Command{Op: OpForceSet, Index: idx, Value: uint32(value)}, nil

	case strings.HasPrefix(msg, readPrefix):
		rest := msg[len(readPrefix):]
		if !strings.HasSuffix(rest, "]") {
			return Command{}, fmt.Errorf("%w: missing ']' in %q", ErrMalformed, msg)
		}
		idx, err := parseIndex(rest[:len(rest)-1])
		if err != nil {
			return Command{}, fmt.Errorf("%w: %v in %q", ErrMalformed, err, msg)
		}
		return Command{Op: OpRead, Index: idx}, nil

	default:
		return Command{}, fmt.Errorf("%w: %q", ErrMalformed, msg)
	}
}

func parseIndex(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty index")
	}
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	return idx, nil
}
