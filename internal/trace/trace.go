// Package trace replays scripted bus accesses against a cartridge. A script
// has one operation per line, numbers are hexadecimal and # starts a comment:
//
//	w ADDR VAL         write VAL to ADDR
//	r ADDR [VAL]       read ADDR, optionally expecting VAL
//	fill ADDR VAL N    write VAL to ADDR N times
//	map                print the current address map
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/bus"
)

// ErrSyntax is wrapped by every script parse error.
var ErrSyntax = errors.New("syntax error")

type OpKind uint8

const (
	OpWrite OpKind = iota
	OpRead
	OpFill
	OpMap
)

type Op struct {
	Kind   OpKind
	Line   int
	Addr   uint16
	Value  byte
	Expect bool // OpRead compares against Value
	Count  int  // OpFill repetitions
}

// Bus is the memory the script runs against.
type Bus interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
	Pages() [256]bus.Page
}

type Result struct {
	Reads      int
	Writes     int
	Mismatches int
}

func Parse(r io.Reader) ([]Op, error) {
	var ops []Op
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		op, err := parseOp(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		op.Line = line
		ops = append(ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return ops, nil
}

func parseOp(fields []string) (Op, error) {
	var op Op
	var err error
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "w":
		if len(args) != 2 {
			return op, fmt.Errorf("%w: w takes ADDR VAL", ErrSyntax)
		}
		op.Kind = OpWrite
		if op.Addr, err = parseAddr(args[0]); err != nil {
			return op, err
		}
		op.Value, err = parseValue(args[1])
		return op, err

	case "r":
		if len(args) != 1 && len(args) != 2 {
			return op, fmt.Errorf("%w: r takes ADDR [VAL]", ErrSyntax)
		}
		op.Kind = OpRead
		if op.Addr, err = parseAddr(args[0]); err != nil {
			return op, err
		}
		if len(args) == 2 {
			op.Expect = true
			op.Value, err = parseValue(args[1])
		}
		return op, err

	case "fill":
		if len(args) != 3 {
			return op, fmt.Errorf("%w: fill takes ADDR VAL COUNT", ErrSyntax)
		}
		op.Kind = OpFill
		if op.Addr, err = parseAddr(args[0]); err != nil {
			return op, err
		}
		if op.Value, err = parseValue(args[1]); err != nil {
			return op, err
		}
		n, err := parseHex(args[2], 32)
		if err != nil {
			return op, err
		}
		op.Count = int(n)
		return op, nil

	case "map":
		if len(args) != 0 {
			return op, fmt.Errorf("%w: map takes no arguments", ErrSyntax)
		}
		op.Kind = OpMap
		return op, nil

	default:
		return op, fmt.Errorf("%w: unknown operation %q", ErrSyntax, fields[0])
	}
}

func parseHex(s string, bits int) (uint64, error) {
	t := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "0x"), "$")
	n, err := strconv.ParseUint(t, 16, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrSyntax, s)
	}
	return n, nil
}

func parseAddr(s string) (uint16, error) {
	n, err := parseHex(s, 16)
	return uint16(n), err
}

func parseValue(s string) (byte, error) {
	n, err := parseHex(s, 8)
	return byte(n), err
}

// Run executes ops in order. Reads are echoed to w, failed expectations are
// reported and counted but do not stop the run.
func Run(b Bus, ops []Op, w io.Writer) (Result, error) {
	var res Result
	for _, op := range ops {
		switch op.Kind {
		case OpWrite:
			b.Write(op.Addr, op.Value)
			res.Writes++

		case OpFill:
			for i := 0; i < op.Count; i++ {
				b.Write(op.Addr, op.Value)
			}
			res.Writes += op.Count

		case OpRead:
			v := b.Read(op.Addr)
			res.Reads++
			if !op.Expect {
				if _, err := fmt.Fprintf(w, "%4d: r %04X = %02X\n", op.Line, op.Addr, v); err != nil {
					return res, err
				}
				continue
			}
			if v != op.Value {
				res.Mismatches++
				if _, err := fmt.Fprintf(w, "%4d: r %04X = %02X, expected %02X\n", op.Line, op.Addr, v, op.Value); err != nil {
					return res, err
				}
			}

		case OpMap:
			if err := WriteMap(w, b.Pages()); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}
