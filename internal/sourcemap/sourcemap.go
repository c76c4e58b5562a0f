// Package sourcemap decodes solc's compressed source maps and maps program
// counters and byte offsets onto source lines and columns.
package sourcemap

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/steveyegge/sabre/internal/types"
)

var (
	// ErrMalformedSourceMap is returned when a map entry cannot be parsed
	ErrMalformedSourceMap = errors.New("malformed source map")
	// ErrMalformedBytecode is returned for non-hex bytecode
	ErrMalformedBytecode = errors.New("malformed bytecode")
)

// Entry is one decompressed source map element: byte offset, length and
// source id of the code that produced an instruction. File is -1 for
// compiler-generated code.
type Entry struct {
	Start  int
	Length int
	File   int
	Jump   string
}

// Decompress expands a compressed map ("s:l:f:j;;:3;...") where empty
// fields inherit the previous entry's value.
func Decompress(compressed string) ([]Entry, error) {
	if compressed == "" {
		return nil, nil
	}
	parts := strings.Split(compressed, ";")
	entries := make([]Entry, 0, len(parts))
	prev := Entry{File: -1}

	for i, part := range parts {
		cur := prev
		fields := strings.Split(part, ":")
		for j, f := range fields {
			if f == "" {
				continue
			}
			switch j {
			case 0, 1, 2:
				n, err := strconv.Atoi(f)
				if err != nil {
					return nil, fmt.Errorf("%w: entry %d: %q", ErrMalformedSourceMap, i, part)
				}
				switch j {
				case 0:
					cur.Start = n
				case 1:
					cur.Length = n
				case 2:
					cur.File = n
				}
			case 3:
				cur.Jump = f
			}
			// a fifth field (modifier depth) is ignored
		}
		entries = append(entries, cur)
		prev = cur
	}
	return entries, nil
}

// InstructionIndex maps each program counter of bytecode to the index of the
// instruction that starts there. PUSH1..PUSH32 carry 1..32 bytes of
// immediate data which are skipped.
func InstructionIndex(bytecode string) (map[int]int, error) {
	code := strings.TrimPrefix(strings.TrimPrefix(bytecode, "0x"), "0X")
	raw, err := hex.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBytecode, err)
	}

	index := make(map[int]int, len(raw))
	n := 0
	for pc := 0; pc < len(raw); pc++ {
		index[pc] = n
		n++
		if op := raw[pc]; op >= 0x60 && op <= 0x7f {
			pc += int(op-0x60) + 1
		}
	}
	return index, nil
}

// LineIndex converts byte offsets of a source text into positions
type LineIndex struct {
	starts []int
	size   int
}

// NewLineIndex indexes the line starts of content
func NewLineIndex(content string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts, size: len(content)}
}

// Position returns the 1-based line and column of a byte offset
func (li *LineIndex) Position(offset int) (line, column int, ok bool) {
	if offset < 0 || offset > li.size {
		return 0, 0, false
	}
	lo, hi := 0, len(li.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, offset - li.starts[lo] + 1, true
}

// Locate converts a byte range of content into a Location for file
func Locate(file, content string, start, length int) (*types.Location, bool) {
	li := NewLineIndex(content)
	return li.locate(file, start, length)
}

func (li *LineIndex) locate(file string, start, length int) (*types.Location, bool) {
	line, col, ok := li.Position(start)
	if !ok {
		return nil, false
	}
	end := start + length
	if length < 0 || end > li.size {
		end = start
	}
	endLine, endCol, _ := li.Position(end)
	return &types.Location{File: file, Line: line, Column: col, EndLine: endLine, EndColumn: endCol}, true
}

// ParseLocator parses a single "s:l:f" locator
func ParseLocator(locator string) (Entry, error) {
	fields := strings.Split(strings.TrimSpace(locator), ":")
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("%w: locator %q", ErrMalformedSourceMap, locator)
	}
	var vals [3]int
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return Entry{}, fmt.Errorf("%w: locator %q", ErrMalformedSourceMap, locator)
		}
		vals[i] = n
	}
	return Entry{Start: vals[0], Length: vals[1], File: vals[2]}, nil
}
