package sourcemap

import (
	"github.com/steveyegge/sabre/internal/types"
)

// Mapper resolves source map entries and program counters against a set of
// source contents. Line indexes are built lazily per file.
type Mapper struct {
	sources map[string]string
	lines   map[string]*LineIndex

	sourceList []string
	pcIndex    map[int]int
	entries    []Entry
}

// NewMapper creates a Mapper over sources (unit name to content) with the
// compiler's source list as the default id table
func NewMapper(sources map[string]string, sourceList []string) *Mapper {
	return &Mapper{
		sources:    sources,
		lines:      make(map[string]*LineIndex),
		sourceList: sourceList,
	}
}

// WithBytecode enables program counter lookups through the deployed
// bytecode and its compressed source map
func (m *Mapper) WithBytecode(bytecode, sourceMap string) error {
	idx, err := InstructionIndex(bytecode)
	if err != nil {
		return err
	}
	entries, err := Decompress(sourceMap)
	if err != nil {
		return err
	}
	m.pcIndex = idx
	m.entries = entries
	return nil
}

// Locator resolves an "s:l:f" locator. sourceList overrides the default id
// table when non-empty.
func (m *Mapper) Locator(locator string, sourceList []string) (*types.Location, bool) {
	e, err := ParseLocator(locator)
	if err != nil {
		return nil, false
	}
	return m.Entry(e, sourceList)
}

// Entry resolves a decoded source map entry
func (m *Mapper) Entry(e Entry, sourceList []string) (*types.Location, bool) {
	if len(sourceList) == 0 {
		sourceList = m.sourceList
	}
	if e.File < 0 || e.File >= len(sourceList) {
		return nil, false
	}
	name := sourceList[e.File]
	li, ok := m.lineIndex(name)
	if !ok {
		return nil, false
	}
	return li.locate(name, e.Start, e.Length)
}

// PC resolves a program counter of the deployed bytecode
func (m *Mapper) PC(pc int) (*types.Location, bool) {
	if m.pcIndex == nil {
		return nil, false
	}
	n, ok := m.pcIndex[pc]
	if !ok || n >= len(m.entries) {
		return nil, false
	}
	return m.Entry(m.entries[n], nil)
}

func (m *Mapper) lineIndex(name string) (*LineIndex, bool) {
	if li, ok := m.lines[name]; ok {
		return li, true
	}
	content, ok := m.sources[name]
	if !ok {
		return nil, false
	}
	li := NewLineIndex(content)
	m.lines[name] = li
	return li, true
}
