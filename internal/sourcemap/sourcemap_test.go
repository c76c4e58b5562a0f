package sourcemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/sabre/internal/types"
)

func TestDecompress(t *testing.T) {
	entries, err := Decompress("1:2:1;:9;2:1:2;;3::0:o")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Start: 1, Length: 2, File: 1},
		{Start: 1, Length: 9, File: 1},
		{Start: 2, Length: 1, File: 2},
		{Start: 2, Length: 1, File: 2},
		{Start: 3, Length: 1, File: 0, Jump: "o"},
	}, entries)
}

func TestDecompress_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"non numeric start", "a:1:0"},
		{"non numeric length", "1:x:0"},
		{"non numeric file", "1:1:f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decompress(tt.in)
			assert.ErrorIs(t, err, ErrMalformedSourceMap)
		})
	}

	entries, err := Decompress("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDecompress_NegativeFile(t *testing.T) {
	entries, err := Decompress("0:10:-1")
	require.NoError(t, err)
	assert.Equal(t, -1, entries[0].File)
}

func TestInstructionIndex(t *testing.T) {
	// PUSH1 0x80 PUSH1 0x40 MSTORE PUSH2 0x0102 STOP
	idx, err := InstructionIndex("0x6080604052610102" + "00")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 0, 2: 1, 4: 2, 5: 3, 8: 4}, idx)

	// PUSH32 skips 32 bytes
	code := "7f" + repeat("ff", 32) + "00"
	idx, err = InstructionIndex(code)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 0, 33: 1}, idx)

	_, err = InstructionIndex("0xzz")
	assert.ErrorIs(t, err, ErrMalformedBytecode)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func TestLineIndex_Position(t *testing.T) {
	li := NewLineIndex("ab\ncd\n\nef")
	tests := []struct {
		offset    int
		line, col int
		ok        bool
	}{
		{0, 1, 1, true},
		{1, 1, 2, true},
		{2, 1, 3, true},
		{3, 2, 1, true},
		{6, 3, 1, true},
		{7, 4, 1, true},
		{9, 4, 3, true},
		{10, 0, 0, false},
		{-1, 0, 0, false},
	}
	for _, tt := range tests {
		line, col, ok := li.Position(tt.offset)
		assert.Equal(t, tt.ok, ok, "offset %d", tt.offset)
		assert.Equal(t, tt.line, line, "offset %d", tt.offset)
		assert.Equal(t, tt.col, col, "offset %d", tt.offset)
	}
}

func TestLocate(t *testing.T) {
	content := "contract A {\n  function f() public {}\n}\n"
	loc, ok := Locate("A.sol", content, 15, 22)
	require.True(t, ok)
	assert.Equal(t, &types.Location{File: "A.sol", Line: 2, Column: 3, EndLine: 2, EndColumn: 25}, loc)

	_, ok = Locate("A.sol", content, 500, 1)
	assert.False(t, ok)
}

func TestParseLocator(t *testing.T) {
	e, err := ParseLocator("10:4:1")
	require.NoError(t, err)
	assert.Equal(t, Entry{Start: 10, Length: 4, File: 1}, e)

	_, err = ParseLocator("10:4")
	assert.ErrorIs(t, err, ErrMalformedSourceMap)
}

func TestMapper(t *testing.T) {
	sources := map[string]string{
		"Lib.sol":  "library L {}\n",
		"Main.sol": "import \"./Lib.sol\";\ncontract M {\n  uint x;\n}\n",
	}
	m := NewMapper(sources, []string{"Lib.sol", "Main.sol"})

	loc, ok := m.Locator("35:7:1", nil)
	require.True(t, ok)
	assert.Equal(t, "Main.sol", loc.File)
	assert.Equal(t, 3, loc.Line)
	assert.Equal(t, 3, loc.Column)

	// A per-location source list overrides the default
	loc, ok = m.Locator("0:7:0", []string{"Main.sol"})
	require.True(t, ok)
	assert.Equal(t, "Main.sol", loc.File)

	_, ok = m.Locator("0:1:5", nil)
	assert.False(t, ok, "source id out of range")
	_, ok = m.Locator("garbage", nil)
	assert.False(t, ok)

	_, ok = m.PC(0)
	assert.False(t, ok, "no bytecode attached")

	// PUSH1 0x80 PUSH1 0x40 MSTORE
	require.NoError(t, m.WithBytecode("6080604052", "0:12:0;35:7:1;:"))
	loc, ok = m.PC(2)
	require.True(t, ok)
	assert.Equal(t, "Main.sol", loc.File)
	assert.Equal(t, 3, loc.Line)

	loc, ok = m.PC(4)
	require.True(t, ok, "inherits previous entry")
	assert.Equal(t, "Main.sol", loc.File)

	_, ok = m.PC(1)
	assert.False(t, ok, "pc inside push data")
}
