package flashui

import "strings"

// BlockState is what the map shows for one erase block.
type BlockState uint8

const (
	Pending  BlockState = iota
	Reserved            // search area, not yet written
	Written
	Bad
	Failed
)

var glyphs = [...]rune{
	Pending:  '░',
	Reserved: '■',
	Written:  '█',
	Bad:      'X',
	Failed:   '!',
}

// Rune returns the map glyph for s.
func (s BlockState) Rune() rune {
	if int(s) < len(glyphs) {
		return glyphs[s]
	}
	return '?'
}

// Legend describes the glyphs for SetLegend.
func Legend() []string {
	return []string{"Legend: █ written  ░ pending  ■ BCB area  X bad block  ! failed"}
}

// BlockMap tracks the state of every erase block in the partition being
// written.
type BlockMap struct {
	blockSize int64
	base      int64
	states    []BlockState
	current   int
}

// NewBlockMap covers blocks of blockSize bytes from base for size bytes.
func NewBlockMap(base, size, blockSize int64) *BlockMap {
	return &BlockMap{
		blockSize: blockSize,
		base:      base,
		states:    make([]BlockState, size/blockSize),
	}
}

// Len returns the number of blocks.
func (m *BlockMap) Len() int { return len(m.states) }

func (m *BlockMap) index(off int64) (int, bool) {
	i := (off - m.base) / m.blockSize
	if off < m.base || i >= int64(len(m.states)) {
		return 0, false
	}
	return int(i), true
}

// Mark sets the block holding the absolute offset off. Failed and Bad are
// sticky so a later page write in the same block does not hide them.
func (m *BlockMap) Mark(off int64, s BlockState) {
	i, ok := m.index(off)
	if !ok {
		return
	}
	if cur := m.states[i]; (cur == Bad || cur == Failed) && s == Written {
		return
	}
	m.states[i] = s
	m.current = i
}

// MarkRange sets every block in [start, end) that is still Pending.
func (m *BlockMap) MarkRange(start, end int64, s BlockState) {
	for off := start; off < end; off += m.blockSize {
		if i, ok := m.index(off); ok && m.states[i] == Pending {
			m.states[i] = s
		}
	}
}

// Count returns how many blocks are in state s.
func (m *BlockMap) Count(s BlockState) int {
	n := 0
	for _, st := range m.states {
		if st == s {
			n++
		}
	}
	return n
}

// Lines renders the map into rows of width cells. When the map is larger than
// the screen it scrolls to keep the last marked block visible.
func (m *BlockMap) Lines(width, rows int) []string {
	if width <= 0 || rows <= 0 || len(m.states) == 0 {
		return nil
	}
	cells := width * rows
	start := 0
	if len(m.states) > cells && m.current >= cells {
		start = min(m.current-cells+1, len(m.states)-cells)
	}

	var lines []string
	for row := 0; row < rows; row++ {
		first := start + row*width
		if first >= len(m.states) {
			break
		}
		var b strings.Builder
		for _, s := range m.states[first:min(first+width, len(m.states))] {
			b.WriteRune(s.Rune())
		}
		lines = append(lines, b.String())
	}
	return lines
}
