// Package nandsim simulates a raw NAND device for image building and tests.
//
// Pages start erased (all 0xFF). Programming can only clear bits, so a page
// has to be erased before it can be rewritten. A block is bad when the first
// OOB byte of its first page is not 0xFF, the factory marker convention.
package nandsim

import (
	"bytes"
	"errors"
	"fmt"

	"nandbcb/bcb"
)

// ErrBadBlock is returned when erasing a block marked bad.
var ErrBadBlock = errors.New("nandsim: block is marked bad")

// OpKind is the type of a logged operation.
type OpKind int

const (
	OpErase OpKind = iota
	OpWrite
	OpRead
)

func (k OpKind) String() string {
	switch k {
	case OpErase:
		return "erase"
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one entry of the operation log.
type Op struct {
	Kind   OpKind
	Offset int64
	Raw    bool
}

type page struct {
	data []byte
	oob  []byte
}

// NAND is a simulated device. It implements bcb.Device.
type NAND struct {
	geo   bcb.Geometry
	pages map[int64]*page // by page index, absent pages are erased

	// Log records every erase, write and read in order.
	Log []Op

	// Fault injection. A non-nil error from a hook fails the operation before
	// the media is touched.
	EraseHook func(off int64) error
	WriteHook func(off int64, raw bool) error
	// ReadHook may modify the returned copies, e.g. to flip a bit.
	ReadHook func(off int64, data, oob []byte)
}

// New returns an erased device with geometry geo.
func New(geo bcb.Geometry) (*NAND, error) {
	if geo.PageSize <= 0 || geo.OOBSize <= 0 || geo.PagesPerBlock <= 0 {
		return nil, fmt.Errorf("nandsim: invalid page geometry %d+%d x %d", geo.PageSize, geo.OOBSize, geo.PagesPerBlock)
	}
	if geo.Size <= 0 || geo.Size%geo.BlockSize() != 0 {
		return nil, fmt.Errorf("nandsim: size %d is not a whole number of %d byte blocks", geo.Size, geo.BlockSize())
	}
	return &NAND{geo: geo, pages: map[int64]*page{}}, nil
}

// Geometry implements bcb.Device.
func (n *NAND) Geometry() bcb.Geometry { return n.geo }

func (n *NAND) pageIndex(off int64) (int64, error) {
	if off < 0 || off >= n.geo.Size {
		return 0, fmt.Errorf("nandsim: offset 0x%x outside device of 0x%x bytes", off, n.geo.Size)
	}
	if off%int64(n.geo.PageSize) != 0 {
		return 0, fmt.Errorf("nandsim: offset 0x%x is not page aligned", off)
	}
	return off / int64(n.geo.PageSize), nil
}

func (n *NAND) blockStart(off int64) int64 {
	return off - off%n.geo.BlockSize()
}

// MarkBad marks the block containing off bad.
func (n *NAND) MarkBad(off int64) error {
	idx, err := n.pageIndex(n.blockStart(off))
	if err != nil {
		return err
	}
	p := n.page(idx)
	p.oob[0] = 0x00
	return nil
}

// IsBad implements bcb.Device.
func (n *NAND) IsBad(off int64) (bool, error) {
	idx, err := n.pageIndex(n.blockStart(off))
	if err != nil {
		return false, err
	}
	p, ok := n.pages[idx]
	return ok && p.oob[0] != 0xff, nil
}

// BadBlocks returns the offsets of all blocks marked bad.
func (n *NAND) BadBlocks() []int64 {
	var bad []int64
	for off := int64(0); off < n.geo.Size; off += n.geo.BlockSize() {
		if b, _ := n.IsBad(off); b {
			bad = append(bad, off)
		}
	}
	return bad
}

// EraseBlock implements bcb.Device.
func (n *NAND) EraseBlock(off int64) error {
	if off%n.geo.BlockSize() != 0 {
		return fmt.Errorf("nandsim: erase at 0x%x is not block aligned", off)
	}
	first, err := n.pageIndex(off)
	if err != nil {
		return err
	}
	n.Log = append(n.Log, Op{Kind: OpErase, Offset: off})
	if n.EraseHook != nil {
		if err := n.EraseHook(off); err != nil {
			return err
		}
	}
	if bad, _ := n.IsBad(off); bad {
		return ErrBadBlock
	}
	for i := first; i < first+int64(n.geo.PagesPerBlock); i++ {
		delete(n.pages, i)
	}
	return nil
}

// WritePage implements bcb.Device. Without raw the OOB area is left as is.
func (n *NAND) WritePage(off int64, data, oob []byte, raw bool) error {
	idx, err := n.pageIndex(off)
	if err != nil {
		return err
	}
	if len(data) != n.geo.PageSize {
		return fmt.Errorf("nandsim: write of %d bytes at 0x%x, page is %d", len(data), off, n.geo.PageSize)
	}
	if raw && len(oob) > n.geo.OOBSize {
		return fmt.Errorf("nandsim: OOB write of %d bytes at 0x%x, OOB is %d", len(oob), off, n.geo.OOBSize)
	}
	n.Log = append(n.Log, Op{Kind: OpWrite, Offset: off, Raw: raw})
	if n.WriteHook != nil {
		if err := n.WriteHook(off, raw); err != nil {
			return err
		}
	}
	p := n.page(idx)
	program(p.data, data)
	if raw {
		program(p.oob, oob)
	}
	return nil
}

// ReadPage implements bcb.Device. The OOB area is only returned in raw mode.
func (n *NAND) ReadPage(off int64, raw bool) ([]byte, []byte, error) {
	idx, err := n.pageIndex(off)
	if err != nil {
		return nil, nil, err
	}
	n.Log = append(n.Log, Op{Kind: OpRead, Offset: off, Raw: raw})
	data, oob := erased(n.geo.PageSize), erased(n.geo.OOBSize)
	if p, ok := n.pages[idx]; ok {
		copy(data, p.data)
		copy(oob, p.oob)
	}
	if !raw {
		oob = nil
	}
	if n.ReadHook != nil {
		n.ReadHook(off, data, oob)
	}
	return data, oob, nil
}

// Mutations returns how many erases and writes were issued.
func (n *NAND) Mutations() int {
	c := 0
	for _, op := range n.Log {
		if op.Kind != OpRead {
			c++
		}
	}
	return c
}

// Peek returns a copy of the raw page at off without logging the access.
func (n *NAND) Peek(off int64) bcb.RawPage {
	idx := off / int64(n.geo.PageSize)
	r := bcb.RawPage{Data: erased(n.geo.PageSize), OOB: erased(n.geo.OOBSize)}
	if p, ok := n.pages[idx]; ok {
		copy(r.Data, p.data)
		copy(r.OOB, p.oob)
	}
	return r
}

func (n *NAND) page(idx int64) *page {
	p, ok := n.pages[idx]
	if !ok {
		p = &page{data: erased(n.geo.PageSize), oob: erased(n.geo.OOBSize)}
		n.pages[idx] = p
	}
	return p
}

// program clears the bits that are zero in src, as NAND programming does.
func program(dst, src []byte) {
	for i, b := range src {
		dst[i] &= b
	}
}

func erased(n int) []byte {
	return bytes.Repeat([]byte{0xff}, n)
}
