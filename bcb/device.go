// Package bcb builds and writes the NAND Boot Control Blocks (FCB and DBBT) read
// by the i.MX mask ROM, and the two redundant firmware copies they point at.
package bcb

import "fmt"

//go:generate mockgen -destination=mocks/mock_device.go -package=mocks nandbcb/bcb Device

// Device is the raw NAND access the boot stream writer needs. Offsets are absolute
// byte offsets on the device. Implementations are not expected to be safe for
// concurrent use.
type Device interface {
	// Geometry describes the device as it is right now.
	Geometry() Geometry
	// EraseBlock erases the erase block starting at off.
	EraseBlock(off int64) error
	// WritePage programs one page. In raw mode data and oob are written as-is,
	// bypassing the ECC engine; otherwise oob is ignored.
	WritePage(off int64, data, oob []byte, raw bool) error
	// ReadPage reads one page. oob is only returned in raw mode.
	ReadPage(off int64, raw bool) (data, oob []byte, err error)
	// IsBad reports whether the erase block containing off is marked bad.
	IsBad(off int64) (bool, error)
}

// Geometry is the raw NAND geometry.
type Geometry struct {
	PageSize      int // data bytes per page
	OOBSize       int // out-of-band bytes per page
	PagesPerBlock int
	ECCStepSize   int // ECC chunk size; 0 derives it from OOBSize
	ECCStrength   int // bits corrected per chunk; 0 derives it from OOBSize
	Size          int64
}

// BlockSize returns the erase block size in bytes.
func (g Geometry) BlockSize() int64 {
	return int64(g.PageSize) * int64(g.PagesPerBlock)
}

// RawPageSize returns the size of a page including its OOB area.
func (g Geometry) RawPageSize() int {
	return g.PageSize + g.OOBSize
}

// Blocks returns the number of erase blocks on the device.
func (g Geometry) Blocks() int64 {
	if g.BlockSize() == 0 {
		return 0
	}
	return g.Size / g.BlockSize()
}

// ChunkSize returns the ECC chunk size in use.
func (g Geometry) ChunkSize() int {
	if g.ECCStepSize != 0 {
		return g.ECCStepSize
	}
	return ChunkSizeForOOB(g.OOBSize)
}

// Strength returns the ECC strength in use.
func (g Geometry) Strength() int {
	if g.ECCStrength != 0 {
		return g.ECCStrength
	}
	return DefaultECCStrength(g.PageSize, g.OOBSize)
}

// Validate reports a GeometryError if the ROM cannot boot from g.
func (g Geometry) Validate() error {
	switch {
	case g.PageSize <= 0 || g.OOBSize <= 0 || g.PagesPerBlock <= 0:
		return &GeometryError{Reason: fmt.Sprintf("invalid page geometry %d+%d x %d", g.PageSize, g.OOBSize, g.PagesPerBlock)}
	case g.Size <= 0 || g.Size%g.BlockSize() != 0:
		return &GeometryError{Reason: fmt.Sprintf("device size %d is not a whole number of %d byte blocks", g.Size, g.BlockSize())}
	case g.PageSize < fcbRawSpan:
		return &GeometryError{Reason: fmt.Sprintf("page size %d cannot hold a %d byte FCB image", g.PageSize, fcbRawSpan)}
	}

	chunk, strength := g.ChunkSize(), g.Strength()
	switch {
	case chunk != 512 && chunk != 1024:
		return &GeometryError{Reason: fmt.Sprintf("unsupported ECC step size %d", chunk)}
	case g.PageSize%chunk != 0:
		return &GeometryError{Reason: fmt.Sprintf("page size %d is not a multiple of the ECC step %d", g.PageSize, chunk)}
	case strength <= 0:
		return &GeometryError{Reason: fmt.Sprintf("no ECC strength fits %d OOB bytes", g.OOBSize)}
	case strength*gfWidth(chunk)*(g.PageSize/chunk)+MetadataBytes*8 > g.OOBSize*8:
		return &GeometryError{Reason: fmt.Sprintf("ECC strength %d parity does not fit %d OOB bytes", strength, g.OOBSize)}
	case (chunk-MetadataBytes)*8 < (g.PageSize/chunk-1)*strength*gfWidth(chunk):
		// The raw marker byte has to land in the data of the last chunk.
		return &GeometryError{Reason: fmt.Sprintf("ECC strength %d moves the bad block marker out of a %d byte page", strength, g.PageSize)}
	}
	return nil
}

// String formats the geometry the way MTD tools print it.
func (g Geometry) String() string {
	return fmt.Sprintf("page %d+%d, %d pages/block (%s), ecc %d bits/%d bytes, size %d",
		g.PageSize, g.OOBSize, g.PagesPerBlock, humanBytes(g.BlockSize()), g.Strength(), g.ChunkSize(), g.Size)
}

// Partition is the region of the device the boot stream is written to.
type Partition struct {
	Offset int64
	Size   int64
}

// RawPage is a page image for raw mode writes.
type RawPage struct {
	Data []byte
	OOB  []byte
}

func humanBytes(b int64) string {
	switch {
	case b >= 1024*1024 && b%(1024*1024) == 0:
		return fmt.Sprintf("%dM", b/(1024*1024))
	case b >= 1024 && b%1024 == 0:
		return fmt.Sprintf("%dK", b/1024)
	}
	return fmt.Sprintf("%dB", b)
}
