package bcb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	FCBFingerprint = 0x20424346 // "FCB "
	FCBVersion     = 0x01000000

	// FCBSize is the size of the serialized record.
	FCBSize = 1024
)

// FCB is the Firmware Configuration Block. Field order and widths are the ROM's
// on-media layout; blank fields are reserved and always zero.
type FCB struct {
	Checksum    uint32
	Fingerprint uint32
	Version     uint32

	DataSetup   uint8
	DataHold    uint8
	AddrSetup   uint8
	SampleDelay uint8
	_           [4]uint8 // application timings, unused by the ROM

	PageSize        uint32
	TotalPageSize   uint32 // data + OOB
	SectorsPerBlock uint32
	_               [3]uint32 // NAND count, die count, cell type

	ECCBlockNType       uint32
	ECCBlock0Size       uint32
	ECCBlockNSize       uint32
	ECCBlock0Type       uint32
	MetadataBytes       uint32
	NumECCBlocksPerPage uint32
	_                   [6]uint32 // SDK copies of the ECC settings
	_                   [3]uint32 // erase threshold, boot patch, patch size

	Firmware1StartPage uint32
	Firmware2StartPage uint32
	Firmware1Pages     uint32
	Firmware2Pages     uint32
	DBBTStartPage      uint32
	BBMarkerByte       uint32
	BBMarkerStartBit   uint32
	BBMarkerPhysOffset uint32

	BCHType uint32      // Galois field width of the BCH code, 13 or 14
	_       [13]uint32  // extended timings, BI swap, ONFI sync
	_       [208]uint32 // reserved up to 1 KiB
}

// BuildFCB fills an FCB for the given placement. It does no I/O.
func BuildFCB(geo Geometry, red RedundancyConfig, l *Layout, m Marker, variant RomVariant) *FCB {
	t := red.timing()
	chunk := geo.ChunkSize()
	level := uint32(geo.Strength() >> 1)
	pages := uint32(divRoundUp(l.PayloadSize+int64(variant.PrePad()), int64(geo.PageSize)))
	page := int64(geo.PageSize)

	f := &FCB{
		Fingerprint: FCBFingerprint,
		Version:     FCBVersion,

		DataSetup:   t.DataSetup,
		DataHold:    t.DataHold,
		AddrSetup:   t.AddrSetup,
		SampleDelay: t.SampleDelay,

		PageSize:        uint32(geo.PageSize),
		TotalPageSize:   uint32(geo.RawPageSize()),
		SectorsPerBlock: uint32(geo.PagesPerBlock),

		ECCBlockNType:       level,
		ECCBlock0Size:       uint32(chunk),
		ECCBlockNSize:       uint32(chunk),
		ECCBlock0Type:       level,
		MetadataBytes:       MetadataBytes,
		NumECCBlocksPerPage: uint32(geo.PageSize/chunk - 1),

		Firmware1StartPage: uint32(l.Firmware[0].Start / page),
		Firmware2StartPage: uint32(l.Firmware[1].Start / page),
		Firmware1Pages:     pages,
		Firmware2Pages:     pages,
		DBBTStartPage:      uint32(l.DBBTAreas[0].Start / page),
		BBMarkerByte:       uint32(m.Byte),
		BBMarkerStartBit:   uint32(m.Bit),
		BBMarkerPhysOffset: uint32(geo.PageSize),
		BCHType:            uint32(gfWidth(chunk)),
	}
	f.UpdateChecksum()
	return f
}

// MarshalBinary packs the record little-endian into FCBSize bytes.
func (f *FCB) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(FCBSize)
	if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UpdateChecksum recomputes Checksum over the serialized record.
func (f *FCB) UpdateChecksum() {
	b, err := f.MarshalBinary()
	if err != nil {
		panic(err) // fixed-size struct
	}
	f.Checksum = recordChecksum(b)
}

// UnmarshalFCB unpacks and validates a serialized FCB.
func UnmarshalFCB(b []byte) (*FCB, error) {
	if len(b) < FCBSize {
		return nil, fmt.Errorf("FCB: short record of %d bytes", len(b))
	}
	f := &FCB{}
	if err := binary.Read(bytes.NewReader(b[:FCBSize]), binary.LittleEndian, f); err != nil {
		return nil, err
	}
	if f.Fingerprint != FCBFingerprint {
		return nil, fmt.Errorf("FCB: bad fingerprint 0x%08x", f.Fingerprint)
	}
	if f.Version != FCBVersion {
		return nil, fmt.Errorf("FCB: unsupported version 0x%08x", f.Version)
	}
	if sum := recordChecksum(b[:FCBSize]); sum != f.Checksum {
		return nil, fmt.Errorf("FCB: checksum 0x%08x, computed 0x%08x", f.Checksum, sum)
	}
	return f, nil
}

// recordChecksum is the ROM's checksum: the inverted byte sum of everything
// after the checksum word.
func recordChecksum(b []byte) uint32 {
	var sum uint32
	for _, c := range b[4:] {
		sum += uint32(c)
	}
	return ^sum
}
