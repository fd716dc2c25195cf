package bcb

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

/* ===================== Redundancy configuration ===================== */

// Timing is the NAND timing quadruplet the ROM programs before reading firmware.
type Timing struct {
	DataSetup   uint8
	DataHold    uint8
	AddrSetup   uint8
	SampleDelay uint8
}

// DefaultTiming is safe for every ONFI mode 0 device.
var DefaultTiming = Timing{DataSetup: 80, DataHold: 60, AddrSetup: 25, SampleDelay: 6}

// RedundancyConfig describes how the BCB search areas are laid out.
type RedundancyConfig struct {
	// SearchExponent gives 2^SearchExponent strides per search area.
	SearchExponent int
	// PagesPerStride is the distance between two BCB copies.
	PagesPerStride int
	// ChipCount is 1 or 2; every chip gets its own FCB and DBBT search area.
	ChipCount int
	// SecondaryOffset, if non-zero, is the partition relative start of the
	// second firmware copy.
	SecondaryOffset int64
	// Timing overrides DefaultTiming.
	Timing *Timing
}

// DefaultRedundancy matches the i.MX ROM defaults for a single chip with 64
// page blocks.
func DefaultRedundancy() RedundancyConfig {
	return RedundancyConfig{SearchExponent: 2, PagesPerStride: 64, ChipCount: 1}
}

func (r RedundancyConfig) timing() Timing {
	if r.Timing != nil {
		return *r.Timing
	}
	return DefaultTiming
}

const maxSearchExponent = 8

// Validate reports a GeometryError for settings the ROM cannot search.
func (r RedundancyConfig) Validate() error {
	switch {
	case r.SearchExponent < 0 || r.SearchExponent > maxSearchExponent:
		return &GeometryError{Reason: fmt.Sprintf("search exponent %d out of range 0..%d", r.SearchExponent, maxSearchExponent)}
	case r.PagesPerStride <= 0:
		return &GeometryError{Reason: fmt.Sprintf("invalid stride of %d pages", r.PagesPerStride)}
	case r.ChipCount != 1 && r.ChipCount != 2:
		return &GeometryError{Reason: fmt.Sprintf("chip count must be 1 or 2, got %d", r.ChipCount)}
	}
	return nil
}

/* ===================== Layout ===================== */

// Kind is the BCB record type stored in a search area.
type Kind int

const (
	KindFCB Kind = iota
	KindDBBT
)

func (k Kind) String() string {
	if k == KindDBBT {
		return "DBBT"
	}
	return "FCB"
}

// SearchArea is one of the regions the ROM scans stride by stride for a valid
// BCB record.
type SearchArea struct {
	Kind       Kind
	Chip       int
	Start      int64
	Strides    int
	StrideSize int64
}

// StrideOffset returns the absolute offset of stride i.
func (a SearchArea) StrideOffset(i int) int64 {
	return a.Start + int64(i)*a.StrideSize
}

// End returns the first offset past the search area.
func (a SearchArea) End() int64 {
	return a.StrideOffset(a.Strides)
}

// FirmwareCopy is one of the two on-media firmware instances.
type FirmwareCopy struct {
	Index int   // 1 or 2
	Start int64 // absolute offset of the first page
	End   int64 // first offset of the next structure
	Pages int   // pages in the boot stream
}

// Layout is the placement of every structure in the partition.
type Layout struct {
	Partition       Partition
	PayloadSize     int64
	StreamSize      int64 // payload plus pre-pad
	StrideSize      int64
	SearchAreaSize  int64
	MaxFirmwareSize int64
	FCBAreas        []SearchArea
	DBBTAreas       []SearchArea
	Firmware        [2]FirmwareCopy
}

// ComputeLayout places the search areas and both firmware copies of a boot
// stream of payloadSize bytes inside part.
func ComputeLayout(geo Geometry, red RedundancyConfig, part Partition, payloadSize int64, variant RomVariant) (*Layout, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if err := red.Validate(); err != nil {
		return nil, err
	}
	switch {
	case part.Offset < 0 || part.Size <= 0 || part.Offset+part.Size > geo.Size:
		return nil, &GeometryError{Reason: fmt.Sprintf("partition 0x%x+0x%x outside device of 0x%x bytes", part.Offset, part.Size, geo.Size)}
	case part.Offset%geo.BlockSize() != 0 || part.Size%geo.BlockSize() != 0:
		return nil, &GeometryError{Reason: fmt.Sprintf("partition 0x%x+0x%x is not block aligned", part.Offset, part.Size)}
	}

	l := &Layout{
		Partition:   part,
		PayloadSize: payloadSize,
		StreamSize:  payloadSize + int64(variant.PrePad()),
		StrideSize:  int64(red.PagesPerStride) * int64(geo.PageSize),
	}
	l.SearchAreaSize = int64(1<<red.SearchExponent) * l.StrideSize
	if 2*l.SearchAreaSize >= part.Size {
		return nil, &GeometryError{Reason: fmt.Sprintf("partition of %d bytes cannot hold two %d byte search areas", part.Size, l.SearchAreaSize)}
	}

	bs := geo.BlockSize()
	fw1 := alignUp(2*l.SearchAreaSize, bs)
	fw2 := fw1 + alignDown((part.Size-fw1)/2, bs)
	if red.SecondaryOffset != 0 {
		switch {
		case red.SecondaryOffset%bs != 0:
			return nil, &GeometryError{Reason: fmt.Sprintf("secondary offset 0x%x is not block aligned", red.SecondaryOffset)}
		case red.SecondaryOffset <= fw1 || red.SecondaryOffset >= part.Size:
			return nil, &GeometryError{Reason: fmt.Sprintf("secondary offset 0x%x is not between copy 1 at 0x%x and the partition end", red.SecondaryOffset, fw1)}
		}
		fw2 = red.SecondaryOffset
	}
	l.MaxFirmwareSize = alignDown(min(fw2-fw1, part.Size-fw2), bs)
	if l.MaxFirmwareSize <= 0 {
		return nil, &GeometryError{Reason: fmt.Sprintf("no whole erase block left for firmware in %d bytes", part.Size)}
	}
	if l.StreamSize >= l.MaxFirmwareSize {
		return nil, &SizeError{Need: l.StreamSize, Have: l.MaxFirmwareSize}
	}

	// A copy may run on past MaxFirmwareSize up to the next structure.
	pages := int(divRoundUp(l.StreamSize, int64(geo.PageSize)))
	l.Firmware[0] = FirmwareCopy{Index: 1, Start: part.Offset + fw1, End: part.Offset + fw2, Pages: pages}
	l.Firmware[1] = FirmwareCopy{Index: 2, Start: part.Offset + fw2, End: part.Offset + part.Size, Pages: pages}

	chipSize := geo.Size / int64(red.ChipCount)
	for chip := 0; chip < red.ChipCount; chip++ {
		base := part.Offset + int64(chip)*chipSize
		fcb := SearchArea{Kind: KindFCB, Chip: chip, Start: base, Strides: 1 << red.SearchExponent, StrideSize: l.StrideSize}
		dbbt := fcb
		dbbt.Kind = KindDBBT
		dbbt.Start = base + l.SearchAreaSize
		if dbbt.End() > int64(chip+1)*chipSize {
			return nil, &GeometryError{Reason: fmt.Sprintf("search areas of chip %d run past the end of the chip", chip)}
		}
		for _, fw := range l.Firmware {
			if overlaps(fcb.Start, dbbt.End(), fw.Start, fw.End) {
				return nil, &GeometryError{Reason: fmt.Sprintf("search areas of chip %d overlap firmware copy %d", chip, fw.Index)}
			}
		}
		l.FCBAreas = append(l.FCBAreas, fcb)
		l.DBBTAreas = append(l.DBBTAreas, dbbt)
	}
	return l, nil
}

func overlaps(aStart, aEnd, bStart, bEnd int64) bool {
	return aStart < bEnd && bStart < aEnd
}

func alignDown[T constraints.Integer](v, a T) T {
	return v - v%a
}

func alignUp[T constraints.Integer](v, a T) T {
	return alignDown(v+a-1, a)
}

func divRoundUp[T constraints.Integer](v, d T) T {
	return (v + d - 1) / d
}
