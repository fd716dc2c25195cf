package bcb

import (
	"bytes"
	"fmt"
)

// Raw FCB page layout: the ROM reads the FCB without the BCH engine, protected
// by a Hamming(13,8) code instead. The first fcbMetaGap bytes stand in for the
// BCH metadata, followed by fcbDataSize bytes of FCB and one parity byte per
// data byte.
const (
	fcbMetaGap   = 12
	fcbDataSize  = 512
	fcbParityOff = fcbMetaGap + fcbDataSize
	fcbRawSpan   = fcbParityOff + fcbDataSize
)

func bit(d byte, n uint) byte { return (d >> n) & 1 }

// hammingParity returns the 5 parity bits of the Hamming(13,8) code for d.
func hammingParity(d byte) byte {
	var p byte
	p |= (bit(d, 6) ^ bit(d, 5) ^ bit(d, 3) ^ bit(d, 2)) << 0
	p |= (bit(d, 7) ^ bit(d, 5) ^ bit(d, 4) ^ bit(d, 2) ^ bit(d, 1)) << 1
	p |= (bit(d, 7) ^ bit(d, 6) ^ bit(d, 5) ^ bit(d, 1) ^ bit(d, 0)) << 2
	p |= (bit(d, 7) ^ bit(d, 4) ^ bit(d, 3) ^ bit(d, 0)) << 3
	p |= (bit(d, 6) ^ bit(d, 4) ^ bit(d, 3) ^ bit(d, 2) ^ bit(d, 1) ^ bit(d, 0)) << 4
	return p
}

func encodeHamming(src, parity []byte) {
	for i, d := range src {
		parity[i] = hammingParity(d)
	}
}

// blankOOB is an unprogrammed OOB area, which keeps the factory bad block
// marker of the block intact.
func blankOOB(size int) []byte {
	return bytes.Repeat([]byte{0xff}, size)
}

// EncodeFCBPage lays out f as the raw page the ROM reads.
func EncodeFCBPage(f *FCB, geo Geometry) (RawPage, error) {
	if geo.PageSize < fcbRawSpan {
		return RawPage{}, &GeometryError{Reason: fmt.Sprintf("page size %d cannot hold a %d byte FCB image", geo.PageSize, fcbRawSpan)}
	}
	rec, err := f.MarshalBinary()
	if err != nil {
		return RawPage{}, err
	}
	data := make([]byte, geo.PageSize)
	copy(data[fcbMetaGap:fcbParityOff], rec[:fcbDataSize])
	encodeHamming(data[fcbMetaGap:fcbParityOff], data[fcbParityOff:fcbRawSpan])
	return RawPage{Data: data, OOB: blankOOB(geo.OOBSize)}, nil
}

// DecodeFCBPage checks the parity of a raw FCB page and unpacks the record.
func DecodeFCBPage(p RawPage) (*FCB, error) {
	if len(p.Data) < fcbRawSpan {
		return nil, fmt.Errorf("FCB: raw page of %d bytes is too short", len(p.Data))
	}
	parity := make([]byte, fcbDataSize)
	encodeHamming(p.Data[fcbMetaGap:fcbParityOff], parity)
	if !bytes.Equal(parity, p.Data[fcbParityOff:fcbRawSpan]) {
		return nil, fmt.Errorf("FCB: parity mismatch")
	}
	// Everything past the first 512 bytes of the record is reserved and zero.
	rec := make([]byte, FCBSize)
	copy(rec, p.Data[fcbMetaGap:fcbParityOff])
	return UnmarshalFCB(rec)
}

// EncodeDBBTPage lays out d at the start of an otherwise zero page.
func EncodeDBBTPage(d *DBBT, geo Geometry) (RawPage, error) {
	rec, err := d.MarshalBinary()
	if err != nil {
		return RawPage{}, err
	}
	data := make([]byte, geo.PageSize)
	copy(data, rec)
	return RawPage{Data: data, OOB: blankOOB(geo.OOBSize)}, nil
}

// DecodeDBBTPage unpacks the DBBT header of a raw page.
func DecodeDBBTPage(p RawPage) (*DBBT, error) {
	return UnmarshalDBBT(p.Data)
}
