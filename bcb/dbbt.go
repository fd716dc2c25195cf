package bcb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	DBBTFingerprint = 0x54424244 // "DBBT"
	DBBTVersion     = 0x01000000

	// DBBTSize is the size of the serialized record.
	DBBTSize = 20
)

// DBBT is the Discovered Bad Block Table header. Bad blocks are skipped while
// writing rather than recorded, so BadBlocks and Pages stay zero.
type DBBT struct {
	Checksum    uint32
	Fingerprint uint32
	Version     uint32
	BadBlocks   uint32
	Pages       uint32 // pages of bad block data following the header
}

// BuildDBBT returns an empty table.
func BuildDBBT() *DBBT {
	return &DBBT{Fingerprint: DBBTFingerprint, Version: DBBTVersion}
}

// MarshalBinary packs the record little-endian into DBBTSize bytes.
func (d *DBBT) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(DBBTSize)
	if err := binary.Write(&buf, binary.LittleEndian, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalDBBT unpacks and validates a serialized DBBT.
func UnmarshalDBBT(b []byte) (*DBBT, error) {
	if len(b) < DBBTSize {
		return nil, fmt.Errorf("DBBT: short record of %d bytes", len(b))
	}
	d := &DBBT{}
	if err := binary.Read(bytes.NewReader(b[:DBBTSize]), binary.LittleEndian, d); err != nil {
		return nil, err
	}
	if d.Fingerprint != DBBTFingerprint {
		return nil, fmt.Errorf("DBBT: bad fingerprint 0x%08x", d.Fingerprint)
	}
	if d.Version != DBBTVersion {
		return nil, fmt.Errorf("DBBT: unsupported version 0x%08x", d.Version)
	}
	return d, nil
}
