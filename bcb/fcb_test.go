package bcb

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func buildTestFCB(t *testing.T, variant RomVariant) (*FCB, *Layout) {
	t.Helper()
	red := DefaultRedundancy()
	l, err := ComputeLayout(geo2k, red, Partition{Size: 64 * mib}, 512*kib, variant)
	if err != nil {
		t.Fatal(err)
	}
	m := MarkerPosition(geo2k.Strength(), geo2k.ChunkSize(), geo2k.PageSize, MetadataBytes)
	return BuildFCB(geo2k, red, l, m, variant), l
}

func TestFCBLayout(t *testing.T) {
	f, _ := buildTestFCB(t, RomStandard)
	b, err := f.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != FCBSize {
		t.Fatalf("record is %d bytes, want %d", len(b), FCBSize)
	}
	if got := string(b[4:8]); got != "FCB " {
		t.Errorf("fingerprint bytes = %q, want %q", got, "FCB ")
	}
	if got := b[12:16]; !bytes.Equal(got, []byte{80, 60, 25, 6}) {
		t.Errorf("timings = %v", got)
	}

	for _, w := range []struct {
		name string
		off  int
		want uint32
	}{
		{"version", 0x08, FCBVersion},
		{"page size", 0x14, 2048},
		{"total page size", 0x18, 2112},
		{"pages per block", 0x1c, 64},
		{"ecc block N type", 0x2c, 4},
		{"ecc block 0 size", 0x30, 512},
		{"ecc block N size", 0x34, 512},
		{"ecc block 0 type", 0x38, 4},
		{"metadata bytes", 0x3c, 10},
		{"ecc blocks per page", 0x40, 3},
		{"firmware 1 start", 0x68, 512},
		{"firmware 2 start", 0x6c, 16640},
		{"firmware 1 pages", 0x70, 256},
		{"firmware 2 pages", 0x74, 256},
		{"DBBT start", 0x78, 256},
		{"marker byte", 0x7c, 1999},
		{"marker bit", 0x80, 0},
		{"marker phys offset", 0x84, 2048},
		{"BCH type", 0x88, 13},
	} {
		if got := binary.LittleEndian.Uint32(b[w.off:]); got != w.want {
			t.Errorf("%s at 0x%x = %d, want %d", w.name, w.off, got, w.want)
		}
	}
	if tail := b[0x8c:]; !bytes.Equal(tail, make([]byte, len(tail))) {
		t.Error("reserved tail is not zero")
	}
	if got := binary.LittleEndian.Uint32(b); got != recordChecksum(b) {
		t.Errorf("checksum = 0x%08x, want 0x%08x", got, recordChecksum(b))
	}
}

func TestFCBBCHType1KChunks(t *testing.T) {
	geo := Geometry{PageSize: 8192, OOBSize: 744, PagesPerBlock: 128, Size: 256 * mib}
	red := DefaultRedundancy()
	l, err := ComputeLayout(geo, red, Partition{Size: geo.Size}, 512*kib, RomStandard)
	if err != nil {
		t.Fatal(err)
	}
	m := MarkerPosition(geo.Strength(), geo.ChunkSize(), geo.PageSize, MetadataBytes)
	f := BuildFCB(geo, red, l, m, RomStandard)
	if f.BCHType != 14 || f.ECCBlockNSize != 1024 {
		t.Errorf("BCH type %d with %d byte chunks, want 14 with 1024", f.BCHType, f.ECCBlockNSize)
	}
}

func TestFCBPrePadPages(t *testing.T) {
	f, _ := buildTestFCB(t, RomKeyPrePad)
	if f.Firmware1Pages != 257 || f.Firmware2Pages != 257 {
		t.Errorf("firmware pages = %d/%d, want 257", f.Firmware1Pages, f.Firmware2Pages)
	}
}

func TestFCBTimingOverride(t *testing.T) {
	red := DefaultRedundancy()
	red.Timing = &Timing{DataSetup: 10, DataHold: 20, AddrSetup: 30, SampleDelay: 4}
	l, err := ComputeLayout(geo2k, red, Partition{Size: 64 * mib}, 4096, RomStandard)
	if err != nil {
		t.Fatal(err)
	}
	f := BuildFCB(geo2k, red, l, Marker{}, RomStandard)
	if f.DataSetup != 10 || f.DataHold != 20 || f.AddrSetup != 30 || f.SampleDelay != 4 {
		t.Errorf("timings = %d/%d/%d/%d", f.DataSetup, f.DataHold, f.AddrSetup, f.SampleDelay)
	}
}

func TestUnmarshalFCB(t *testing.T) {
	f, _ := buildTestFCB(t, RomStandard)
	b, _ := f.MarshalBinary()

	got, err := UnmarshalFCB(b)
	if err != nil {
		t.Fatalf("UnmarshalFCB: %v", err)
	}
	if again, _ := got.MarshalBinary(); !bytes.Equal(again, b) {
		t.Error("record changed across unmarshal and marshal")
	}

	for _, tc := range []struct {
		name string
		mod  func(b []byte)
		want string
	}{
		{"flipped field", func(b []byte) { b[0x70] ^= 0x01 }, "checksum"},
		{"flipped reserved byte", func(b []byte) { b[0x200] = 0xaa }, "checksum"},
		{"fingerprint", func(b []byte) { b[4] = 'X' }, "fingerprint"},
		{"version", func(b []byte) { b[11] = 2 }, "version"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bad := bytes.Clone(b)
			tc.mod(bad)
			_, err := UnmarshalFCB(bad)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("UnmarshalFCB = %v, want %s error", err, tc.want)
			}
		})
	}

	if _, err := UnmarshalFCB(b[:100]); err == nil {
		t.Error("UnmarshalFCB accepted a short record")
	}
}

func TestDBBT(t *testing.T) {
	b, err := BuildDBBT().MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0, 0, 0, 0,
		'D', 'B', 'B', 'T',
		0, 0, 0, 1,
		0, 0, 0, 0,
		0, 0, 0, 0,
	}
	if !bytes.Equal(b, want) {
		t.Errorf("DBBT = % x, want % x", b, want)
	}
	if _, err := UnmarshalDBBT(b); err != nil {
		t.Errorf("UnmarshalDBBT: %v", err)
	}
	b[5] = 0
	if _, err := UnmarshalDBBT(b); err == nil {
		t.Error("UnmarshalDBBT accepted a bad fingerprint")
	}
}
