package nandsim

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nandbcb/bcb"
)

var testGeo = bcb.Geometry{PageSize: 2048, OOBSize: 64, PagesPerBlock: 4, Size: 8 * 4 * 2048}

func newTestNAND(t *testing.T) *NAND {
	t.Helper()
	n, err := New(testGeo)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func fill(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestNewRejectsBadGeometry(t *testing.T) {
	for _, geo := range []bcb.Geometry{
		{PageSize: 2048, OOBSize: 64, PagesPerBlock: 64},
		{PageSize: 2048, OOBSize: 64, PagesPerBlock: 64, Size: 1000},
		{PageSize: 0, OOBSize: 64, PagesPerBlock: 64, Size: 1 << 20},
	} {
		if _, err := New(geo); err == nil {
			t.Errorf("New(%+v) succeeded", geo)
		}
	}
}

func TestProgramOnlyClearsBits(t *testing.T) {
	n := newTestNAND(t)
	if err := n.WritePage(0, fill(0x0f, 2048), nil, false); err != nil {
		t.Fatal(err)
	}
	if err := n.WritePage(0, fill(0xf3, 2048), nil, false); err != nil {
		t.Fatal(err)
	}
	data, oob, err := n.ReadPage(0, false)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, fill(0x03, 2048)) {
		t.Errorf("data[0] = 0x%02x, want 0x03", data[0])
	}
	if oob != nil {
		t.Errorf("non-raw read returned %d OOB bytes", len(oob))
	}

	if err := n.EraseBlock(0); err != nil {
		t.Fatal(err)
	}
	data, _, _ = n.ReadPage(0, false)
	if !bytes.Equal(data, fill(0xff, 2048)) {
		t.Error("page not erased")
	}
}

func TestRawWriteKeepsOOB(t *testing.T) {
	n := newTestNAND(t)
	oob := fill(0xff, 64)
	oob[5] = 0x5a
	if err := n.WritePage(2048, fill(0, 2048), oob, true); err != nil {
		t.Fatal(err)
	}
	_, got, err := n.ReadPage(2048, true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(oob, got); diff != "" {
		t.Errorf("OOB mismatch (-want +got):\n%s", diff)
	}
}

func TestBadBlocks(t *testing.T) {
	n := newTestNAND(t)
	bs := testGeo.BlockSize()
	for _, b := range []int64{2, 5} {
		if err := n.MarkBad(b * bs); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]int64{2 * bs, 5 * bs}, n.BadBlocks()); diff != "" {
		t.Errorf("BadBlocks mismatch (-want +got):\n%s", diff)
	}
	if bad, _ := n.IsBad(2*bs + 3*2048); !bad {
		t.Error("IsBad on a page inside a bad block = false")
	}
	if bad, _ := n.IsBad(3 * bs); bad {
		t.Error("IsBad on a good block = true")
	}
	if err := n.EraseBlock(5 * bs); !errors.Is(err, ErrBadBlock) {
		t.Errorf("EraseBlock on bad block = %v, want ErrBadBlock", err)
	}
}

func TestAlignmentAndRange(t *testing.T) {
	n := newTestNAND(t)
	if err := n.EraseBlock(2048); err == nil {
		t.Error("EraseBlock accepted an unaligned offset")
	}
	if err := n.WritePage(100, fill(0, 2048), nil, false); err == nil {
		t.Error("WritePage accepted an unaligned offset")
	}
	if err := n.WritePage(0, fill(0, 100), nil, false); err == nil {
		t.Error("WritePage accepted a short page")
	}
	if _, _, err := n.ReadPage(testGeo.Size, false); err == nil {
		t.Error("ReadPage accepted an offset past the device")
	}
}

func TestHooksAndLog(t *testing.T) {
	n := newTestNAND(t)
	boom := errors.New("boom")
	n.EraseHook = func(off int64) error {
		if off == testGeo.BlockSize() {
			return boom
		}
		return nil
	}
	n.ReadHook = func(off int64, data, oob []byte) { data[0] ^= 1 }

	if err := n.EraseBlock(0); err != nil {
		t.Fatal(err)
	}
	if err := n.EraseBlock(testGeo.BlockSize()); !errors.Is(err, boom) {
		t.Errorf("EraseBlock = %v, want hook error", err)
	}
	data, _, _ := n.ReadPage(0, false)
	if data[0] != 0xfe {
		t.Errorf("ReadHook not applied: data[0] = 0x%02x", data[0])
	}

	want := []Op{
		{Kind: OpErase, Offset: 0},
		{Kind: OpErase, Offset: testGeo.BlockSize()},
		{Kind: OpRead, Offset: 0},
	}
	if diff := cmp.Diff(want, n.Log); diff != "" {
		t.Errorf("Log mismatch (-want +got):\n%s", diff)
	}
	if got := n.Mutations(); got != 2 {
		t.Errorf("Mutations() = %d, want 2", got)
	}
}

func TestImageRoundTrip(t *testing.T) {
	n := newTestNAND(t)
	oob := fill(0xff, 64)
	oob[1] = 0x42
	if err := n.WritePage(3*2048, fill(0xa5, 2048), oob, true); err != nil {
		t.Fatal(err)
	}
	if err := n.MarkBad(6 * testGeo.BlockSize()); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := n.Save(&buf); err != nil {
		t.Fatal(err)
	}
	if got, want := int64(buf.Len()), testGeo.Size/2048*int64(testGeo.RawPageSize()); got != want {
		t.Fatalf("image is %d bytes, want %d", got, want)
	}
	if off := 3*testGeo.RawPageSize() + 2048 + 1; buf.Bytes()[off] != 0x42 {
		t.Errorf("OOB byte not stored after page data")
	}

	m, err := Load(bytes.NewReader(buf.Bytes()), testGeo)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(n.Peek(3*2048), m.Peek(3*2048)); diff != "" {
		t.Errorf("page mismatch after load (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(n.BadBlocks(), m.BadBlocks()); diff != "" {
		t.Errorf("bad blocks mismatch after load (-want +got):\n%s", diff)
	}

	if _, err := Load(bytes.NewReader(buf.Bytes()[:100]), testGeo); err == nil {
		t.Error("Load accepted a truncated image")
	}
	if _, err := Load(bytes.NewReader(append(buf.Bytes(), 0)), testGeo); err == nil {
		t.Error("Load accepted an oversized image")
	}
}
