package main

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nandbcb/bcb"
	"nandbcb/nandsim"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "2048", want: 2048},
		{in: "128k", want: 128 << 10},
		{in: "64M", want: 64 << 20},
		{in: "1g", want: 1 << 30},
		{in: "1.5m", want: 3 << 19},
		{in: "512b", want: 512},
		{in: "0x2000000", want: 32 << 20},
		{in: " 4k ", want: 4096},
		{in: "", wantErr: true},
		{in: "lots", wantErr: true},
		{in: "-1k", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHuman(t *testing.T) {
	for in, want := range map[int64]string{
		512:       "512B",
		128 << 10: "128K",
		64 << 20:  "64M",
		2 << 30:   "2G",
	} {
		if got := human(in); got != want {
			t.Errorf("human(%d) = %q, want %q", in, got, want)
		}
	}
}

const procMTD = `dev:    size   erasesize  name
mtd0: 00400000 00020000 "boot"
mtd1: 07c00000 00020000 "root fs"
`

func TestParseProcMTD(t *testing.T) {
	got, err := parseProcMTD(strings.NewReader(procMTD))
	if err != nil {
		t.Fatal(err)
	}
	want := []mtdPartition{
		{Dev: "mtd0", Size: 4 << 20, EraseSize: 128 << 10, Name: "boot"},
		{Dev: "mtd1", Size: 124 << 20, EraseSize: 128 << 10, Name: "root fs"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseProcMTD mismatch (-want +got):\n%s", diff)
	}
	if got[0].Path() != "/dev/mtd0" {
		t.Errorf("Path() = %q", got[0].Path())
	}

	if _, err := parseProcMTD(strings.NewReader("mtd0: zz 00020000 \"boot\"\n")); err == nil {
		t.Error("bad size accepted")
	}
	if _, err := parseProcMTD(strings.NewReader("mtd0: 00400000\n")); err == nil {
		t.Error("short line accepted")
	}
}

func TestMTDMountPoint(t *testing.T) {
	mounts := `/dev/root / ext4 rw 0 0
/dev/mtdblock1 /data jffs2 rw 0 0
mtd:config /config jffs2 ro 0 0
`
	parts := []mtdPartition{
		{Dev: "mtd0", Name: "boot"},
		{Dev: "mtd1", Name: "data"},
		{Dev: "mtd2", Name: "config"},
	}
	want := []string{"", "/data", "/config"}
	for i, p := range parts {
		if got := mtdMountPoint(strings.NewReader(mounts), p); got != want[i] {
			t.Errorf("mtdMountPoint(%s) = %q, want %q", p.Dev, got, want[i])
		}
	}
}

func TestMountConflict(t *testing.T) {
	mounts := `/dev/mtdblock1 /data jffs2 rw 0 0
mtd:config /config jffs2 ro 0 0
`
	parts := []mtdPartition{
		{Dev: "mtd0", Name: "boot"},
		{Dev: "mtd1", Name: "data"},
		{Dev: "mtd2", Name: "config"},
	}
	for path, busy := range map[string]bool{
		"/dev/mtd0":   false,
		"/dev/mtd1":   true,
		"/dev/mtd2ro": true,
		"/dev/mtd9":   false,
	} {
		err := mountConflict(path, parts, strings.NewReader(mounts))
		if (err != nil) != busy {
			t.Errorf("mountConflict(%s) = %v, want mounted %v", path, err, busy)
		}
	}
}

func testImageFlags(size string, bad ...int) *imageFlags {
	return &imageFlags{page: 2048, oob: 64, pagesPerBlock: 64, size: size, badBlocks: bad}
}

func TestOpenImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nand.img")

	if _, err := openImage(path, testImageFlags("8m"), false, true); err == nil {
		t.Error("missing image opened without create")
	}
	if _, err := openImage(path, testImageFlags("8m", 64), true, false); err == nil {
		t.Error("bad block past the end accepted")
	}

	d, err := openImage(path, testImageFlags("8m", 3), true, false)
	if err != nil {
		t.Fatal(err)
	}
	if bad, _ := d.IsBad(3 * 128 << 10); !bad {
		t.Error("block 3 not marked bad")
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(4096 * 2112); st.Size() != want {
		t.Errorf("image is %d bytes, want %d", st.Size(), want)
	}

	// The bad block marker is stored in the image.
	d, err = openImage(path, testImageFlags("8m"), false, true)
	if err != nil {
		t.Fatal(err)
	}
	if bad, _ := d.IsBad(3 * 128 << 10); !bad {
		t.Error("block 3 not bad after reload")
	}
}

func TestScanFCB(t *testing.T) {
	geo := bcb.Geometry{PageSize: 2048, OOBSize: 64, PagesPerBlock: 64, Size: 8 << 20}
	n, err := nandsim.New(geo)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.MarkBad(0); err != nil {
		t.Fatal(err)
	}
	r, err := bcb.WriteBootStream(n, bcb.Partition{Size: geo.Size}, bcb.DefaultRedundancy(), bcb.RomStandard, make([]byte, 4096), nil, bcb.WriteOptions{})
	if err != nil {
		t.Fatalf("WriteBootStream: %v", err)
	}

	scan := scanFCB(n, 0, 4, 128<<10)
	if !scan[0].Bad {
		t.Error("stride 0 not reported bad")
	}
	f, off := firstFCB(scan)
	if f == nil || off != 128<<10 {
		t.Fatalf("first FCB at 0x%x", off)
	}
	want, _ := r.FCB.MarshalBinary()
	got, _ := f.MarshalBinary()
	if !bytes.Equal(want, got) {
		t.Error("decoded FCB differs from the one written")
	}

	// Erased media holds no FCB.
	if f, _ := firstFCB(scanFCB(n, 4<<20, 4, 128<<10)); f != nil {
		t.Error("FCB found in erased blocks")
	}
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root.Execute()
}

func TestWriteCommand(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "nand.img")
	fw := filepath.Join(dir, "u-boot.imx")
	payload := make([]byte, 100<<10)
	rand.New(rand.NewSource(1)).Read(payload)
	if err := os.WriteFile(fw, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	// Block 8 is where copy 1 would start.
	if err := runCLI(t, "write", "--out", img, "--payload", fw, "--size", "8m", "--bad-blocks", "8"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := runCLI(t, "dump", "--in", img, "--size", "8m"); err != nil {
		t.Fatalf("dump: %v", err)
	}
	for _, exp := range []string{"-1", "9"} {
		if err := runCLI(t, "dump", "--in", img, "--size", "8m", "--search-exponent", exp); err == nil {
			t.Errorf("dump --search-exponent %s: no error", exp)
		}
	}

	geo := bcb.Geometry{PageSize: 2048, OOBSize: 64, PagesPerBlock: 64, Size: 8 << 20}
	n, err := nandsim.LoadFile(img, geo)
	if err != nil {
		t.Fatal(err)
	}
	for _, start := range []int64{9 * 128 << 10, 36 * 128 << 10} {
		got, _, err := n.ReadPage(start, false)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, payload[:2048]) {
			t.Errorf("first firmware page at 0x%x does not match the payload", start)
		}
	}
}

func TestWriteCommandFlags(t *testing.T) {
	fw := filepath.Join(t.TempDir(), "fw.bin")
	if err := os.WriteFile(fw, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	tests := [][]string{
		{"write", "--payload", fw},
		{"write", "--payload", fw, "--device", "/dev/mtd0"},
		{"write", "--payload", fw, "--device", "/dev/mtd0", "--out", "x.img"},
		{"write", "--payload", fw, "--out", "x.img", "--rom", "hab"},
		{"write", "--out", "x.img"},
	}
	for _, args := range tests {
		if err := runCLI(t, args...); err == nil {
			t.Errorf("%v: no error", args)
		}
	}
}

func TestLayoutCommand(t *testing.T) {
	if err := runCLI(t, "layout", "--size", "64m", "--payload-size", "512k"); err != nil {
		t.Errorf("layout: %v", err)
	}
	if err := runCLI(t, "layout", "--size", "64m", "--payload-size", "40m"); err == nil {
		t.Error("oversized payload accepted")
	}
}
