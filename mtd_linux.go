//go:build linux

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"nandbcb/bcb"
)

/* ===================== Linux MTD character device ===================== */

// ioctl numbers and structures from <mtd/mtd-abi.h>
const (
	memGetInfo     = 0x80204D01 // _IOR('M', 1, struct mtd_info_user)
	memGetBadBlock = 0x40084D0B // _IOW('M', 11, __kernel_loff_t)
	mtdFileMode    = 0x4D13     // _IO('M', 19)
	memErase64     = 0x40104D14 // _IOW('M', 20, struct erase_info_user64)
	memReadOOB64   = 0xC0184D16 // _IOWR('M', 22, struct mtd_oob_buf64)
	memWrite       = 0xC0304D18 // _IOWR('M', 24, struct mtd_write_req)

	mtdFileModeNormal = 0
	mtdFileModeRaw    = 3

	mtdOpsPlaceOOB = 0
	mtdOpsRaw      = 2

	mtdNANDFlash    = 4
	mtdMLCNANDFlash = 8
)

type mtdInfoUser struct {
	Type      uint8
	_         [3]uint8
	Flags     uint32
	Size      uint32
	EraseSize uint32
	WriteSize uint32
	OOBSize   uint32
	_         uint64
}

type eraseInfoUser64 struct {
	Start  uint64
	Length uint64
}

type mtdOOBBuf64 struct {
	Start  uint64
	_      uint32
	Length uint32
	UsrPtr uint64
}

type mtdWriteReq struct {
	Start   uint64
	Len     uint64
	OOBLen  uint64
	UsrData uint64
	UsrOOB  uint64
	Mode    uint8
	_       [7]uint8
}

// mtdDevice drives /dev/mtdN through the mtdchar ioctls.
type mtdDevice struct {
	f    *os.File
	name string
	raw  bool // current file mode
}

func openMTD(path string, write bool) (*mtdDevice, error) {
	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	d := &mtdDevice{f: f, name: strings.TrimSuffix(filepath.Base(path), "ro")}
	if _, err := d.info(); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

func (d *mtdDevice) Close() error {
	return d.f.Close()
}

func (d *mtdDevice) ioctl(req uintptr, arg unsafe.Pointer) (uintptr, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return r, errno
	}
	return r, nil
}

func (d *mtdDevice) info() (mtdInfoUser, error) {
	var mi mtdInfoUser
	if _, err := d.ioctl(memGetInfo, unsafe.Pointer(&mi)); err != nil {
		return mi, fmt.Errorf("MEMGETINFO: %w", err)
	}
	if mi.Type != mtdNANDFlash && mi.Type != mtdMLCNANDFlash {
		return mi, fmt.Errorf("%s is not a NAND device (MTD type %d)", d.name, mi.Type)
	}
	return mi, nil
}

// sysfsInt reads an integer attribute of the device, 0 if it is missing.
func (d *mtdDevice) sysfsInt(attr string) int {
	b, err := os.ReadFile(filepath.Join("/sys/class/mtd", d.name, attr))
	if err != nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return v
}

// Geometry asks the driver every time; nothing is cached.
func (d *mtdDevice) Geometry() bcb.Geometry {
	mi, err := d.info()
	if err != nil {
		return bcb.Geometry{}
	}
	g := bcb.Geometry{
		PageSize:    int(mi.WriteSize),
		OOBSize:     int(mi.OOBSize),
		ECCStepSize: d.sysfsInt("ecc_step_size"),
		ECCStrength: d.sysfsInt("ecc_strength"),
		Size:        int64(mi.Size),
	}
	if mi.WriteSize != 0 {
		g.PagesPerBlock = int(mi.EraseSize / mi.WriteSize)
	}
	// MTD reports a 64 bit size through sysfs only.
	if sz := d.sysfsInt("size"); sz > 0 {
		g.Size = int64(sz)
	}
	return g
}

func (d *mtdDevice) IsBad(off int64) (bool, error) {
	r, err := d.ioctl(memGetBadBlock, unsafe.Pointer(&off))
	if err != nil {
		return false, fmt.Errorf("MEMGETBADBLOCK: %w", err)
	}
	return r != 0, nil
}

func (d *mtdDevice) EraseBlock(off int64) error {
	mi, err := d.info()
	if err != nil {
		return err
	}
	ei := eraseInfoUser64{Start: uint64(off), Length: uint64(mi.EraseSize)}
	if _, err := d.ioctl(memErase64, unsafe.Pointer(&ei)); err != nil {
		return fmt.Errorf("MEMERASE64: %w", err)
	}
	return nil
}

func (d *mtdDevice) WritePage(off int64, data, oob []byte, raw bool) error {
	req := mtdWriteReq{
		Start:   uint64(off),
		Len:     uint64(len(data)),
		UsrData: uint64(uintptr(unsafe.Pointer(&data[0]))),
		Mode:    mtdOpsPlaceOOB,
	}
	if raw {
		req.Mode = mtdOpsRaw
		if len(oob) > 0 {
			req.OOBLen = uint64(len(oob))
			req.UsrOOB = uint64(uintptr(unsafe.Pointer(&oob[0])))
		}
	}
	_, err := d.ioctl(memWrite, unsafe.Pointer(&req))
	runtime.KeepAlive(data)
	runtime.KeepAlive(oob)
	if err != nil {
		return fmt.Errorf("MEMWRITE: %w", err)
	}
	return nil
}

func (d *mtdDevice) setMode(raw bool) error {
	if d.raw == raw {
		return nil
	}
	mode := mtdFileModeNormal
	if raw {
		mode = mtdFileModeRaw
	}
	if err := unix.IoctlSetInt(int(d.f.Fd()), mtdFileMode, mode); err != nil {
		return fmt.Errorf("MTDFILEMODE: %w", err)
	}
	d.raw = raw
	return nil
}

func (d *mtdDevice) ReadPage(off int64, raw bool) ([]byte, []byte, error) {
	mi, err := d.info()
	if err != nil {
		return nil, nil, err
	}
	if err := d.setMode(raw); err != nil {
		return nil, nil, err
	}
	data := make([]byte, mi.WriteSize)
	n, err := unix.Pread(int(d.f.Fd()), data, off)
	if err != nil {
		return nil, nil, fmt.Errorf("pread: %w", err)
	}
	if n != len(data) {
		return nil, nil, fmt.Errorf("short read of %d bytes at 0x%x", n, off)
	}
	if !raw {
		return data, nil, nil
	}

	oob := make([]byte, mi.OOBSize)
	ob := mtdOOBBuf64{Start: uint64(off), Length: uint32(len(oob)), UsrPtr: uint64(uintptr(unsafe.Pointer(&oob[0])))}
	_, err = d.ioctl(memReadOOB64, unsafe.Pointer(&ob))
	runtime.KeepAlive(oob)
	if err != nil {
		return nil, nil, fmt.Errorf("MEMREADOOB64: %w", err)
	}
	return data, oob, nil
}

// openNAND opens an MTD device for the write and dump commands.
func openNAND(path string, write bool) (nandDevice, error) {
	d, err := openMTD(path, write)
	if err != nil {
		return nil, err
	}
	return d, nil
}
