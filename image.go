package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/pflag"

	"nandbcb/bcb"
	"nandbcb/nandsim"
)

/* ===================== Image backend ===================== */

// imageFlags describe the NAND an image file emulates.
type imageFlags struct {
	page          int
	oob           int
	pagesPerBlock int
	size          string
	eccStrength   int
	eccStep       int
	badBlocks     []int
}

func (f *imageFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.page, "page", 2048, "image page size in bytes")
	fs.IntVar(&f.oob, "oob", 64, "image OOB size in bytes")
	fs.IntVar(&f.pagesPerBlock, "pages-per-block", 64, "image pages per erase block")
	fs.StringVar(&f.size, "size", "128m", "image NAND size (e.g. 64m, 1g)")
	fs.IntVar(&f.eccStrength, "ecc-strength", 0, "ECC bits per chunk (0 = derive from OOB size)")
	fs.IntVar(&f.eccStep, "ecc-step", 0, "ECC chunk size (0 = derive from OOB size)")
	fs.IntSliceVar(&f.badBlocks, "bad-blocks", nil, "erase block numbers to mark bad in the image (e.g. 3,7)")
}

func (f *imageFlags) geometry() (bcb.Geometry, error) {
	sz, err := parseSize(f.size)
	if err != nil {
		return bcb.Geometry{}, fmt.Errorf("--size: %w", err)
	}
	return bcb.Geometry{
		PageSize:      f.page,
		OOBSize:       f.oob,
		PagesPerBlock: f.pagesPerBlock,
		ECCStepSize:   f.eccStep,
		ECCStrength:   f.eccStrength,
		Size:          sz,
	}, nil
}

// imageDevice is a NAND image file; Close writes it back unless it was opened
// read-only.
type imageDevice struct {
	*nandsim.NAND
	path     string
	readOnly bool
}

func (d *imageDevice) Close() error {
	if d.readOnly {
		return nil
	}
	return d.SaveFile(d.path)
}

// openImage loads path, or starts from erased media when create is set and the
// file does not exist yet. Bad blocks are marked after loading.
func openImage(path string, f *imageFlags, create, readOnly bool) (*imageDevice, error) {
	geo, err := f.geometry()
	if err != nil {
		return nil, err
	}
	n, err := nandsim.LoadFile(path, geo)
	if errors.Is(err, fs.ErrNotExist) && create {
		n, err = nandsim.New(geo)
	}
	if err != nil {
		return nil, err
	}
	for _, b := range f.badBlocks {
		if b < 0 || int64(b) >= geo.Blocks() {
			return nil, fmt.Errorf("bad block %d outside the image (%d blocks)", b, geo.Blocks())
		}
		if err := n.MarkBad(int64(b) * geo.BlockSize()); err != nil {
			return nil, err
		}
	}
	return &imageDevice{NAND: n, path: path, readOnly: readOnly}, nil
}

// openTarget opens either an MTD device or an image file.
func openTarget(device, image string, f *imageFlags, write bool) (nandDevice, error) {
	switch {
	case device != "" && image != "":
		return nil, fmt.Errorf("choose one of --device or an image")
	case device != "":
		return openNAND(device, write)
	case image != "":
		d, err := openImage(image, f, write, !write)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("choose --device or an image")
}
