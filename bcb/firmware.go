package bcb

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// BootStream assembles what each firmware copy holds: the variant's pre-pad
// region, zero filled with prePad at its head, then payload, zero padded to a
// whole page.
func BootStream(variant RomVariant, payload, prePad []byte, pageSize int) ([]byte, error) {
	if len(prePad) > variant.PrePad() {
		return nil, fmt.Errorf("pre-pad for %s ROM: %w", variant,
			&SizeError{Need: int64(len(prePad)), Have: int64(variant.PrePad())})
	}
	n := variant.PrePad() + len(payload)
	stream := make([]byte, alignUp(n, pageSize))
	copy(stream, prePad)
	copy(stream[variant.PrePad():], payload)
	return stream, nil
}

// CopyResult is the outcome of writing one firmware copy.
type CopyResult struct {
	Index         int
	Start         int64
	Last          int64 // offset of the last page written, -1 if none
	PagesWritten  int
	SkippedBlocks []int64
	Err           error
}

// FirmwareWriter writes a boot stream into both firmware copies, skipping bad
// blocks.
type FirmwareWriter struct {
	dev  Device
	geo  Geometry
	opts WriteOptions
}

// NewFirmwareWriter returns a FirmwareWriter for dev described by geo.
func NewFirmwareWriter(dev Device, geo Geometry, opts WriteOptions) *FirmwareWriter {
	return &FirmwareWriter{dev: dev, geo: geo, opts: opts}
}

// Write writes stream, which must be a whole number of pages, into each of
// copies in turn. A failed copy does not stop the next one; the returned error
// joins a *CopyError per failed copy.
func (w *FirmwareWriter) Write(stream []byte, copies [2]FirmwareCopy) ([2]CopyResult, error) {
	var res [2]CopyResult
	if len(stream)%w.geo.PageSize != 0 {
		return res, fmt.Errorf("boot stream of %d bytes is not a whole number of %d byte pages", len(stream), w.geo.PageSize)
	}
	var errs []error
	for i, fc := range copies {
		res[i] = w.writeCopy(stream, fc)
		if res[i].Err != nil {
			glog.Warningf("firmware copy %d: %v", fc.Index, res[i].Err)
			errs = append(errs, &CopyError{Index: fc.Index, Err: res[i].Err})
		}
	}
	return res, errors.Join(errs...)
}

func (w *FirmwareWriter) writeCopy(stream []byte, fc FirmwareCopy) CopyResult {
	phase := PhaseFirmware1
	if fc.Index == 2 {
		phase = PhaseFirmware2
	}
	page := w.geo.PageSize
	bs := w.geo.BlockSize()
	res := CopyResult{Index: fc.Index, Start: fc.Start, Last: -1}

	off := fc.Start
	for pos := 0; pos < len(stream); {
		if off >= fc.End {
			res.Err = &SizeError{Copy: fc.Index, Need: int64(len(stream)), Have: int64(pos)}
			return res
		}
		if off%bs == 0 {
			bad, err := w.dev.IsBad(off)
			if err != nil {
				res.Err = &ReadError{Offset: off, Err: err}
				return res
			}
			if bad {
				glog.Warningf("firmware copy %d: block at 0x%x is bad, skipped", fc.Index, off)
				res.SkippedBlocks = append(res.SkippedBlocks, off)
				w.opts.report(Progress{Phase: phase, Event: EventSkippedBad, Offset: off, Size: bs})
				off += bs
				continue
			}
			if !w.opts.DryRun {
				w.opts.infof("erase block at 0x%x", off)
				if err := w.dev.EraseBlock(off); err != nil {
					res.Err = &EraseError{Offset: off, Err: err}
					w.opts.report(Progress{Phase: phase, Event: EventFailed, Offset: off, Size: bs})
					return res
				}
			}
		}

		if err := w.writePage(off, stream[pos:pos+page]); err != nil {
			res.Err = err
			w.opts.report(Progress{Phase: phase, Event: EventFailed, Offset: off, Size: int64(page)})
			return res
		}
		ev := EventWritten
		if w.opts.DryRun {
			ev = EventPlanned
		}
		w.opts.report(Progress{Phase: phase, Event: ev, Offset: off, Size: int64(page)})
		res.Last = off
		res.PagesWritten++
		pos += page
		off += int64(page)
	}
	return res
}

func (w *FirmwareWriter) writePage(off int64, data []byte) error {
	if w.opts.DryRun {
		return nil
	}
	if err := w.dev.WritePage(off, data, nil, false); err != nil {
		return &WriteError{Offset: off, Err: err}
	}
	got, _, err := w.dev.ReadPage(off, false)
	if err != nil {
		return &ReadError{Offset: off, Err: err}
	}
	return comparePage(off, data, got)
}
