package bcb

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// Report describes everything a boot stream write computed and did.
type Report struct {
	Geometry Geometry
	Layout   *Layout
	Marker   Marker
	FCB      *FCB
	DBBT     *DBBT
	Commit   *CommitReport
	Copies   [2]CopyResult
	// FirmwareSkipped is set when no firmware was written because a BCB kind
	// had no good copy.
	FirmwareSkipped bool
}

// WriteBootStream makes part of dev bootable: it lays out the partition, builds
// the FCB and DBBT, commits them to every stride of their search areas and
// writes payload twice. prePad is the caller's content for the pre-pad region
// of RomKeyPrePad and must be empty for RomStandard.
//
// The geometry is read from dev on every call. Any failure, including a single
// failed stride, makes the returned error non-nil; the Report is still returned
// once the layout has been computed.
func WriteBootStream(dev Device, part Partition, red RedundancyConfig, variant RomVariant, payload, prePad []byte, opts WriteOptions) (*Report, error) {
	geo := dev.Geometry()
	l, err := ComputeLayout(geo, red, part, int64(len(payload)), variant)
	if err != nil {
		return nil, err
	}
	stream, err := BootStream(variant, payload, prePad, geo.PageSize)
	if err != nil {
		return nil, err
	}

	r := &Report{Geometry: geo, Layout: l}
	r.Marker = MarkerPosition(geo.Strength(), geo.ChunkSize(), geo.PageSize, MetadataBytes)
	r.FCB = BuildFCB(geo, red, l, r.Marker, variant)
	r.DBBT = BuildDBBT()
	opts.infof("%s: marker at byte %d bit %d, firmware at 0x%x and 0x%x, %d pages",
		geo, r.Marker.Byte, r.Marker.Bit, l.Firmware[0].Start, l.Firmware[1].Start, l.Firmware[0].Pages)

	fcbPage, err := EncodeFCBPage(r.FCB, geo)
	if err != nil {
		return r, err
	}
	dbbtPage, err := EncodeDBBTPage(r.DBBT, geo)
	if err != nil {
		return r, err
	}

	r.Commit, err = NewCommitter(dev, geo, opts).Commit(fcbPage, dbbtPage, l.FCBAreas, l.DBBTAreas)
	errs := []error{err}
	for _, k := range []Kind{KindFCB, KindDBBT} {
		if r.Commit.Good(k) == 0 {
			r.FirmwareSkipped = true
			errs = append(errs, fmt.Errorf("%s: %w", k, ErrNoBCB))
		}
	}
	if r.FirmwareSkipped {
		glog.Warningf("not writing firmware: %v", errors.Join(errs[1:]...))
		return r, errors.Join(errs...)
	}

	r.Copies, err = NewFirmwareWriter(dev, geo, opts).Write(stream, l.Firmware)
	errs = append(errs, err)
	return r, errors.Join(errs...)
}
