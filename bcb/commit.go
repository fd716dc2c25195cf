package bcb

import (
	"errors"

	"github.com/golang/glog"
)

// StrideStatus is the outcome of one stride of a search area.
type StrideStatus int

const (
	StrideWritten StrideStatus = iota
	StrideSkippedBad
	StrideFailed
	StridePlanned // dry run
)

func (s StrideStatus) String() string {
	switch s {
	case StrideWritten:
		return "written"
	case StrideSkippedBad:
		return "skipped (bad block)"
	case StrideFailed:
		return "failed"
	case StridePlanned:
		return "planned"
	}
	return "unknown"
}

// StrideResult records what happened to one stride.
type StrideResult struct {
	Kind   Kind
	Chip   int
	Stride int
	Offset int64
	Status StrideStatus
	Err    error
}

// CommitReport is the per stride outcome of a commit.
type CommitReport struct {
	Strides []StrideResult
}

// Good returns the number of verified copies of kind.
func (r *CommitReport) Good(kind Kind) int {
	n := 0
	for _, s := range r.Strides {
		if s.Kind == kind && (s.Status == StrideWritten || s.Status == StridePlanned) {
			n++
		}
	}
	return n
}

// Committer writes BCB records into every stride of their search areas.
type Committer struct {
	dev  Device
	geo  Geometry
	opts WriteOptions
}

// NewCommitter returns a Committer for dev described by geo.
func NewCommitter(dev Device, geo Geometry, opts WriteOptions) *Committer {
	return &Committer{dev: dev, geo: geo, opts: opts}
}

// Commit writes fcb into every stride of fcbAreas and dbbt into every stride of
// dbbtAreas. Strides are independent: a failed stride is recorded and the next
// one is attempted, in the same area and in all remaining areas. The returned
// error joins every stride failure.
func (c *Committer) Commit(fcb, dbbt RawPage, fcbAreas, dbbtAreas []SearchArea) (*CommitReport, error) {
	r := &CommitReport{}
	var errs []error
	for _, a := range fcbAreas {
		errs = append(errs, c.commitArea(r, a, fcb)...)
	}
	for _, a := range dbbtAreas {
		errs = append(errs, c.commitArea(r, a, dbbt)...)
	}
	return r, errors.Join(errs...)
}

func (c *Committer) commitArea(r *CommitReport, a SearchArea, page RawPage) []error {
	phase := PhaseFCB
	if a.Kind == KindDBBT {
		phase = PhaseDBBT
	}
	bs := c.geo.BlockSize()
	failed := map[int64]error{} // blocks that could not be erased
	var errs []error

	for i := 0; i < a.Strides; i++ {
		off := a.StrideOffset(i)
		block := alignDown(off, bs)
		res := StrideResult{Kind: a.Kind, Chip: a.Chip, Stride: i, Offset: off}
		progress := Progress{Phase: phase, Offset: off, Size: a.StrideSize}

		if err, ok := failed[block]; ok {
			res.Status, res.Err = StrideFailed, err
			r.Strides = append(r.Strides, res)
			progress.Event = EventFailed
			c.opts.report(progress)
			continue
		}

		err := c.commitStride(off, block, page)
		switch {
		case errors.Is(err, errBadBlock):
			glog.Warningf("%s chip %d stride %d: block at 0x%x is bad, skipped", a.Kind, a.Chip, i, block)
			res.Status = StrideSkippedBad
			progress.Event = EventSkippedBad
		case err != nil:
			err = &StrideError{Kind: a.Kind, Chip: a.Chip, Stride: i, Err: err}
			glog.Warning(err)
			if errors.Is(err, ErrErase) {
				failed[block] = err
			}
			res.Status, res.Err = StrideFailed, err
			errs = append(errs, err)
			progress.Event = EventFailed
		case c.opts.DryRun:
			res.Status = StridePlanned
			progress.Event = EventPlanned
		default:
			res.Status = StrideWritten
			progress.Event = EventWritten
		}
		r.Strides = append(r.Strides, res)
		c.opts.report(progress)
	}
	return errs
}

var errBadBlock = errors.New("bad block")

func (c *Committer) commitStride(off, block int64, page RawPage) error {
	bad, err := c.dev.IsBad(block)
	if err != nil {
		return &ReadError{Offset: block, Err: err}
	}
	if bad {
		return errBadBlock
	}
	if c.opts.DryRun {
		c.opts.infof("dry run: would write BCB page at 0x%x", off)
		return nil
	}

	if off == block {
		c.opts.infof("erase block at 0x%x", block)
		if err := c.dev.EraseBlock(block); err != nil {
			return &EraseError{Offset: block, Err: err}
		}
	}
	c.opts.infof("write raw BCB page at 0x%x", off)
	if err := c.dev.WritePage(off, page.Data, page.OOB, true); err != nil {
		return &WriteError{Offset: off, Raw: true, Err: err}
	}
	data, oob, err := c.dev.ReadPage(off, true)
	if err != nil {
		return &ReadError{Offset: off, Err: err}
	}
	if err := comparePage(off, page.Data, data); err != nil {
		return err
	}
	if err := comparePage(off, page.OOB, oob); err != nil {
		err.(*VerifyError).Index += len(page.Data)
		return err
	}
	return nil
}

// comparePage returns a *VerifyError for the first byte of got that differs
// from want.
func comparePage(off int64, want, got []byte) error {
	for i := range want {
		if i >= len(got) {
			return &VerifyError{Offset: off, Index: i, Want: want[i]}
		}
		if want[i] != got[i] {
			return &VerifyError{Offset: off, Index: i, Want: want[i], Got: got[i]}
		}
	}
	return nil
}
