package bcb

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches one of these with
// errors.Is.
var (
	ErrGeometry = errors.New("geometry")
	ErrSize     = errors.New("size")
	ErrErase    = errors.New("erase")
	ErrWrite    = errors.New("write")
	ErrRead     = errors.New("read")
	ErrVerify   = errors.New("verify")

	// ErrNoBCB means no stride of a search area holds a verified record, so
	// the ROM cannot find the firmware.
	ErrNoBCB = errors.New("no good BCB copy")
)

// GeometryError indicates the partition cannot hold the required redundancy.
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string {
	return "geometry: " + e.Reason
}

func (e *GeometryError) Is(target error) bool { return target == ErrGeometry }

// SizeError indicates the boot stream does not fit. Copy is 0 when the check
// failed before anything was written, otherwise the firmware copy that ran out
// of good blocks.
type SizeError struct {
	Copy int
	Need int64
	Have int64
}

func (e *SizeError) Error() string {
	if e.Copy == 0 {
		return fmt.Sprintf("boot stream of %d bytes does not fit: capacity is %d bytes", e.Need, e.Have)
	}
	return fmt.Sprintf("firmware copy %d: ran out of good blocks after %d of %d bytes", e.Copy, e.Have, e.Need)
}

func (e *SizeError) Is(target error) bool { return target == ErrSize }

// EraseError indicates an erase block could not be erased.
type EraseError struct {
	Offset int64
	Err    error
}

func (e *EraseError) Error() string {
	return fmt.Sprintf("erase block at 0x%x: %v", e.Offset, e.Err)
}

func (e *EraseError) Unwrap() error        { return e.Err }
func (e *EraseError) Is(target error) bool { return target == ErrErase }

// WriteError indicates a page could not be programmed.
type WriteError struct {
	Offset int64
	Raw    bool
	Err    error
}

func (e *WriteError) Error() string {
	mode := "page"
	if e.Raw {
		mode = "raw page"
	}
	return fmt.Sprintf("write %s at 0x%x: %v", mode, e.Offset, e.Err)
}

func (e *WriteError) Unwrap() error        { return e.Err }
func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// ReadError indicates a page could not be read back.
type ReadError struct {
	Offset int64
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read page at 0x%x: %v", e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error        { return e.Err }
func (e *ReadError) Is(target error) bool { return target == ErrRead }

// VerifyError indicates a page read back differently from what was written.
type VerifyError struct {
	Offset int64
	Index  int // first mismatching byte within the page (data then OOB)
	Want   byte
	Got    byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify page at 0x%x: byte %d is 0x%02x, wrote 0x%02x", e.Offset, e.Index, e.Got, e.Want)
}

func (e *VerifyError) Is(target error) bool { return target == ErrVerify }

// StrideError locates a failure inside a search area.
type StrideError struct {
	Kind   Kind
	Chip   int
	Stride int
	Err    error
}

func (e *StrideError) Error() string {
	return fmt.Sprintf("%s chip %d stride %d: %v", e.Kind, e.Chip, e.Stride, e.Err)
}

func (e *StrideError) Unwrap() error { return e.Err }

// CopyError locates a failure inside one of the two firmware copies.
type CopyError struct {
	Index int
	Err   error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("firmware copy %d: %v", e.Index, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }
