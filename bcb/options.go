package bcb

import (
	"fmt"

	"github.com/golang/glog"
)

// WriteOptions controls a boot stream write. It is passed down to every stage.
type WriteOptions struct {
	// Verbose logs every erase, write and verify at info level.
	Verbose bool
	// DryRun computes and reports everything but never erases or programs.
	DryRun bool
	// Progress, if set, is called after every stride and firmware page.
	Progress func(Progress)
}

func (o WriteOptions) infof(format string, args ...any) {
	if o.Verbose {
		glog.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

func (o WriteOptions) report(p Progress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

// Phase names the stage of a boot stream write.
type Phase string

const (
	PhaseFCB       Phase = "FCB"
	PhaseDBBT      Phase = "DBBT"
	PhaseFirmware1 Phase = "FW1"
	PhaseFirmware2 Phase = "FW2"
)

// Event is what happened at a reported offset.
type Event int

const (
	EventWritten Event = iota
	EventSkippedBad
	EventFailed
	EventPlanned // dry run
)

func (e Event) String() string {
	switch e {
	case EventWritten:
		return "written"
	case EventSkippedBad:
		return "bad block"
	case EventFailed:
		return "failed"
	case EventPlanned:
		return "planned"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Progress is reported through WriteOptions.Progress.
type Progress struct {
	Phase  Phase
	Event  Event
	Offset int64 // absolute device offset of the page or stride
	Size   int64 // bytes covered by the event
}

// RomVariant selects the mask ROM protocol the image is written for.
type RomVariant int

const (
	// RomStandard places the firmware at the first page of each copy.
	RomStandard RomVariant = iota
	// RomKeyPrePad reserves PrePadSize bytes ahead of the firmware for key
	// material used to decrypt it.
	RomKeyPrePad
)

// PrePadSize is the reserved region ahead of the firmware for RomKeyPrePad.
const PrePadSize = 0x400

// PrePad returns the number of bytes reserved ahead of the firmware.
func (v RomVariant) PrePad() int {
	if v == RomKeyPrePad {
		return PrePadSize
	}
	return 0
}

func (v RomVariant) String() string {
	switch v {
	case RomStandard:
		return "standard"
	case RomKeyPrePad:
		return "prepad"
	}
	return fmt.Sprintf("RomVariant(%d)", int(v))
}

// ParseRomVariant maps a command line name to a RomVariant.
func ParseRomVariant(s string) (RomVariant, error) {
	switch s {
	case "standard", "":
		return RomStandard, nil
	case "prepad":
		return RomKeyPrePad, nil
	}
	return 0, fmt.Errorf("unknown ROM variant %q (want standard|prepad)", s)
}
