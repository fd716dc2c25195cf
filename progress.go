package main

import (
	"fmt"
	"time"

	"nandbcb/bcb"
	"nandbcb/flashui"
)

// writeProgress follows a boot stream write on the block map.
type writeProgress struct {
	ui      *flashui.UI
	blocks  *flashui.BlockMap
	start   time.Time
	phase   bcb.Phase
	current int64 // last reported offset
	done    int64 // bytes written or planned
	total   int64 // bytes the whole write covers
	bad     int
	failed  int
	events  int
}

var phaseOrder = []bcb.Phase{bcb.PhaseFCB, bcb.PhaseDBBT, bcb.PhaseFirmware1, bcb.PhaseFirmware2}

func newWriteProgress(ui *flashui.UI, geo bcb.Geometry, l *bcb.Layout) *writeProgress {
	p := &writeProgress{
		ui:     ui,
		blocks: flashui.NewBlockMap(l.Partition.Offset, l.Partition.Size, geo.BlockSize()),
		start:  time.Now(),
	}
	for _, a := range append(append([]bcb.SearchArea{}, l.FCBAreas...), l.DBBTAreas...) {
		p.blocks.MarkRange(a.Start, a.End(), flashui.Reserved)
		p.total += a.End() - a.Start
	}
	for _, fc := range l.Firmware {
		p.total += int64(fc.Pages) * int64(geo.PageSize)
	}

	labels := make([]string, len(phaseOrder))
	for i, ph := range phaseOrder {
		labels[i] = string(ph)
	}
	ui.SetPhases(labels)
	ui.SetLegend(flashui.Legend())
	return p
}

// update is the bcb.WriteOptions.Progress callback.
func (p *writeProgress) update(ev bcb.Progress) {
	if ev.Phase != p.phase {
		if p.phase != "" {
			p.ui.SetPhaseDone(string(p.phase))
		}
		p.phase = ev.Phase
	}
	p.current = ev.Offset
	switch ev.Event {
	case bcb.EventWritten, bcb.EventPlanned:
		p.done += ev.Size
		p.blocks.Mark(ev.Offset, flashui.Written)
	case bcb.EventSkippedBad:
		p.bad++
		p.blocks.Mark(ev.Offset, flashui.Bad)
	case bcb.EventFailed:
		p.failed++
		p.blocks.Mark(ev.Offset, flashui.Failed)
	}
	p.events++
	if p.events%16 == 1 || ev.Event != bcb.EventWritten {
		p.draw("Write " + string(ev.Phase))
	}
}

// draw refreshes the map and the status lines.
func (p *writeProgress) draw(currentOp string) {
	elapsed := time.Since(p.start).Truncate(time.Second)
	var rate float64
	if s := time.Since(p.start).Seconds(); s > 0 {
		rate = float64(p.done) / s
	}
	etaStr := "-"
	if rate > 0 && p.total > p.done {
		eta := time.Duration(float64(p.total-p.done) / rate * float64(time.Second)).Truncate(time.Second)
		etaStr = eta.String()
	}

	p.ui.SetStatusLines([]string{
		fmt.Sprintf("Offset: 0x%08x", p.current),
		fmt.Sprintf("Written: %s / %s   Bad blocks: %d   Failed: %d", human(p.done), human(p.total), p.bad, p.failed),
		fmt.Sprintf("Elapsed: %s   Rate: %s/s   ETA: %s", elapsed, human(int64(rate)), etaStr),
		"Current op: " + currentOp,
	})
	if w, _ := p.ui.Size(); w > 0 {
		p.ui.SetMap(p.blocks.Lines(w, p.ui.MapRows()))
	}
	p.ui.LayoutAndDraw()
}

// finish ticks the last phase and shows the outcome.
func (p *writeProgress) finish(err error) {
	if p.phase != "" {
		p.ui.SetPhaseDone(string(p.phase))
	}
	op := "Done"
	if err != nil {
		op = "Failed: " + err.Error()
	}
	p.draw(op)
}
