// Package flashui is a full screen terminal view of a NAND write: a block map,
// the write phases and a few status lines. It only renders what the caller
// hands it and never drives the flash itself.
package flashui

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
)

// ErrInterrupted is returned by WaitWithStop when the user quit the screen.
var ErrInterrupted = errors.New("interrupted")

// UI is the screen and everything drawn on it.
type UI struct {
	s        tcell.Screen
	stopChan chan struct{}
	once     sync.Once
	restore  bool // reset the terminal on Close

	title        string
	phases       []string
	phaseDoneMap map[string]bool
	summaryLines []string
	legendLines  []string
	statusLines  []string
	mapLines     []string
}

// NewUI takes over the terminal and starts listening for quit keys.
func NewUI() (*UI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	u, err := newUIWithScreen(s)
	if err != nil {
		return nil, err
	}
	u.restore = true
	return u, nil
}

func newUIWithScreen(s tcell.Screen) (*UI, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	u := &UI{
		s:            s,
		stopChan:     make(chan struct{}),
		phaseDoneMap: make(map[string]bool),
	}
	go u.eventLoop(s)
	return u, nil
}

// Close gives the terminal back.
func (u *UI) Close() {
	if u.s == nil {
		return
	}
	u.RequestStop()
	u.s.Fini()
	u.s = nil
	if u.restore {
		fmt.Print("\033[?1049l\033[?25h")
	}
}

// RequestStop records that the user wants to leave. Safe to call repeatedly.
func (u *UI) RequestStop() {
	u.once.Do(func() {
		close(u.stopChan)
		if u.s != nil {
			u.s.PostEvent(tcell.NewEventInterrupt(nil))
		}
	})
}

// IsStopped reports whether RequestStop was called.
func (u *UI) IsStopped() bool {
	select {
	case <-u.stopChan:
		return true
	default:
		return false
	}
}

// WaitWithStop keeps the final screen up for d or until the user quits.
func (u *UI) WaitWithStop(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-u.stopChan:
		return ErrInterrupted
	case <-timer.C:
		return nil
	}
}

// Size returns the screen size.
func (u *UI) Size() (width, height int) {
	if u.s == nil {
		return 0, 0
	}
	return u.s.Size()
}

// MapRows returns how many rows are left for the block map below the header.
func (u *UI) MapRows() int {
	_, h := u.Size()
	rows := h - u.headerRows() - footerRows
	if rows < 1 {
		rows = 1
	}
	return rows
}

// phase rule, phase line, status rule and up to four status lines
const footerRows = 7

func (u *UI) headerRows() int {
	n := len(u.summaryLines) + len(u.legendLines)
	if u.title != "" {
		n++
	}
	return n
}

func putStr(s tcell.Screen, x, y int, str string, style tcell.Style) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		if x+i >= w {
			break
		}
		s.SetContent(x+i, y, r, nil, style)
	}
}

// LayoutAndDraw redraws the whole screen from the current state.
func (u *UI) LayoutAndDraw() {
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()
	y := 0
	line := func(str string, style tcell.Style) {
		if y < h {
			putStr(u.s, 0, y, str, style)
			y++
		}
	}

	if u.title != "" {
		putStr(u.s, 0, y, strings.Repeat("═", w), tcell.StyleDefault)
		putStr(u.s, (w-len([]rune(u.title)))/2, y, u.title, tcell.StyleDefault.Bold(true))
		y++
	}
	for _, l := range u.summaryLines {
		line(l, tcell.StyleDefault)
	}
	for _, l := range u.legendLines {
		line(l, tcell.StyleDefault.Dim(true))
	}

	rows := min(u.MapRows(), len(u.mapLines))
	for _, l := range u.mapLines[:rows] {
		line(l, tcell.StyleDefault)
	}

	if len(u.phases) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w), tcell.StyleDefault)
		putStr(u.s, 2, y, " Phase ", tcell.StyleDefault)
		y++
		var b strings.Builder
		for i, p := range u.phases {
			if i > 0 {
				b.WriteByte(' ')
			}
			mark := ' '
			if u.phaseDoneMap[strings.ToLower(p)] {
				mark = '✓'
			}
			fmt.Fprintf(&b, "[%c]%s", mark, p)
		}
		line(b.String(), tcell.StyleDefault)
	}

	if len(u.statusLines) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w), tcell.StyleDefault)
		putStr(u.s, 2, y, " Status ", tcell.StyleDefault)
		y++
		for _, l := range u.statusLines {
			line(l, tcell.StyleDefault)
		}
	}

	u.s.Show()
}

// SetPhaseDone ticks phase p, matched case-insensitively.
func (u *UI) SetPhaseDone(p string) {
	u.phaseDoneMap[strings.ToLower(p)] = true
}

// SetPhases sets the phases shown in the phase line.
func (u *UI) SetPhases(labels []string) {
	u.phases = append([]string(nil), labels...)
}

func (u *UI) SetTitle(t string) {
	u.title = t
}

func (u *UI) SetSummaryLines(lines []string) {
	u.summaryLines = append([]string(nil), lines...)
}

func (u *UI) SetLegend(lines []string) {
	u.legendLines = append([]string(nil), lines...)
}

func (u *UI) SetStatusLines(lines []string) {
	u.statusLines = append([]string(nil), lines...)
}

// SetMap sets the block map rows, usually from BlockMap.Lines.
func (u *UI) SetMap(lines []string) {
	u.mapLines = append([]string(nil), lines...)
}

// eventLoop only handles quit keys and resizes. Flash work is never
// interrupted by it; the caller checks IsStopped once writing is done.
func (u *UI) eventLoop(s tcell.Screen) {
	for {
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC, ev.Key() == tcell.KeyEscape:
				u.RequestStop()
			case ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
			if u.IsStopped() {
				return
			}
		case nil:
			return
		}
	}
}
