package flashui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/go-cmp/cmp"
)

func newSimUI(t *testing.T, w, h int) (*UI, tcell.SimulationScreen) {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	u, err := newUIWithScreen(s)
	if err != nil {
		t.Fatalf("newUIWithScreen: %v", err)
	}
	s.SetSize(w, h)
	t.Cleanup(u.Close)
	return u, s
}

// screenRows returns the screen contents as one string per row.
func screenRows(s tcell.SimulationScreen) []string {
	cells, w, h := s.GetContents()
	rows := make([]string, h)
	for y := 0; y < h; y++ {
		var b strings.Builder
		for x := 0; x < w; x++ {
			c := cells[y*w+x]
			if len(c.Runes) == 0 {
				b.WriteRune(' ')
				continue
			}
			b.WriteRune(c.Runes[0])
		}
		rows[y] = strings.TrimRight(b.String(), " ")
	}
	return rows
}

func TestLayoutAndDraw(t *testing.T) {
	u, s := newSimUI(t, 40, 12)
	u.SetTitle("nandbcb")
	u.SetSummaryLines([]string{"mtd0: page 2048+64"})
	u.SetPhases([]string{"FCB", "DBBT", "FW1", "FW2"})
	u.SetPhaseDone("fcb")
	u.SetMap([]string{"██░░", "XX"})
	u.SetStatusLines([]string{"Current op: DBBT"})
	u.LayoutAndDraw()

	rows := screenRows(s)
	if !strings.Contains(rows[0], "nandbcb") {
		t.Errorf("title row = %q", rows[0])
	}
	want := []string{
		"mtd0: page 2048+64",
		"██░░",
		"XX",
	}
	if diff := cmp.Diff(want, rows[1:4]); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(rows[4], "Phase") {
		t.Errorf("phase rule = %q", rows[4])
	}
	if got := rows[5]; got != "[✓]FCB [ ]DBBT [ ]FW1 [ ]FW2" {
		t.Errorf("phase line = %q", got)
	}
	if got := rows[7]; got != "Current op: DBBT" {
		t.Errorf("status line = %q", got)
	}
}

func TestMapRowsLeavesRoomForFooter(t *testing.T) {
	u, _ := newSimUI(t, 20, 12)
	u.SetTitle("t")
	u.SetLegend(Legend())
	if got := u.MapRows(); got != 12-2-footerRows {
		t.Errorf("MapRows() = %d, want %d", got, 12-2-footerRows)
	}
}

func TestQuitKey(t *testing.T) {
	u, s := newSimUI(t, 20, 5)
	if u.IsStopped() {
		t.Fatal("stopped before any key")
	}
	s.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	if err := u.WaitWithStop(5 * time.Second); !errors.Is(err, ErrInterrupted) {
		t.Errorf("WaitWithStop = %v, want ErrInterrupted", err)
	}
	if !u.IsStopped() {
		t.Error("IsStopped() = false after q")
	}
}

func TestWaitWithStopTimesOut(t *testing.T) {
	u, _ := newSimUI(t, 20, 5)
	if err := u.WaitWithStop(10 * time.Millisecond); err != nil {
		t.Errorf("WaitWithStop = %v, want nil", err)
	}
}
