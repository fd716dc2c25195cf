// nandbcb writes i.MX NAND boot images: the FCB and DBBT boot control blocks
// the mask ROM searches for, and two bad block tolerant copies of the firmware.
// Cobra CLI + tcell block map. One glyph per ERASE BLOCK.
//
// Targets are Linux MTD character devices (/dev/mtdN) or raw NAND image files
// holding data and OOB for every page.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"nandbcb/bcb"
)

/* ===================== Helpers ===================== */

// nandDevice is a bcb.Device the CLI has to release when done.
type nandDevice interface {
	bcb.Device
	io.Closer
}

func must(err error) {
	if err != nil {
		glog.Flush()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

// parseSize accepts plain or 0x-prefixed byte counts and k/m/g suffixes.
func parseSize(s string) (int64, error) {
	ss := strings.TrimSpace(strings.ToLower(s))
	if ss == "" {
		return 0, fmt.Errorf("empty size")
	}
	if strings.HasPrefix(ss, "0x") {
		return strconv.ParseInt(ss[2:], 16, 64)
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(ss, "k"):
		mult = 1024
		ss = strings.TrimSuffix(ss, "k")
	case strings.HasSuffix(ss, "m"):
		mult = 1024 * 1024
		ss = strings.TrimSuffix(ss, "m")
	case strings.HasSuffix(ss, "g"):
		mult = 1024 * 1024 * 1024
		ss = strings.TrimSuffix(ss, "g")
	case strings.HasSuffix(ss, "b"):
		ss = strings.TrimSuffix(ss, "b")
	}
	v, err := strconv.ParseFloat(ss, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}
	return int64(v * float64(mult)), nil
}

func human(b int64) string {
	switch {
	case b >= 1024*1024*1024:
		return fmt.Sprintf("%dG", b/(1024*1024*1024))
	case b >= 1024*1024:
		return fmt.Sprintf("%dM", b/(1024*1024))
	case b >= 1024:
		return fmt.Sprintf("%dK", b/1024)
	}
	return fmt.Sprintf("%dB", b)
}

/* ===================== Main ===================== */

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nandbcb",
		Short: "i.MX NAND boot image writer",
		Long:  "Write FCB/DBBT boot control blocks and redundant firmware copies to raw NAND or NAND images",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// glog reads its settings from the standard flag set.
			return flag.CommandLine.Parse(nil)
		},
	}
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	root.AddCommand(newWriteCmd())
	root.AddCommand(newLayoutCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newDeviceCmd())
	return root
}

func main() {
	defer glog.Flush()
	must(newRootCmd().Execute())
}
