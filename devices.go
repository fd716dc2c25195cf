package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"nandbcb/bcb"
)

/* ===================== MTD discovery (read-only) ===================== */

// mtdPartition is one line of /proc/mtd.
type mtdPartition struct {
	Dev       string // mtdN
	Size      int64
	EraseSize int64
	Name      string
}

func (p mtdPartition) Path() string { return filepath.Join("/dev", p.Dev) }

// parseProcMTD reads the /proc/mtd table:
//
//	dev:    size   erasesize  name
//	mtd0: 00400000 00020000 "boot"
func parseProcMTD(r io.Reader) ([]mtdPartition, error) {
	var parts []mtdPartition
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		ln := strings.TrimSpace(sc.Text())
		if ln == "" || strings.HasPrefix(ln, "dev:") {
			continue
		}
		fields := strings.Fields(ln)
		if len(fields) < 4 {
			return nil, fmt.Errorf("malformed /proc/mtd line %q", ln)
		}
		size, err := strconv.ParseInt(fields[1], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("size in %q: %w", ln, err)
		}
		erase, err := strconv.ParseInt(fields[2], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("erase size in %q: %w", ln, err)
		}
		name := strings.Join(fields[3:], " ")
		parts = append(parts, mtdPartition{
			Dev:       strings.TrimSuffix(fields[0], ":"),
			Size:      size,
			EraseSize: erase,
			Name:      strings.Trim(name, `"`),
		})
	}
	return parts, sc.Err()
}

func discoverMTD() ([]mtdPartition, error) {
	f, err := os.Open("/proc/mtd")
	if err != nil {
		return nil, fmt.Errorf("list MTD devices: %w", err)
	}
	defer f.Close()
	return parseProcMTD(f)
}

// mtdMountPoint returns where p is mounted according to a mounts table in
// /proc/self/mounts format, or "" if it is not. MTD filesystems show up as
// /dev/mtdblockN, mtdN or mtd:<name>.
func mtdMountPoint(mounts io.Reader, p mtdPartition) string {
	num := strings.TrimPrefix(p.Dev, "mtd")
	sources := map[string]bool{
		"/dev/mtdblock" + num: true,
		"/dev/" + p.Dev:       true,
		p.Dev:                 true,
		"mtd:" + p.Name:       true,
	}
	sc := bufio.NewScanner(mounts)
	for sc.Scan() {
		// format: <src> <target> <fstype> <opts> ...
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		if sources[fields[0]] {
			return fields[1]
		}
	}
	return ""
}

// checkNotMounted refuses to write an MTD device that carries a mounted
// filesystem.
func checkNotMounted(path string) error {
	parts, err := discoverMTD()
	if err != nil {
		// Without /proc/mtd there is nothing to compare against.
		return nil
	}
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return nil
	}
	defer f.Close()
	return mountConflict(path, parts, f)
}

// mountConflict reports an error if the MTD device at path carries a
// filesystem listed in mounts.
func mountConflict(path string, parts []mtdPartition, mounts io.Reader) error {
	dev := strings.TrimSuffix(filepath.Base(path), "ro")
	for _, p := range parts {
		if p.Dev != dev {
			continue
		}
		if mnt := mtdMountPoint(mounts, p); mnt != "" {
			return fmt.Errorf("%s (%q) is mounted on %s", path, p.Name, mnt)
		}
		return nil
	}
	return nil
}

// countBad scans every erase block of dev.
func countBad(dev bcb.Device) (int, error) {
	geo := dev.Geometry()
	bs := geo.BlockSize()
	if bs <= 0 {
		return 0, fmt.Errorf("invalid geometry %s", geo)
	}
	n := 0
	for off := int64(0); off < geo.Size; off += bs {
		bad, err := dev.IsBad(off)
		if err != nil {
			return n, err
		}
		if bad {
			n++
		}
	}
	return n, nil
}

func newDeviceCmd() *cobra.Command {
	deviceCmd := &cobra.Command{
		Use:   "device",
		Short: "MTD device utilities",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List MTD partitions",
		RunE: func(_ *cobra.Command, _ []string) error {
			parts, err := discoverMTD()
			if err != nil {
				return err
			}
			if len(parts) == 0 {
				fmt.Println("No MTD devices found.")
				return nil
			}
			fmt.Println("MTD devices:")
			for _, p := range parts {
				status := ""
				if f, err := os.Open("/proc/self/mounts"); err == nil {
					if mnt := mtdMountPoint(f, p); mnt != "" {
						status = "  [mounted on " + mnt + "]"
					}
					f.Close()
				}
				fmt.Printf("  %-12s %6s  erase %-5s %q%s\n", p.Path(), human(p.Size), human(p.EraseSize), p.Name, status)
			}
			return nil
		},
	}
	deviceCmd.AddCommand(listCmd)

	var infoPath string
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show NAND geometry, ECC settings and bad blocks of an MTD device",
		RunE: func(_ *cobra.Command, _ []string) error {
			dev, err := openNAND(infoPath, false)
			if err != nil {
				return err
			}
			defer dev.Close()
			geo := dev.Geometry()
			if err := geo.Validate(); err != nil {
				return err
			}
			m := bcb.MarkerPosition(geo.Strength(), geo.ChunkSize(), geo.PageSize, bcb.MetadataBytes)

			fmt.Println("Device info")
			fmt.Printf("  Path:        %s\n", infoPath)
			fmt.Printf("  Size:        %s (%d blocks)\n", human(geo.Size), geo.Blocks())
			fmt.Printf("  Page:        %d + %d OOB\n", geo.PageSize, geo.OOBSize)
			fmt.Printf("  Erase block: %s (%d pages)\n", human(geo.BlockSize()), geo.PagesPerBlock)
			fmt.Printf("  ECC:         %d bits per %d byte chunk\n", geo.Strength(), geo.ChunkSize())
			fmt.Printf("  BB marker:   byte %d bit %d\n", m.Byte, m.Bit)
			bad, err := countBad(dev)
			if err != nil {
				return err
			}
			fmt.Printf("  Bad blocks:  %d\n", bad)
			return nil
		},
	}
	infoCmd.Flags().StringVar(&infoPath, "device", "", "MTD character device (e.g. /dev/mtd0)")
	_ = infoCmd.MarkFlagRequired("device")
	deviceCmd.AddCommand(infoCmd)
	return deviceCmd
}
