package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"nandbcb/bcb"
	"nandbcb/flashui"
)

/* ===================== Placement flags ===================== */

// placementFlags are the partition and redundancy settings shared by write,
// layout and dump.
type placementFlags struct {
	partOffset      string
	partSize        string
	searchExponent  int
	pagesPerStride  int
	chips           int
	secondaryOffset string
	rom             string
}

func (f *placementFlags) register(fs *pflag.FlagSet) {
	def := bcb.DefaultRedundancy()
	fs.StringVar(&f.partOffset, "partition-offset", "0", "boot partition offset on the device")
	fs.StringVar(&f.partSize, "partition-size", "", "boot partition size (default: rest of the device)")
	fs.IntVar(&f.searchExponent, "search-exponent", def.SearchExponent, "2^N strides per BCB search area")
	fs.IntVar(&f.pagesPerStride, "stride-pages", def.PagesPerStride, "pages between two BCB copies")
	fs.IntVar(&f.chips, "chips", def.ChipCount, "NAND chips (1 or 2)")
	fs.StringVar(&f.secondaryOffset, "secondary-offset", "", "partition relative offset of firmware copy 2 (default: middle of the free space)")
	fs.StringVar(&f.rom, "rom", "standard", "mask ROM variant: standard|prepad")
}

func (f *placementFlags) partition(geo bcb.Geometry) (bcb.Partition, error) {
	off, err := parseSize(f.partOffset)
	if err != nil {
		return bcb.Partition{}, fmt.Errorf("--partition-offset: %w", err)
	}
	part := bcb.Partition{Offset: off, Size: geo.Size - off}
	if f.partSize != "" {
		if part.Size, err = parseSize(f.partSize); err != nil {
			return bcb.Partition{}, fmt.Errorf("--partition-size: %w", err)
		}
	}
	return part, nil
}

func (f *placementFlags) redundancy() (bcb.RedundancyConfig, error) {
	red := bcb.RedundancyConfig{
		SearchExponent: f.searchExponent,
		PagesPerStride: f.pagesPerStride,
		ChipCount:      f.chips,
	}
	if f.secondaryOffset != "" {
		off, err := parseSize(f.secondaryOffset)
		if err != nil {
			return red, fmt.Errorf("--secondary-offset: %w", err)
		}
		red.SecondaryOffset = off
	}
	return red, nil
}

/* ===================== write ===================== */

func newWriteCmd() *cobra.Command {
	var (
		place                   placementFlags
		img                     imageFlags
		payloadPath, prePadPath string
		device, out             string
		force, dryRun, verbose  bool
		useUI                   bool
	)

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write FCB, DBBT and both firmware copies",
		RunE: func(_ *cobra.Command, _ []string) error {
			if device != "" && out != "" {
				return fmt.Errorf("choose at most one of --out or --device")
			}
			if device == "" && out == "" {
				return fmt.Errorf("choose --out or --device")
			}
			if device != "" && !force && !dryRun {
				return fmt.Errorf("--device requires --force")
			}
			variant, err := bcb.ParseRomVariant(place.rom)
			if err != nil {
				return err
			}
			red, err := place.redundancy()
			if err != nil {
				return err
			}
			payload, err := os.ReadFile(payloadPath)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			var prePad []byte
			if prePadPath != "" {
				if prePad, err = os.ReadFile(prePadPath); err != nil {
					return fmt.Errorf("read pre-pad: %w", err)
				}
			}
			if device != "" && !dryRun {
				if err := checkNotMounted(device); err != nil {
					return err
				}
			}

			var dev nandDevice
			if device != "" {
				dev, err = openNAND(device, !dryRun)
			} else {
				var d *imageDevice
				if d, err = openImage(out, &img, true, dryRun); err == nil {
					dev = d
				}
			}
			if err != nil {
				return err
			}
			geo := dev.Geometry()
			part, err := place.partition(geo)
			if err != nil {
				dev.Close()
				return err
			}

			opts := bcb.WriteOptions{Verbose: verbose, DryRun: dryRun}
			if verbose && !useUI {
				_ = flag.Set("alsologtostderr", "true")
			}

			var (
				ui   *flashui.UI
				prog *writeProgress
			)
			if useUI {
				l, err := bcb.ComputeLayout(geo, red, part, int64(len(payload)), variant)
				if err != nil {
					dev.Close()
					return err
				}
				if ui, err = flashui.NewUI(); err != nil {
					dev.Close()
					return err
				}
				target := device
				if target == "" {
					target = out
				}
				ui.SetTitle("nandbcb: " + target)
				ui.SetSummaryLines([]string{
					geo.String(),
					fmt.Sprintf("Firmware %s at 0x%x and 0x%x, ROM %s", human(l.StreamSize), l.Firmware[0].Start, l.Firmware[1].Start, variant),
				})
				prog = newWriteProgress(ui, geo, l)
				opts.Progress = prog.update
				prog.draw("Start")
			}

			start := time.Now()
			rep, werr := bcb.WriteBootStream(dev, part, red, variant, payload, prePad, opts)
			if prog != nil {
				prog.finish(werr)
				_ = ui.WaitWithStop(2 * time.Second)
				ui.Close()
			}
			if cerr := dev.Close(); cerr != nil && werr == nil {
				werr = cerr
			}
			if rep != nil {
				printReport(rep, dryRun, time.Since(start))
			}
			return werr
		},
	}

	fl := cmd.Flags()
	place.register(fl)
	img.register(fl)
	fl.StringVar(&payloadPath, "payload", "", "firmware image to boot")
	fl.StringVar(&prePadPath, "prepad-file", "", "content of the pre-pad region (prepad ROM only)")
	fl.StringVar(&device, "device", "", "MTD character device to write (requires --force)")
	fl.StringVar(&out, "out", "", "NAND image file to write (created if missing)")
	fl.BoolVar(&force, "force", false, "allow writing to a device")
	fl.BoolVar(&dryRun, "dry-run", false, "compute and report only; never erase or program")
	fl.BoolVar(&verbose, "verbose", false, "log every erase, write and verify")
	fl.BoolVar(&useUI, "ui", false, "show the block map while writing")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}

func printReport(r *bcb.Report, dryRun bool, took time.Duration) {
	l := r.Layout
	mode := "written"
	if dryRun {
		mode = "planned"
	}
	fmt.Println("Boot stream")
	fmt.Printf("  Geometry:  %s\n", r.Geometry)
	fmt.Printf("  Partition: 0x%x + %s\n", l.Partition.Offset, human(l.Partition.Size))
	fmt.Printf("  Marker:    byte %d bit %d\n", r.Marker.Byte, r.Marker.Bit)
	if r.Commit != nil {
		fmt.Printf("  FCB:       %d good copies %s\n", r.Commit.Good(bcb.KindFCB), mode)
		fmt.Printf("  DBBT:      %d good copies %s\n", r.Commit.Good(bcb.KindDBBT), mode)
	}
	if r.FirmwareSkipped {
		fmt.Println("  Firmware:  not written")
	} else {
		for _, c := range r.Copies {
			status := "ok"
			if c.Err != nil {
				status = c.Err.Error()
			}
			fmt.Printf("  Copy %d:    0x%x, %d pages, %d bad blocks skipped: %s\n",
				c.Index, c.Start, c.PagesWritten, len(c.SkippedBlocks), status)
		}
	}
	fmt.Printf("  Took:      %s\n", took.Truncate(time.Millisecond))
	glog.V(1).Infof("FCB: %+v", *r.FCB)
}

/* ===================== layout ===================== */

func newLayoutCmd() *cobra.Command {
	var (
		place       placementFlags
		img         imageFlags
		device      string
		payloadPath string
		payloadSize string
	)
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print where the BCBs and firmware copies would go",
		RunE: func(_ *cobra.Command, _ []string) error {
			var geo bcb.Geometry
			if device != "" {
				dev, err := openNAND(device, false)
				if err != nil {
					return err
				}
				geo = dev.Geometry()
				dev.Close()
			} else {
				var err error
				if geo, err = img.geometry(); err != nil {
					return err
				}
			}

			var size int64
			switch {
			case payloadPath != "":
				st, err := os.Stat(payloadPath)
				if err != nil {
					return err
				}
				size = st.Size()
			case payloadSize != "":
				var err error
				if size, err = parseSize(payloadSize); err != nil {
					return fmt.Errorf("--payload-size: %w", err)
				}
			default:
				return fmt.Errorf("--payload or --payload-size is required")
			}

			variant, err := bcb.ParseRomVariant(place.rom)
			if err != nil {
				return err
			}
			red, err := place.redundancy()
			if err != nil {
				return err
			}
			part, err := place.partition(geo)
			if err != nil {
				return err
			}
			l, err := bcb.ComputeLayout(geo, red, part, size, variant)
			if err != nil {
				return err
			}
			m := bcb.MarkerPosition(geo.Strength(), geo.ChunkSize(), geo.PageSize, bcb.MetadataBytes)
			printLayout(geo, l, m)
			return nil
		},
	}
	fl := cmd.Flags()
	place.register(fl)
	img.register(fl)
	fl.StringVar(&device, "device", "", "read the geometry from this MTD device instead of the image flags")
	fl.StringVar(&payloadPath, "payload", "", "firmware image")
	fl.StringVar(&payloadSize, "payload-size", "", "firmware size, if no --payload is given")
	return cmd
}

func printLayout(geo bcb.Geometry, l *bcb.Layout, m bcb.Marker) {
	fmt.Println("Layout")
	fmt.Printf("  Geometry:        %s\n", geo)
	fmt.Printf("  Partition:       0x%x + %s\n", l.Partition.Offset, human(l.Partition.Size))
	fmt.Printf("  Stride:          %s, search area %s\n", human(l.StrideSize), human(l.SearchAreaSize))
	for _, a := range append(append([]bcb.SearchArea{}, l.FCBAreas...), l.DBBTAreas...) {
		fmt.Printf("  %-4s chip %d:     0x%08x - 0x%08x (%d strides)\n", a.Kind, a.Chip, a.Start, a.End(), a.Strides)
	}
	fmt.Printf("  Boot stream:     %d bytes payload, %d bytes with pre-pad\n", l.PayloadSize, l.StreamSize)
	for _, fc := range l.Firmware {
		fmt.Printf("  Firmware %d:      0x%08x - 0x%08x (%d pages)\n", fc.Index, fc.Start, fc.End, fc.Pages)
	}
	fmt.Printf("  Max firmware:    %s\n", human(l.MaxFirmwareSize))
	fmt.Printf("  BB marker:       byte %d bit %d\n", m.Byte, m.Bit)
}
