package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nandbcb/bcb"
)

/* ===================== dump ===================== */

// strideScan is what one FCB stride holds.
type strideScan struct {
	Offset int64
	Bad    bool
	FCB    *bcb.FCB
	Err    error
}

// scanFCB reads every stride of the FCB search area at start the way the ROM
// does and decodes what it finds.
func scanFCB(dev bcb.Device, start int64, strides int, strideSize int64) []strideScan {
	res := make([]strideScan, 0, strides)
	for i := 0; i < strides; i++ {
		s := strideScan{Offset: start + int64(i)*strideSize}
		bad, err := dev.IsBad(s.Offset)
		switch {
		case err != nil:
			s.Err = err
		case bad:
			s.Bad = true
		default:
			data, oob, err := dev.ReadPage(s.Offset, true)
			if err != nil {
				s.Err = err
			} else {
				s.FCB, s.Err = bcb.DecodeFCBPage(bcb.RawPage{Data: data, OOB: oob})
			}
		}
		res = append(res, s)
	}
	return res
}

func firstFCB(scan []strideScan) (*bcb.FCB, int64) {
	for _, s := range scan {
		if s.FCB != nil {
			return s.FCB, s.Offset
		}
	}
	return nil, -1
}

func newDumpCmd() *cobra.Command {
	var (
		place  placementFlags
		img    imageFlags
		device string
		in     string
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Decode the FCB and DBBT found on a device or image",
		RunE: func(_ *cobra.Command, _ []string) error {
			red, err := place.redundancy()
			if err != nil {
				return err
			}
			if err := red.Validate(); err != nil {
				return err
			}
			dev, err := openTarget(device, in, &img, false)
			if err != nil {
				return err
			}
			defer dev.Close()

			geo := dev.Geometry()
			if err := geo.Validate(); err != nil {
				return err
			}
			part, err := place.partition(geo)
			if err != nil {
				return err
			}
			stride := int64(red.PagesPerStride) * int64(geo.PageSize)
			scan := scanFCB(dev, part.Offset, 1<<red.SearchExponent, stride)

			fmt.Println("FCB search area")
			for i, s := range scan {
				status := "ok"
				switch {
				case s.Bad:
					status = "bad block"
				case s.Err != nil:
					status = s.Err.Error()
				}
				fmt.Printf("  stride %d at 0x%08x: %s\n", i, s.Offset, status)
			}
			f, off := firstFCB(scan)
			if f == nil {
				return fmt.Errorf("no valid FCB in %d strides at 0x%x", len(scan), part.Offset)
			}
			printFCB(f, off)

			page := int64(geo.PageSize)
			dbbtOff := int64(f.DBBTStartPage) * page
			data, oob, err := dev.ReadPage(dbbtOff, true)
			if err != nil {
				return fmt.Errorf("read DBBT: %w", err)
			}
			d, err := bcb.DecodeDBBTPage(bcb.RawPage{Data: data, OOB: oob})
			if err != nil {
				return err
			}
			fmt.Printf("DBBT at 0x%08x: %d bad blocks recorded, %d pages of table\n", dbbtOff, d.BadBlocks, d.Pages)
			return nil
		},
	}
	fl := cmd.Flags()
	place.register(fl)
	img.register(fl)
	fl.StringVar(&device, "device", "", "MTD character device to read")
	fl.StringVar(&in, "in", "", "NAND image file to read")
	return cmd
}

func printFCB(f *bcb.FCB, off int64) {
	fmt.Printf("FCB at 0x%08x (checksum 0x%08x)\n", off, f.Checksum)
	fmt.Printf("  Page:        %d (%d with OOB), %d pages/block\n", f.PageSize, f.TotalPageSize, f.SectorsPerBlock)
	fmt.Printf("  Timing:      setup %d hold %d addr %d delay %d\n", f.DataSetup, f.DataHold, f.AddrSetup, f.SampleDelay)
	fmt.Printf("  ECC:         level %d, %d byte chunks, %d+1 per page, %d metadata bytes\n",
		f.ECCBlockNType, f.ECCBlockNSize, f.NumECCBlocksPerPage, f.MetadataBytes)
	fmt.Printf("  Firmware 1:  page %d, %d pages\n", f.Firmware1StartPage, f.Firmware1Pages)
	fmt.Printf("  Firmware 2:  page %d, %d pages\n", f.Firmware2StartPage, f.Firmware2Pages)
	fmt.Printf("  DBBT:        page %d\n", f.DBBTStartPage)
	fmt.Printf("  BB marker:   byte %d bit %d, physical offset %d\n", f.BBMarkerByte, f.BBMarkerStartBit, f.BBMarkerPhysOffset)
}
