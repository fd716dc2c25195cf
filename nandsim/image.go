package nandsim

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"nandbcb/bcb"
)

// Raw images hold every page as its data followed by its OOB area, in page
// order, the format nanddump and nandsim loaders use.

// Save writes the whole device as a raw image.
func (n *NAND) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	pages := n.geo.Size / int64(n.geo.PageSize)
	blank := erased(n.geo.RawPageSize())
	for i := int64(0); i < pages; i++ {
		p, ok := n.pages[i]
		if !ok {
			if _, err := bw.Write(blank); err != nil {
				return err
			}
			continue
		}
		if _, err := bw.Write(p.data); err != nil {
			return err
		}
		if _, err := bw.Write(p.oob); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads a raw image written by Save into a new device with geometry geo.
func Load(r io.Reader, geo bcb.Geometry) (*NAND, error) {
	n, err := New(geo)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(r)
	pages := geo.Size / int64(geo.PageSize)
	buf := make([]byte, geo.RawPageSize())
	blank := erased(geo.RawPageSize())
	for i := int64(0); i < pages; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("nandsim: read page %d of image: %w", i, err)
		}
		if bytes.Equal(buf, blank) {
			continue
		}
		n.pages[i] = &page{
			data: bytes.Clone(buf[:geo.PageSize]),
			oob:  bytes.Clone(buf[geo.PageSize:]),
		}
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("nandsim: image is larger than %d pages", pages)
	}
	return n, nil
}

// SaveFile writes the device as a raw image to path.
func (n *NAND) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if err := n.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("write image: %w", err)
	}
	return f.Close()
}

// LoadFile reads a raw image from path.
func LoadFile(path string, geo bcb.Geometry) (*NAND, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return Load(f, geo)
}
