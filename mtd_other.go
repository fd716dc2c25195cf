//go:build !linux

package main

import (
	"fmt"
	"runtime"
)

// openNAND: raw NAND access goes through Linux MTD only; use --out elsewhere.
func openNAND(path string, _ bool) (nandDevice, error) {
	return nil, fmt.Errorf("%s: MTD devices are not supported on %s; write an image with --out", path, runtime.GOOS)
}
