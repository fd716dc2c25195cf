package bcb

import "fmt"

// MetadataBytes is the BCH metadata area the controller stores ahead of the
// first ECC chunk.
const MetadataBytes = 10

// Marker is the position of the factory bad block marker as seen through the
// ECC engine's view of a page.
type Marker struct {
	Byte int
	Bit  int
}

// ChunkSizeForOOB returns the BCH chunk size the controller picks for an OOB
// area of oobSize bytes.
func ChunkSizeForOOB(oobSize int) int {
	if oobSize > 512 {
		return 1024
	}
	return 512
}

func gfWidth(chunkSize int) int {
	if chunkSize > 512 {
		return 14
	}
	return 13
}

// DefaultECCStrength returns the largest even BCH strength whose parity fits
// in the OOB area next to the metadata.
func DefaultECCStrength(pageSize, oobSize int) int {
	chunk := ChunkSizeForOOB(oobSize)
	chunks := pageSize / chunk
	if chunks == 0 || oobSize <= MetadataBytes {
		return 0
	}
	s := (oobSize - MetadataBytes) * 8 / (gfWidth(chunk) * chunks)
	return s &^ 1
}

// MarkerPosition computes where the bad block marker byte, which the ROM reads
// at raw offset pageSize, lands in the ECC corrected data. The controller
// interleaves metadata and per-chunk parity with the data, so the marker shifts
// towards the start of the page by the parity of every chunk but the last plus
// the metadata.
//
// Invalid arguments describe a misconfigured device and panic.
func MarkerPosition(strength, chunkSize, pageSize, metadataBytes int) Marker {
	if strength <= 0 {
		panic(fmt.Sprintf("bcb: invalid ECC strength %d", strength))
	}
	if chunkSize != 512 && chunkSize != 1024 {
		panic(fmt.Sprintf("bcb: invalid ECC chunk size %d", chunkSize))
	}
	if pageSize < chunkSize || pageSize%chunkSize != 0 {
		panic(fmt.Sprintf("bcb: page size %d is not a multiple of chunk size %d", pageSize, chunkSize))
	}
	if metadataBytes < 0 {
		panic(fmt.Sprintf("bcb: invalid metadata size %d", metadataBytes))
	}

	chunks := pageSize / chunkSize
	parityBits := strength * gfWidth(chunkSize)

	// The marker has to land in the data part of the last chunk.
	inChunk := (pageSize-metadataBytes)*8 - (chunks-1)*(chunkSize*8+parityBits)
	if inChunk < 0 || inChunk > chunkSize*8 {
		panic(fmt.Sprintf("bcb: ECC strength %d does not fit a %d byte page", strength, pageSize))
	}

	shift := parityBits*(chunks-1) + metadataBytes*8
	off := pageSize*8 - shift
	return Marker{Byte: off / 8, Bit: off % 8}
}
