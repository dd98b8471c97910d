package pngopt

import (
	"encoding/binary"
	"fmt"
)

// Color types from the IHDR specification.
const (
	colorGray      = 0
	colorRGB       = 2
	colorPalette   = 3
	colorGrayAlpha = 4
	colorRGBA      = 6
)

// header is the decoded IHDR payload.
type header struct {
	width     int
	height    int
	bitDepth  byte
	colorType byte
	interlace byte
}

// parseHeader decodes and validates the IHDR chunk of a sequence.
func parseHeader(chunks []Chunk) (header, error) {
	i := findChunk(chunks, "IHDR")
	if i != 0 {
		return header{}, fmt.Errorf("IHDR chunk misplaced at index %d", i)
	}
	d := chunks[i].Data
	if len(d) != 13 {
		return header{}, fmt.Errorf("IHDR length %d, want 13", len(d))
	}
	h := header{
		width:     int(binary.BigEndian.Uint32(d[0:4])),
		height:    int(binary.BigEndian.Uint32(d[4:8])),
		bitDepth:  d[8],
		colorType: d[9],
		interlace: d[12],
	}
	if h.width <= 0 || h.height <= 0 {
		return header{}, fmt.Errorf("invalid dimensions %dx%d", h.width, h.height)
	}
	if d[10] != 0 {
		return header{}, fmt.Errorf("unknown compression method %d", d[10])
	}
	if d[11] != 0 {
		return header{}, fmt.Errorf("unknown filter method %d", d[11])
	}
	if h.interlace > 1 {
		return header{}, fmt.Errorf("unknown interlace method %d", h.interlace)
	}
	if !validDepth(h.colorType, h.bitDepth) {
		return header{}, fmt.Errorf("invalid bit depth %d for color type %d", h.bitDepth, h.colorType)
	}
	return h, nil
}

// validDepth checks the legal bit depth set of each color type.
func validDepth(colorType, depth byte) bool {
	switch colorType {
	case colorGray:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8 || depth == 16
	case colorPalette:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8
	case colorRGB, colorGrayAlpha, colorRGBA:
		return depth == 8 || depth == 16
	default:
		return false
	}
}

// channels is the number of samples per pixel for the color type.
func (h header) channels() int {
	switch h.colorType {
	case colorRGB:
		return 3
	case colorGrayAlpha:
		return 2
	case colorRGBA:
		return 4
	default: // gray and paletted
		return 1
	}
}

// bitsPerPixel is the packed size of one pixel in bits.
func (h header) bitsPerPixel() int {
	return int(h.bitDepth) * h.channels()
}

// rowBytes is the byte length of one unpacked scanline, excluding the
// leading filter byte.
func (h header) rowBytes() int {
	return (h.width*h.bitsPerPixel() + 7) / 8
}

// filterStep is the byte distance between a pixel and its left neighbor
// as seen by the delta filters, never less than one whole byte.
func (h header) filterStep() int {
	step := h.bitsPerPixel() / 8
	if step < 1 {
		step = 1
	}
	return step
}

// colorName renders the color type the way reports show it.
func (h header) colorName() string {
	switch h.colorType {
	case colorGray:
		return "grayscale"
	case colorRGB:
		return "RGB"
	case colorPalette:
		return "paletted"
	case colorGrayAlpha:
		return "grayscale+alpha"
	case colorRGBA:
		return "RGB+alpha"
	default:
		return fmt.Sprintf("type %d", h.colorType)
	}
}
