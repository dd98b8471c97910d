// Package testutil builds the PNG fixtures the optimizer tests work on:
// real encoded images in every color model, plus damaged and decorated
// variants of them.
package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

// GrayPNG encodes a width x height 8-bit grayscale image with a simple
// gradient, so scanline filters have something to bite on.
func GrayPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*7 + y*13)})
		}
	}
	return encodePNG(t, img)
}

// UncompressedGrayPNG is GrayPNG with deflate turned off, so any real
// recompression is guaranteed to shrink it.
func UncompressedGrayPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*7 + y*13)})
		}
	}
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, img))
	return buf.Bytes()
}

// RGBAPNG encodes a width x height 8-bit RGBA image.
func RGBAPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 11),
				G: uint8(y * 17),
				B: uint8((x + y) * 5),
				A: 255,
			})
		}
	}
	return encodePNG(t, img)
}

// PalettedPNG encodes an image carrying a palette of exactly entries
// colors while its pixels only ever use the first used of them. The
// unused tail is what palette truncation exists to cut.
func PalettedPNG(t *testing.T, width, height, entries, used int) []byte {
	t.Helper()
	require.GreaterOrEqual(t, entries, used)

	pal := make(color.Palette, entries)
	for i := range pal {
		pal[i] = color.RGBA{R: uint8(i), G: uint8(255 - i), B: uint8(i * 3), A: 255}
	}
	img := image.NewPaletted(image.Rect(0, 0, width, height), pal)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetColorIndex(x, y, uint8((x+y)%used))
		}
	}
	return encodePNG(t, img)
}

// InterlacedGrayPNG hand-builds a 1x1 Adam7 grayscale file. The single
// pixel lives in the first pass; the other six passes are empty, so the
// whole raw stream is one filter byte plus one sample.
func InterlacedGrayPNG(t *testing.T) []byte {
	t.Helper()

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], 1)
	binary.BigEndian.PutUint32(ihdr[4:8], 1)
	ihdr[8] = 8  // bit depth
	ihdr[9] = 0  // grayscale
	ihdr[12] = 1 // Adam7

	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	_, err := zw.Write([]byte{0x00, 0x77})
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var out bytes.Buffer
	out.WriteString("\x89PNG\r\n\x1a\n")
	writeRawChunk(&out, "IHDR", ihdr)
	writeRawChunk(&out, "IDAT", idat.Bytes())
	writeRawChunk(&out, "IEND", nil)
	return out.Bytes()
}

// WithChunkBeforeIDAT inserts one raw chunk ahead of the image data, for
// building files that carry metadata or animation control chunks.
func WithChunkBeforeIDAT(t *testing.T, data []byte, typ string, payload []byte) []byte {
	t.Helper()
	idx := bytes.Index(data, []byte("IDAT"))
	require.Greater(t, idx, 0, "fixture has no IDAT chunk")
	cut := idx - 4 // start of the IDAT length field

	var out bytes.Buffer
	out.Write(data[:cut])
	writeRawChunk(&out, typ, payload)
	out.Write(data[cut:])
	return out.Bytes()
}

// FlipChunkCRC corrupts the stored checksum of the first chunk of the
// given type.
func FlipChunkCRC(t *testing.T, data []byte, typ string) []byte {
	t.Helper()
	idx := bytes.Index(data, []byte(typ))
	require.Greater(t, idx, 0, "fixture has no %s chunk", typ)

	length := binary.BigEndian.Uint32(data[idx-4 : idx])
	crcOff := idx + 4 + int(length)
	require.Less(t, crcOff, len(data))

	out := append([]byte(nil), data...)
	out[crcOff] ^= 0xFF
	return out
}

// WriteFile drops data under dir and returns the full path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeRawChunk(buf *bytes.Buffer, typ string, data []byte) {
	var head [8]byte
	binary.BigEndian.PutUint32(head[:4], uint32(len(data)))
	copy(head[4:], typ)
	buf.Write(head[:])
	buf.Write(data)

	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc32IEEE(typ, data))
	buf.Write(sum[:])
}

func crc32IEEE(typ string, data []byte) uint32 {
	h := crc32.NewIEEE()
	io.WriteString(h, typ)
	h.Write(data)
	return h.Sum32()
}
