package pngopt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// pngSignature is the fixed 8-byte file prelude.
const pngSignature = "\x89PNG\r\n\x1a\n"

// maxChunkLength is the largest data length the format allows in one chunk.
const maxChunkLength = 0x7fffffff

var (
	// ErrNotPNG reports a file that does not start with the PNG signature.
	ErrNotPNG = errors.New("not a PNG file")

	// ErrBadCRC reports a chunk whose stored checksum does not match its
	// contents. Recovery mode tolerates it and recomputes on write.
	ErrBadCRC = errors.New("bad chunk CRC")
)

// Chunk is one PNG chunk: a 4-letter type and its payload. The length and
// checksum fields of the wire format are derived, never stored.
type Chunk struct {
	Type string
	Data []byte
}

// critical reports whether the chunk is required to display the image.
func (c Chunk) critical() bool {
	return len(c.Type) == 4 && c.Type[0]&0x20 == 0
}

// ReadChunks parses a PNG stream into its chunk sequence, stopping at
// IEND. With fix set, checksum mismatches and trailing garbage are
// tolerated and counted instead of refused; structural damage is never
// repaired. The repair count tells the caller how much was forgiven.
func ReadChunks(r io.Reader, fix bool) (chunks []Chunk, repairs int, err error) {
	var sig [8]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return nil, 0, ErrNotPNG
	}
	if string(sig[:]) != pngSignature {
		return nil, 0, ErrNotPNG
	}

	var head [8]byte
	for {
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return nil, repairs, fmt.Errorf("truncated chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(head[:4])
		if length > maxChunkLength {
			return nil, repairs, fmt.Errorf("chunk %q: invalid length %d", head[4:8], length)
		}
		typ := string(head[4:8])

		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, repairs, fmt.Errorf("chunk %q: truncated data: %w", typ, err)
		}

		var sum [4]byte
		if _, err := io.ReadFull(r, sum[:]); err != nil {
			return nil, repairs, fmt.Errorf("chunk %q: truncated checksum: %w", typ, err)
		}
		if binary.BigEndian.Uint32(sum[:]) != chunkCRC(typ, data) {
			if !fix {
				return nil, repairs, fmt.Errorf("chunk %q: %w", typ, ErrBadCRC)
			}
			repairs++
		}

		if len(chunks) == 0 && typ != "IHDR" {
			return nil, repairs, fmt.Errorf("first chunk is %q, want IHDR", typ)
		}
		chunks = append(chunks, Chunk{Type: typ, Data: data})

		if typ == "IEND" {
			break
		}
	}

	// Anything after IEND is not part of the image.
	var tail [1]byte
	if n, _ := io.ReadFull(r, tail[:]); n > 0 {
		if !fix {
			return nil, repairs, errors.New("trailing data after IEND")
		}
		repairs++
	}
	return chunks, repairs, nil
}

// WriteChunks serializes a chunk sequence, recomputing every length and
// checksum.
func WriteChunks(w io.Writer, chunks []Chunk) error {
	if _, err := io.WriteString(w, pngSignature); err != nil {
		return err
	}
	var head [8]byte
	var sum [4]byte
	for _, c := range chunks {
		if len(c.Type) != 4 {
			return fmt.Errorf("chunk type %q: want 4 characters", c.Type)
		}
		binary.BigEndian.PutUint32(head[:4], uint32(len(c.Data)))
		copy(head[4:], c.Type)
		if _, err := w.Write(head[:]); err != nil {
			return err
		}
		if _, err := w.Write(c.Data); err != nil {
			return err
		}
		binary.BigEndian.PutUint32(sum[:], chunkCRC(c.Type, c.Data))
		if _, err := w.Write(sum[:]); err != nil {
			return err
		}
	}
	return nil
}

// EncodeChunks serializes a chunk sequence to a byte slice.
func EncodeChunks(chunks []Chunk) []byte {
	size := len(pngSignature)
	for _, c := range chunks {
		size += 12 + len(c.Data)
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	// Writes to a bytes.Buffer cannot fail.
	_ = WriteChunks(buf, chunks)
	return buf.Bytes()
}

// chunkCRC computes the CRC-32 of the chunk type and data, as stored in
// the trailing checksum field.
func chunkCRC(typ string, data []byte) uint32 {
	h := crc32.NewIEEE()
	io.WriteString(h, typ)
	h.Write(data)
	return h.Sum32()
}

// findChunk returns the index of the first chunk of the given type, or -1.
func findChunk(chunks []Chunk, typ string) int {
	for i, c := range chunks {
		if c.Type == typ {
			return i
		}
	}
	return -1
}

// joinIDAT concatenates the payloads of every IDAT chunk, which together
// hold one continuous zlib stream.
func joinIDAT(chunks []Chunk) []byte {
	var size int
	for _, c := range chunks {
		if c.Type == "IDAT" {
			size += len(c.Data)
		}
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		if c.Type == "IDAT" {
			out = append(out, c.Data...)
		}
	}
	return out
}

// replaceIDAT swaps the IDAT run for a single chunk holding data,
// preserving the position of the first IDAT in the sequence.
func replaceIDAT(chunks []Chunk, data []byte) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	placed := false
	for _, c := range chunks {
		if c.Type == "IDAT" {
			if !placed {
				out = append(out, Chunk{Type: "IDAT", Data: data})
				placed = true
			}
			continue
		}
		out = append(out, c)
	}
	return out
}
