package pngopt

import "fmt"

// Scanline delta filters from the PNG specification, plus the adaptive
// pseudo-filter accepted on the command line.
const (
	filterNone    = 0
	filterSub     = 1
	filterUp      = 2
	filterAverage = 3
	filterPaeth   = 4
	filterAdapt   = 5
)

// unfilter reverses the per-row delta filters of a decompressed image
// stream, returning bare scanlines. The stream must be exactly height rows
// of one filter byte plus rowBytes data.
func unfilter(raw []byte, h header) ([][]byte, error) {
	rb := h.rowBytes()
	if want := h.height * (rb + 1); len(raw) != want {
		return nil, fmt.Errorf("decompressed stream is %d bytes, want %d", len(raw), want)
	}
	step := h.filterStep()

	rows := make([][]byte, h.height)
	var prior []byte
	off := 0
	for y := 0; y < h.height; y++ {
		f := raw[off]
		row := make([]byte, rb)
		copy(row, raw[off+1:off+1+rb])
		if err := unfilterRow(row, prior, step, int(f)); err != nil {
			return nil, fmt.Errorf("row %d: %w", y, err)
		}
		rows[y] = row
		prior = row
		off += rb + 1
	}
	return rows, nil
}

// unfilterRow converts one filtered row back to raw bytes in place. prior
// is the already unfiltered previous row, nil on the first row.
func unfilterRow(row, prior []byte, step, f int) error {
	up := func(i int) byte {
		if prior == nil {
			return 0
		}
		return prior[i]
	}
	left := func(i int) byte {
		if i < step {
			return 0
		}
		return row[i-step]
	}
	upLeft := func(i int) byte {
		if prior == nil || i < step {
			return 0
		}
		return prior[i-step]
	}

	switch f {
	case filterNone:
	case filterSub:
		for i := range row {
			row[i] += left(i)
		}
	case filterUp:
		for i := range row {
			row[i] += up(i)
		}
	case filterAverage:
		for i := range row {
			row[i] += byte((int(left(i)) + int(up(i))) / 2)
		}
	case filterPaeth:
		for i := range row {
			row[i] += paeth(left(i), up(i), upLeft(i))
		}
	default:
		return fmt.Errorf("unknown filter %d", f)
	}
	return nil
}

// filterRow writes the filtered form of row into dst using filter f.
func filterRow(dst, row, prior []byte, step, f int) {
	up := func(i int) byte {
		if prior == nil {
			return 0
		}
		return prior[i]
	}
	left := func(i int) byte {
		if i < step {
			return 0
		}
		return row[i-step]
	}
	upLeft := func(i int) byte {
		if prior == nil || i < step {
			return 0
		}
		return prior[i-step]
	}

	switch f {
	case filterNone:
		copy(dst, row)
	case filterSub:
		for i := range row {
			dst[i] = row[i] - left(i)
		}
	case filterUp:
		for i := range row {
			dst[i] = row[i] - up(i)
		}
	case filterAverage:
		for i := range row {
			dst[i] = row[i] - byte((int(left(i))+int(up(i)))/2)
		}
	case filterPaeth:
		for i := range row {
			dst[i] = row[i] - paeth(left(i), up(i), upLeft(i))
		}
	}
}

// applyFilters rebuilds a filtered image stream from bare scanlines.
// strategy is one of the five fixed filters, or filterAdapt to pick a
// filter per row by the minimum sum of absolute differences.
func applyFilters(rows [][]byte, step, strategy int) []byte {
	if len(rows) == 0 {
		return nil
	}
	rb := len(rows[0])
	out := make([]byte, 0, len(rows)*(rb+1))
	scratch := make([]byte, rb)

	var prior []byte
	for _, row := range rows {
		f := strategy
		if strategy == filterAdapt {
			f = bestRowFilter(scratch, row, prior, step)
		}
		filterRow(scratch, row, prior, step, f)
		out = append(out, byte(f))
		out = append(out, scratch...)
		prior = row
	}
	return out
}

// bestRowFilter picks the fixed filter whose output minimizes the sum of
// absolute differences, ties going to the lower filter id.
func bestRowFilter(scratch, row, prior []byte, step int) int {
	best, bestSum := filterNone, -1
	for f := filterNone; f <= filterPaeth; f++ {
		filterRow(scratch, row, prior, step, f)
		sum := 0
		for _, b := range scratch {
			if b < 128 {
				sum += int(b)
			} else {
				sum += 256 - int(b)
			}
		}
		if bestSum < 0 || sum < bestSum {
			best, bestSum = f, sum
		}
	}
	return best
}

// paeth is the PNG Paeth predictor.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
