package pngopt

// apngChunk reports whether the type belongs to the animation extension.
func apngChunk(typ string) bool {
	return typ == "acTL" || typ == "fcTL" || typ == "fdAT"
}

// stripChunks removes chunks the configuration marks as disposable.
// stripAll drops every ancillary chunk except tRNS, which carries pixel
// transparency rather than metadata. snip drops the animation chunks,
// reducing an animated file to its static image. Critical chunks are
// never touched. The removed type names are reported in file order.
func stripChunks(chunks []Chunk, stripAll, snip bool) (kept []Chunk, removed []string) {
	kept = make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		drop := false
		switch {
		case c.critical():
		case apngChunk(c.Type):
			drop = snip || stripAll
		case c.Type == "tRNS":
		default:
			drop = stripAll
		}
		if drop {
			removed = append(removed, c.Type)
			continue
		}
		kept = append(kept, c)
	}
	return kept, removed
}

// maxPaletteIndex scans decoded scanlines of a paletted image for the
// highest palette index in use. Padding bits at the end of a packed row
// are skipped, not read as phantom pixels.
func maxPaletteIndex(rows [][]byte, width int, depth byte) int {
	per := 8 / int(depth)
	mask := byte(1<<depth - 1)
	maxIdx := 0
	for _, row := range rows {
		for x := 0; x < width; x++ {
			shift := uint((per - 1 - x%per) * int(depth))
			idx := int(row[x/per] >> shift & mask)
			if idx > maxIdx {
				maxIdx = idx
			}
		}
	}
	return maxIdx
}

// truncatePalette cuts PLTE, and a tRNS that tracks it, down to the
// entries actually referenced by the image. It reports how many entries
// were dropped. The pixel stream is never modified.
func truncatePalette(chunks []Chunk, used int) (dropped int) {
	i := findChunk(chunks, "PLTE")
	if i < 0 {
		return 0
	}
	entries := len(chunks[i].Data) / 3
	if used >= entries {
		return 0
	}
	chunks[i].Data = chunks[i].Data[:3*used]

	if t := findChunk(chunks, "tRNS"); t >= 0 && len(chunks[t].Data) > used {
		chunks[t].Data = chunks[t].Data[:used]
	}
	return entries - used
}
