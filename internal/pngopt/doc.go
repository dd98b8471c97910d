// Package pngopt implements the PNG optimization engine. It works at the
// chunk level: the IDAT stream is decompressed, optionally re-filtered,
// and recompressed across a grid of parameters, disposable chunks are
// dropped, and unused palette entries are cut. The smallest complete
// encoding wins; the pixels an image decodes to are never altered.
package pngopt
