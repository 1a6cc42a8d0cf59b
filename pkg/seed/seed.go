// Package seed produces the initial records a mining run starts from: random
// legal positions (standard or Chess960), a line-delimited FEN file, or every
// ply of every line (mainline and variations) in a PGN file. All three
// variants are consumed eagerly into a slice, since the scheduler reads the
// full sequence before its first wave regardless.
package seed
