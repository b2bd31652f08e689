// Package crc implements the checksum algorithm used by the Unix cksum(1)
// utility (POSIX CRC, polynomial 0x04C11DB7, MSB-first), independent of
// Go's stdlib hash/crc32 which implements the different, far more common
// reflected CRC-32 (IEEE 802.3) variant. cksum's table, byte order, and
// length-folding step do not match any stdlib algorithm, so the table and
// transform are implemented directly here, following the same "256-entry
// lookup table built once at init" shape the stdlib's own crc32 package
// uses.
package crc

// polynomial is the generator polynomial cksum uses (CRC-32/MPEG-2 family,
// MSB-first, no final reflection).
const polynomial uint32 = 0x04C11DB7

// table holds the precomputed 256-entry lookup table for the polynomial.
var table [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		acc := uint32(i) << 24
		for bit := 0; bit < 8; bit++ {
			if acc&0x80000000 != 0 {
				acc = (acc << 1) ^ polynomial
			} else {
				acc <<= 1
			}
		}
		table[i] = acc
	}
}

// step folds one byte into the running accumulator.
func step(acc uint32, b byte) uint32 {
	return (acc << 8) ^ table[byte(acc>>24)^b]
}

// Checksum computes the cksum(1)-compatible CRC of data: feed every data
// byte through the table-driven transform, then fold in the byte length
// of data (little-endian, one byte at a time, stopping once the
// remaining length is zero), then invert the accumulator.
//
// A zero-length input contributes no length bytes at all — cksum treats
// length 0 as "nothing left to fold" rather than emitting a single zero
// byte.
func Checksum(data []byte) uint32 {
	var acc uint32
	for _, b := range data {
		acc = step(acc, b)
	}

	length := uint64(len(data))
	for length != 0 {
		acc = step(acc, byte(length&0xFF))
		length >>= 8
	}

	return ^acc
}
