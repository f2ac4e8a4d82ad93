package sha2

import (
	"encoding/binary"
	"math/bits"
)

var _K = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5, 0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3, 0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc, 0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7, 0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13, 0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3, 0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5, 0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208, 0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

func rotr(x uint32, n int) uint32 { return bits.RotateLeft32(x, -n) }

func bigSigma0(x uint32) uint32 { return rotr(x, 2) ^ rotr(x, 13) ^ rotr(x, 22) }
func bigSigma1(x uint32) uint32 { return rotr(x, 6) ^ rotr(x, 11) ^ rotr(x, 25) }
func sigma0(x uint32) uint32    { return rotr(x, 7) ^ rotr(x, 18) ^ x>>3 }
func sigma1(x uint32) uint32    { return rotr(x, 17) ^ rotr(x, 19) ^ x>>10 }

func ch(x, y, z uint32) uint32  { return z ^ (x & (y ^ z)) }
func maj(x, y, z uint32) uint32 { return (x & y) | (z & (x | y)) }

// Compress runs the SHA-256 compression function over one block and returns the
// new chaining state. It has no side effects and is safe for concurrent use.
func Compress(s State, b *Block) State {
	var w [64]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	for i := 16; i < 64; i++ {
		w[i] = sigma1(w[i-2]) + w[i-7] + sigma0(w[i-15]) + w[i-16]
	}

	a, b1, c, d, e, f, g, h := s[0], s[1], s[2], s[3], s[4], s[5], s[6], s[7]
	for i := 0; i < 64; i++ {
		t1 := h + bigSigma1(e) + ch(e, f, g) + _K[i] + w[i]
		t2 := bigSigma0(a) + maj(a, b1, c)
		h = g
		g = f
		f = e
		e = d + t1
		d = c
		c = b1
		b1 = a
		a = t1 + t2
	}

	s[0] += a
	s[1] += b1
	s[2] += c
	s[3] += d
	s[4] += e
	s[5] += f
	s[6] += g
	s[7] += h
	return s
}

// blocks compresses every whole block of p into s. len(p) must be a multiple of BlockSize.
func blocks(s *State, p []byte) {
	for len(p) >= BlockSize {
		*s = Compress(*s, (*Block)(p[:BlockSize]))
		p = p[BlockSize:]
	}
}
