package sha2

import "fmt"

// Padding blocks for a 64-byte message and for a 32-byte digest re-hash.
var (
	pad64 = Block{0: 0x80, 62: 0x02}
	pad32 = Block{32: 0x80, 62: 0x01}
)

// Double64 computes SHA256(SHA256(in[2i] || in[2i+1])) into out[i] for every i.
// It panics unless len(in) == 2*len(out).
func Double64(out []Digest, in []Digest) {
	if len(in) != 2*len(out) {
		panic(fmt.Sprintf("sha2: Double64 with %d inputs for %d outputs", len(in), len(out)))
	}
	for i := range out {
		var b Block
		copy(b[:Size], in[2*i][:])
		copy(b[Size:], in[2*i+1][:])
		s := Compress(IV, &b)
		s = Compress(s, &pad64)

		b = pad32
		d := s.Bytes()
		copy(b[:Size], d[:])
		out[i] = Compress(IV, &b).Bytes()
	}
}

// MidstateBlocks compresses each 64-byte block of in starting from mid and
// writes the serialized result to out. No padding is added; callers lay out the
// final block themselves. It panics unless len(in) == BlockSize*len(out).
func MidstateBlocks(out []Digest, mid State, in []byte) {
	if len(in) != BlockSize*len(out) {
		panic(fmt.Sprintf("sha2: MidstateBlocks with %d bytes for %d outputs", len(in), len(out)))
	}
	for i := range out {
		out[i] = Compress(mid, (*Block)(in[i*BlockSize:(i+1)*BlockSize])).Bytes()
	}
}

// MerkleLevel hashes adjacent pairs of level with Double64 and returns the next
// level up. An odd trailing node is paired with itself.
func MerkleLevel(level []Digest) []Digest {
	if len(level) == 0 {
		return nil
	}
	in := level
	if len(in)%2 == 1 {
		in = make([]Digest, len(level)+1)
		copy(in, level)
		in[len(level)] = level[len(level)-1]
	}
	out := make([]Digest, len(in)/2)
	Double64(out, in)
	return out
}

// MerkleRoot folds leaves with MerkleLevel until one node remains. It returns
// the zero digest for no leaves.
func MerkleRoot(leaves []Digest) Digest {
	if len(leaves) == 0 {
		return Digest{}
	}
	level := leaves
	for len(level) > 1 {
		level = MerkleLevel(level)
	}
	return level[0]
}
