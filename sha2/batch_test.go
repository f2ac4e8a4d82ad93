package sha2

import (
	"encoding/hex"
	"testing"
)

// Double SHA-256 of each 64-byte block of loremData.
var loremDouble64 = []string{
	"093ac4d00ff757e172857942fee7e0a0fc52d7db076345fb53147d172286f052",
	"48b6119e6e48816dcc571fb297a8d5259b82aa89e2fd2d56e828830be2fa53b7",
	"d66b078583b010a2f5513cf96003ab456c156eefb5ac3e6cdfb492222dcebf3e",
	"e9e5f6290e014fd2d44565b3bbf24c1637503c6e498c5a892b1babc437d146e9",
	"3d0e85a25073a15e5437d7941756c2d8e59fed4eae1542060d74745e2430ced1",
	"9e50a39ab8f04a57697867128458bec736aaee7c64a376ecff5541002a44684d",
	"b6539e1c95b7cadc7f7d74275c8ea684b5ac87a9f3ff75f234cd1a3b822c2b4e",
	"6a4630a6898623acf8a515e90aaa1e9ad7936b28e43bfd59c6ed7c5fa541cb51",
}

func loremDigests() []Digest {
	in := make([]Digest, len(loremData)/Size)
	for i := range in {
		copy(in[i][:], loremData[i*Size:])
	}
	return in
}

func TestDouble64(t *testing.T) {
	in := loremDigests()
	for _, n := range []int{1, 2, 3, 4, 8} {
		out := make([]Digest, n)
		Double64(out, in[:2*n])
		for i, d := range out {
			if d.String() != loremDouble64[i] {
				t.Fatalf("n=%d out[%d] = %s, want %s", n, i, d, loremDouble64[i])
			}
		}
	}
}

func TestDouble64MatchesSum256(t *testing.T) {
	in := loremDigests()
	out := make([]Digest, 1)
	Double64(out, in[2:4])
	first := Sum256(loremData[64:128])
	if want := Sum256(first[:]); out[0] != want {
		t.Fatalf("Double64 = %s, Sum256(Sum256) = %s", out[0], want)
	}
}

func TestDouble64PanicsOnLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Double64(make([]Digest, 2), make([]Digest, 3))
}

func TestMidstateBlocks(t *testing.T) {
	out := make([]Digest, 8)
	MidstateBlocks(out, IV, loremData)
	for i := range out {
		want := Compress(IV, (*Block)(loremData[i*BlockSize:(i+1)*BlockSize])).Bytes()
		if out[i] != want {
			t.Fatalf("out[%d] = %s, want %s", i, out[i], want)
		}
	}
	if out[0] != loremStates[1].Bytes() {
		t.Fatalf("out[0] = %s, want %s", out[0], loremStates[1].Bytes())
	}

	// Finishing a 64-byte prefix with a hand-laid final block gives the full digest.
	prefix := loremData[:BlockSize]
	c := New()
	_ = c.Update(prefix)
	m, _ := c.Midstate()
	final := Block{0: 'x', 1: 0x80}
	final[62], final[63] = 0x02, 0x08 // (64+1)*8 bits
	one := make([]Digest, 1)
	MidstateBlocks(one, m.State, final[:])
	if want := Sum256(append(append([]byte(nil), prefix...), 'x')); one[0] != want {
		t.Fatalf("MidstateBlocks = %s, want %s", one[0], want)
	}
}

func TestMidstateBlocksPanicsOnLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MidstateBlocks(make([]Digest, 1), IV, make([]byte, 63))
}

func TestMerkleRoot(t *testing.T) {
	if MerkleRoot(nil) != (Digest{}) {
		t.Fatal("empty root not zero")
	}
	if MerkleLevel(nil) != nil {
		t.Fatal("empty level not nil")
	}
	leaves := []Digest{Sum256([]byte{0}), Sum256([]byte{1}), Sum256([]byte{2})}
	if MerkleRoot(leaves[:1]) != leaves[0] {
		t.Fatal("single leaf root differs from leaf")
	}
	root := MerkleRoot(leaves)
	const want = "50fde71c451737ad83c79d791dfda614eeed7e4440971b7a92691919a06ba52b"
	if hex.EncodeToString(root[:]) != want {
		t.Fatalf("root = %s, want %s", root, want)
	}
	if len(leaves) != 3 || leaves[2] != Sum256([]byte{2}) {
		t.Fatal("MerkleRoot modified its input")
	}
}

func BenchmarkDouble64(b *testing.B) {
	in := loremDigests()
	out := make([]Digest, len(in)/2)
	b.SetBytes(int64(len(in) * Size))
	for i := 0; i < b.N; i++ {
		Double64(out, in)
	}
}
