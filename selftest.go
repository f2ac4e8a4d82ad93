package main

import (
	"fmt"

	simd "github.com/minio/sha256-simd"

	"Sha2Sum/sha2"
)

var selfTestVectors = []struct {
	in   string
	want string
}{
	{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	{"abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq", "248d6a61d20638b8e5c026930c3e6039a33ce45964ff2167f6ecedd419db06c1"},
}

// selfTest checks the engine against published vectors and against
// sha256-simd for every length up to a few blocks, chunked and resumed.
func selfTest() error {
	for _, v := range selfTestVectors {
		if got := sha2.Sum256([]byte(v.in)); got.String() != v.want {
			return fmt.Errorf("self test: digest of %q is %s, want %s", v.in, got, v.want)
		}
	}

	buf := make([]byte, 4*sha2.BlockSize+1)
	for i := range buf {
		buf[i] = byte(i*7 + 3)
	}
	for n := 0; n <= len(buf); n++ {
		msg := buf[:n]
		want := sha2.Digest(simd.Sum256(msg))
		if got := sha2.Sum256(msg); got != want {
			return fmt.Errorf("self test: length %d: got %s, sha256-simd %s", n, got, want)
		}

		c := sha2.New()
		half := n / 2
		if err := c.Update(msg[:half]); err != nil {
			return err
		}
		enc, err := c.MarshalBinary()
		if err != nil {
			return err
		}
		var r sha2.Context
		if err := r.UnmarshalBinary(enc); err != nil {
			return err
		}
		if err := r.Update(msg[half:]); err != nil {
			return err
		}
		got, err := r.Finalize()
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("self test: length %d resumed at %d: got %s, want %s", n, half, got, want)
		}
	}

	pair := []sha2.Digest{sha2.Sum256([]byte("left")), sha2.Sum256([]byte("right"))}
	out := make([]sha2.Digest, 1)
	sha2.Double64(out, pair)
	first := sha2.Sum256(append(pair[0][:], pair[1][:]...))
	if want := sha2.Sum256(first[:]); out[0] != want {
		return fmt.Errorf("self test: double64 got %s, want %s", out[0], want)
	}
	return nil
}
