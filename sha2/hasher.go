package sha2

import "hash"

// Hasher adapts a Context to hash.Hash. Sum works on a copy, so writes may
// continue after it.
type Hasher struct{ c Context }

var _ hash.Hash = (*Hasher)(nil)

// NewHasher returns a hash.Hash computing SHA-256.
func NewHasher() *Hasher {
	h := new(Hasher)
	h.c.Init()
	return h
}

func (h *Hasher) Write(p []byte) (int, error) {
	if err := h.c.Update(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (h *Hasher) Sum(b []byte) []byte {
	c := h.c
	d, _ := c.Finalize()
	return append(b, d[:]...)
}

// Sum256 returns the digest of everything written so far.
func (h *Hasher) Sum256() Digest {
	c := h.c
	d, _ := c.Finalize()
	return d
}

func (h *Hasher) Reset()         { h.c.Init() }
func (h *Hasher) Size() int      { return Size }
func (h *Hasher) BlockSize() int { return BlockSize }

// Len returns the number of bytes written so far.
func (h *Hasher) Len() int64 { return int64(h.c.Len()) }

// State returns the encoded midstate.
func (h *Hasher) State() ([]byte, error) { return h.c.MarshalBinary() }

// Restore resets the hasher to an encoded midstate.
func (h *Hasher) Restore(state []byte) error { return h.c.UnmarshalBinary(state) }

func (h *Hasher) MarshalBinary() ([]byte, error) { return h.c.MarshalBinary() }
func (h *Hasher) UnmarshalBinary(b []byte) error { return h.c.UnmarshalBinary(b) }
