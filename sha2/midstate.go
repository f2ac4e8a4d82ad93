package sha2

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidMidstate is returned when a midstate is malformed or inconsistent.
var ErrInvalidMidstate = errors.New("sha2: invalid midstate")

const (
	midstateMagic = "sha\x03"
	// MidstateSize is the length of an encoded midstate.
	MidstateSize = len(midstateMagic) + 8*4 + 1 + BlockSize + 8
)

// Midstate is a snapshot of an unfinished computation: the chaining state,
// the buffered tail of the input and the total number of bytes written.
type Midstate struct {
	State  State
	Buffer []byte
	Length uint64
}

func (m Midstate) validate() error {
	if len(m.Buffer) >= BlockSize {
		return fmt.Errorf("%w: buffer holds %d bytes", ErrInvalidMidstate, len(m.Buffer))
	}
	if uint64(len(m.Buffer)) != m.Length%BlockSize {
		return fmt.Errorf("%w: buffer holds %d bytes, length %d implies %d",
			ErrInvalidMidstate, len(m.Buffer), m.Length, m.Length%BlockSize)
	}
	return nil
}

// MarshalBinary encodes m as magic, eight big-endian state words, the buffer
// count, the zero-padded 64-byte buffer and the big-endian byte length.
func (m Midstate) MarshalBinary() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	b := make([]byte, 0, MidstateSize)
	b = append(b, midstateMagic...)
	for _, v := range m.State {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	b = append(b, byte(len(m.Buffer)))
	b = append(b, m.Buffer...)
	b = b[:len(b)+BlockSize-len(m.Buffer)]
	b = binary.BigEndian.AppendUint64(b, m.Length)
	return b, nil
}

// UnmarshalBinary decodes a midstate produced by MarshalBinary.
func (m *Midstate) UnmarshalBinary(b []byte) error {
	if len(b) < len(midstateMagic) || string(b[:len(midstateMagic)]) != midstateMagic {
		return fmt.Errorf("%w: bad identifier", ErrInvalidMidstate)
	}
	if len(b) != MidstateSize {
		return fmt.Errorf("%w: size %d, want %d", ErrInvalidMidstate, len(b), MidstateSize)
	}
	b = b[len(midstateMagic):]
	var out Midstate
	for i := range out.State {
		out.State[i] = binary.BigEndian.Uint32(b)
		b = b[4:]
	}
	n := int(b[0])
	b = b[1:]
	if n >= BlockSize {
		return fmt.Errorf("%w: buffer count %d", ErrInvalidMidstate, n)
	}
	out.Buffer = append([]byte(nil), b[:n]...)
	b = b[BlockSize:]
	out.Length = binary.BigEndian.Uint64(b)
	if err := out.validate(); err != nil {
		return err
	}
	*m = out
	return nil
}

// Midstate returns a copy of the unfinished computation held by c.
func (c *Context) Midstate() (Midstate, error) {
	if !c.ready() {
		return Midstate{}, ErrFinalized
	}
	return Midstate{
		State:  c.s,
		Buffer: append([]byte(nil), c.buf[:c.n]...),
		Length: c.len,
	}, nil
}

// Restore replaces the contents of c with m and makes it ready for input.
// Continuing from a restored midstate yields the same digest as never having
// taken it.
func (c *Context) Restore(m Midstate) error {
	if err := m.validate(); err != nil {
		return err
	}
	c.s = m.State
	c.buf = Block{}
	c.n = copy(c.buf[:], m.Buffer)
	c.len = m.Length
	c.phase = PhaseReady
	return nil
}

// MarshalBinary encodes the midstate of c.
func (c *Context) MarshalBinary() ([]byte, error) {
	m, err := c.Midstate()
	if err != nil {
		return nil, err
	}
	return m.MarshalBinary()
}

// UnmarshalBinary restores c from an encoded midstate.
func (c *Context) UnmarshalBinary(b []byte) error {
	var m Midstate
	if err := m.UnmarshalBinary(b); err != nil {
		return err
	}
	return c.Restore(m)
}
