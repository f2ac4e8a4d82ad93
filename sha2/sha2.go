// Package sha2 implements the SHA-256 hash function as defined in FIPS 180-4,
// with an incremental context whose midstate can be saved and resumed.
package sha2

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
)

const (
	// Size is the length of a SHA-256 digest in bytes.
	Size = 32
	// BlockSize is the length of one compression block in bytes.
	BlockSize = 64
)

var (
	// ErrFinalized is returned by Update, Finalize and Midstate on a context that
	// has already produced its digest and has not been reinitialized.
	ErrFinalized = errors.New("sha2: context already finalized")
	// ErrNotFinalized is returned by Reinitialize on a context that is still accepting input.
	ErrNotFinalized = errors.New("sha2: context not finalized")
)

// State is the eight-word SHA-256 chaining value.
type State [8]uint32

// Block is one 64-byte compression unit.
type Block [BlockSize]byte

// Digest is a finished SHA-256 hash, stored in big-endian byte order.
type Digest [Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IV is the SHA-256 initial hash value.
var IV = State{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

// Bytes serializes the state as eight big-endian words.
func (s State) Bytes() Digest {
	var d Digest
	for i, v := range s {
		binary.BigEndian.PutUint32(d[i*4:], v)
	}
	return d
}

// Phase is the lifecycle position of a Context.
type Phase uint8

const (
	phaseZero Phase = iota
	// PhaseReady accepts Update and Finalize.
	PhaseReady
	// PhaseFinalized only accepts Reinitialize.
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Context is a running SHA-256 computation. The zero value is ready to use.
// A Context is not safe for concurrent use.
//
// The byte counter is 64 bits wide; inputs of 2^61 bytes or more overflow the
// encoded bit length and are not detected.
type Context struct {
	s     State
	buf   Block
	n     int
	len   uint64
	phase Phase
}

// New returns a context ready to accept input.
func New() *Context {
	c := new(Context)
	c.Init()
	return c
}

// Init resets c to the initial state regardless of its phase.
func (c *Context) Init() {
	c.s = IV
	c.buf = Block{}
	c.n = 0
	c.len = 0
	c.phase = PhaseReady
}

// ready lazily initializes a zero Context and reports whether c accepts input.
func (c *Context) ready() bool {
	if c.phase == phaseZero {
		c.Init()
	}
	return c.phase == PhaseReady
}

// Reinitialize resets a finalized context so it can hash a new message.
func (c *Context) Reinitialize() error {
	if c.phase != PhaseFinalized {
		return ErrNotFinalized
	}
	c.Init()
	return nil
}

// Ready reports whether c accepts Update and Finalize.
func (c *Context) Ready() bool { return c.phase != PhaseFinalized }

// Phase returns the lifecycle phase of c.
func (c *Context) Phase() Phase {
	if c.phase == phaseZero {
		return PhaseReady
	}
	return c.phase
}

// Len returns the number of bytes passed to Update since the last reset.
func (c *Context) Len() uint64 { return c.len }

// Update appends p to the message.
func (c *Context) Update(p []byte) error {
	if !c.ready() {
		return ErrFinalized
	}
	c.write(p)
	return nil
}

func (c *Context) write(p []byte) {
	c.len += uint64(len(p))
	if c.n > 0 {
		k := copy(c.buf[c.n:], p)
		c.n += k
		p = p[k:]
		if c.n < BlockSize {
			return
		}
		c.s = Compress(c.s, &c.buf)
		c.n = 0
	}
	if len(p) >= BlockSize {
		whole := len(p) &^ (BlockSize - 1)
		blocks(&c.s, p[:whole])
		p = p[whole:]
	}
	if len(p) > 0 {
		c.n = copy(c.buf[:], p)
	}
}

// Finalize pads the message, returns its digest and moves c to PhaseFinalized.
func (c *Context) Finalize() (Digest, error) {
	if !c.ready() {
		return Digest{}, ErrFinalized
	}
	c.pad()
	c.phase = PhaseFinalized
	return c.s.Bytes(), nil
}

// pad feeds the 0x80 marker, zero fill and big-endian bit length through the
// compressor, leaving the buffer empty.
func (c *Context) pad() {
	n := c.len
	var tmp [BlockSize + 8]byte
	tmp[0] = 0x80
	padLen := 1 + (119-n%BlockSize)%BlockSize
	binary.BigEndian.PutUint64(tmp[padLen:], n<<3)
	c.write(tmp[:padLen+8])
	c.len = n
}

// Sum256 returns the SHA-256 digest of p.
func Sum256(p []byte) Digest {
	var c Context
	c.Init()
	c.write(p)
	c.pad()
	return c.s.Bytes()
}
