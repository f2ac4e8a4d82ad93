package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/pion/logging"

	"Sha2Sum/sha2"
)

const (
	checkpointMagic   = "S2CK"
	checkpointVersion = uint16(1)
	readBufSize       = 1 << 20
)

var errBadCheckpoint = errors.New("invalid checkpoint")

// checkpoint records how far hashing of one file got.
type checkpoint struct {
	Size    int64
	ModTime int64
	Path    string
	Mid     sha2.Midstate
}

func (c checkpoint) matches(path string, fi os.FileInfo) bool {
	return c.Path == path && c.Size == fi.Size() && c.ModTime == fi.ModTime().UnixNano() &&
		c.Mid.Length <= uint64(fi.Size())
}

func encodeCheckpoint(c checkpoint) ([]byte, error) {
	mid, err := c.Mid.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if len(c.Path) > 0xffff {
		return nil, fmt.Errorf("path too long for checkpoint: %d bytes", len(c.Path))
	}
	b := make([]byte, 0, 4+2+8+8+2+len(c.Path)+len(mid)+8)
	b = append(b, checkpointMagic...)
	b = binary.BigEndian.AppendUint16(b, checkpointVersion)
	b = binary.BigEndian.AppendUint64(b, uint64(c.Size))
	b = binary.BigEndian.AppendUint64(b, uint64(c.ModTime))
	b = binary.BigEndian.AppendUint16(b, uint16(len(c.Path)))
	b = append(b, c.Path...)
	b = append(b, mid...)
	b = binary.BigEndian.AppendUint64(b, xxhash.Sum64(b))
	return b, nil
}

func decodeCheckpoint(b []byte) (checkpoint, error) {
	const fixed = 4 + 2 + 8 + 8 + 2
	if len(b) < fixed+sha2.MidstateSize+8 || string(b[:4]) != checkpointMagic {
		return checkpoint{}, fmt.Errorf("%w: bad header", errBadCheckpoint)
	}
	body, sum := b[:len(b)-8], binary.BigEndian.Uint64(b[len(b)-8:])
	if xxhash.Sum64(body) != sum {
		return checkpoint{}, fmt.Errorf("%w: checksum mismatch", errBadCheckpoint)
	}
	if v := binary.BigEndian.Uint16(b[4:]); v != checkpointVersion {
		return checkpoint{}, fmt.Errorf("%w: unsupported version %d", errBadCheckpoint, v)
	}
	var c checkpoint
	c.Size = int64(binary.BigEndian.Uint64(b[6:]))
	c.ModTime = int64(binary.BigEndian.Uint64(b[14:]))
	n := int(binary.BigEndian.Uint16(b[22:]))
	if len(body) != fixed+n+sha2.MidstateSize {
		return checkpoint{}, fmt.Errorf("%w: path length %d", errBadCheckpoint, n)
	}
	c.Path = string(body[fixed : fixed+n])
	if err := c.Mid.UnmarshalBinary(body[fixed+n:]); err != nil {
		return checkpoint{}, fmt.Errorf("%w: %w", errBadCheckpoint, err)
	}
	return c, nil
}

// checkpointStore hashes files with the streaming context and saves its
// midstate every `every` bytes, so an interrupted run resumes mid-file.
type checkpointStore struct {
	dir   string
	every int64
	log   logging.LeveledLogger
}

func newCheckpointStore(dir string, every int64, lf logging.LoggerFactory) (*checkpointStore, error) {
	if every <= 0 {
		return nil, fmt.Errorf("checkpoint interval must be positive: %w", errUsage)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &checkpointStore{dir: dir, every: every, log: lf.NewLogger("checkpoint")}, nil
}

func (s *checkpointStore) fileFor(path string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%016x.ckpt", xxhash.Sum64String(path)))
}

func (s *checkpointStore) load(path string, fi os.FileInfo) (sha2.Midstate, bool) {
	data, err := os.ReadFile(s.fileFor(path))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnf("read checkpoint for %s: %v", path, err)
		}
		return sha2.Midstate{}, false
	}
	c, err := decodeCheckpoint(data)
	if err != nil {
		s.log.Warnf("discarding checkpoint for %s: %v", path, err)
		return sha2.Midstate{}, false
	}
	if !c.matches(path, fi) {
		s.log.Infof("file changed since checkpoint, restarting %s", path)
		return sha2.Midstate{}, false
	}
	return c.Mid, true
}

func (s *checkpointStore) save(path string, fi os.FileInfo, m sha2.Midstate) error {
	data, err := encodeCheckpoint(checkpoint{Size: fi.Size(), ModTime: fi.ModTime().UnixNano(), Path: path, Mid: m})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".sha2sum-ckpt-*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync checkpoint temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.fileFor(path)); err != nil {
		return fmt.Errorf("rename checkpoint temp file: %w", err)
	}
	return nil
}

func (s *checkpointStore) remove(path string) {
	if err := os.Remove(s.fileFor(path)); err != nil && !os.IsNotExist(err) {
		s.log.Warnf("remove checkpoint for %s: %v", path, err)
	}
}

func (s *checkpointStore) hashFile(path string) (sha2.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return sha2.Digest{}, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return sha2.Digest{}, err
	}

	ctx := sha2.New()
	if m, ok := s.load(path, fi); ok {
		if err := ctx.Restore(m); err != nil {
			return sha2.Digest{}, err
		}
		if _, err := f.Seek(int64(m.Length), io.SeekStart); err != nil {
			return sha2.Digest{}, fmt.Errorf("seek %s: %w", path, err)
		}
		s.log.Debugf("resuming %s at byte %d", path, m.Length)
	}

	buf := make([]byte, readBufSize)
	var since int64
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if err := ctx.Update(buf[:n]); err != nil {
				return sha2.Digest{}, err
			}
			since += int64(n)
			if since >= s.every {
				since = 0
				m, err := ctx.Midstate()
				if err != nil {
					return sha2.Digest{}, err
				}
				if err := s.save(path, fi, m); err != nil {
					s.log.Warnf("save checkpoint for %s: %v", path, err)
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return sha2.Digest{}, fmt.Errorf("read %s: %w", path, rerr)
		}
	}

	d, err := ctx.Finalize()
	if err != nil {
		return sha2.Digest{}, err
	}
	s.remove(path)
	return d, nil
}
