package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/logging"

	"Sha2Sum/sha2"
)

func newTestStore(t *testing.T, every int64) *checkpointStore {
	t.Helper()
	lf := logging.NewDefaultLoggerFactory()
	lf.Writer = io.Discard
	s, err := newCheckpointStore(filepath.Join(t.TempDir(), "ckpt"), every, lf)
	if err != nil {
		t.Fatalf("newCheckpointStore() error = %v", err)
	}
	return s
}

func writeFile(t *testing.T, n int) (string, []byte) {
	t.Helper()
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 31)
	}
	path := filepath.Join(t.TempDir(), "big.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path, data
}

func midstateOf(t *testing.T, p []byte) sha2.Midstate {
	t.Helper()
	c := sha2.New()
	if err := c.Update(p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	m, err := c.Midstate()
	if err != nil {
		t.Fatalf("Midstate() error = %v", err)
	}
	return m
}

func TestCheckpointEncodeDecode(t *testing.T) {
	in := checkpoint{Size: 12345, ModTime: time.Now().UnixNano(), Path: "/data/file.bin", Mid: midstateOf(t, []byte("hello world"))}
	b, err := encodeCheckpoint(in)
	if err != nil {
		t.Fatalf("encodeCheckpoint() error = %v", err)
	}
	out, err := decodeCheckpoint(b)
	if err != nil {
		t.Fatalf("decodeCheckpoint() error = %v", err)
	}
	if out.Size != in.Size || out.ModTime != in.ModTime || out.Path != in.Path ||
		out.Mid.State != in.Mid.State || out.Mid.Length != in.Mid.Length || string(out.Mid.Buffer) != string(in.Mid.Buffer) {
		t.Fatalf("decoded %#v, want %#v", out, in)
	}
}

func TestCheckpointDecodeRejectsCorrupted(t *testing.T) {
	good, err := encodeCheckpoint(checkpoint{Size: 1, Path: "p", Mid: midstateOf(t, []byte("x"))})
	if err != nil {
		t.Fatalf("encodeCheckpoint() error = %v", err)
	}
	flipped := append([]byte(nil), good...)
	flipped[30] ^= 1
	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'

	for name, b := range map[string][]byte{
		"empty":     nil,
		"truncated": good[:len(good)-1],
		"bit flip":  flipped,
		"bad magic": badMagic,
	} {
		if _, err := decodeCheckpoint(b); !errors.Is(err, errBadCheckpoint) {
			t.Fatalf("%s: decodeCheckpoint() error = %v, want errBadCheckpoint", name, err)
		}
	}
}

func TestCheckpointResumesFromSavedState(t *testing.T) {
	s := newTestStore(t, 1<<30)
	path, data := writeFile(t, 5000)
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	// Save a midstate over a different prefix; a resumed hash must carry it.
	fake := make([]byte, 1000)
	if err := s.save(path, fi, midstateOf(t, fake)); err != nil {
		t.Fatalf("save() error = %v", err)
	}
	got, err := s.hashFile(path)
	if err != nil {
		t.Fatalf("hashFile() error = %v", err)
	}
	want := sha2.Sum256(append(fake, data[1000:]...))
	if got != want {
		t.Fatalf("resumed digest %s, want %s", got, want)
	}
	if _, err := os.Stat(s.fileFor(path)); !os.IsNotExist(err) {
		t.Fatalf("checkpoint not removed after finishing: %v", err)
	}
}

func TestCheckpointIgnoredWhenFileChanged(t *testing.T) {
	s := newTestStore(t, 1<<30)
	path, data := writeFile(t, 3000)
	fi, _ := os.Stat(path)
	if err := s.save(path, fi, midstateOf(t, make([]byte, 100))); err != nil {
		t.Fatalf("save() error = %v", err)
	}
	later := fi.ModTime().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
	got, err := s.hashFile(path)
	if err != nil {
		t.Fatalf("hashFile() error = %v", err)
	}
	if want := sha2.Sum256(data); got != want {
		t.Fatalf("digest %s, want %s", got, want)
	}
}

func TestCheckpointIgnoredWhenCorrupted(t *testing.T) {
	s := newTestStore(t, 1<<30)
	path, data := writeFile(t, 700)
	if err := os.WriteFile(s.fileFor(path), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := s.hashFile(path)
	if err != nil {
		t.Fatalf("hashFile() error = %v", err)
	}
	if want := sha2.Sum256(data); got != want {
		t.Fatalf("digest %s, want %s", got, want)
	}
}

func TestCheckpointPeriodicSave(t *testing.T) {
	s := newTestStore(t, 64)
	path, data := writeFile(t, 2*readBufSize+10)
	got, err := s.hashFile(path)
	if err != nil {
		t.Fatalf("hashFile() error = %v", err)
	}
	if want := sha2.Sum256(data); got != want {
		t.Fatalf("digest %s, want %s", got, want)
	}
	left, _ := filepath.Glob(filepath.Join(s.dir, "*"))
	if len(left) != 0 {
		t.Fatalf("files left in checkpoint dir: %v", left)
	}
}

func TestNewCheckpointStoreRejectsInterval(t *testing.T) {
	lf := logging.NewDefaultLoggerFactory()
	if _, err := newCheckpointStore(t.TempDir(), 0, lf); !errors.Is(err, errUsage) {
		t.Fatalf("newCheckpointStore(every=0) error = %v, want errUsage", err)
	}
}
