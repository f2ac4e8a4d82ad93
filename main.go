package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	simd "github.com/minio/sha256-simd"
	"github.com/pion/logging"

	"Sha2Sum/sha2"
)

var (
	errUsage    = errors.New("usage error")
	errMismatch = errors.New("checksum mismatch")
)

// exitCode maps an error returned by run to a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		return 1
	}
}

type config struct {
	dir             string
	out             string
	verify          bool
	list            string
	verbose         bool
	progress        bool
	engine          string
	checkpointDir   string
	checkpointEvery int64
	selftest        bool
	logLevel        string
}

func parseFlags(args []string, errOut io.Writer) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("sha2sum", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&cfg.dir, "dir", ".", "directory to scan")
	fs.StringVar(&cfg.out, "out", "hashes.txt", "output file (for hashing)")
	fs.BoolVar(&cfg.verify, "verify", false, "verify mode")
	fs.StringVar(&cfg.list, "list", "", "list file for verify mode")
	fs.BoolVar(&cfg.verbose, "verbose", false, "verbose verify output")
	fs.BoolVar(&cfg.progress, "progress", false, "show progress updates")
	fs.StringVar(&cfg.engine, "engine", engineAuto, "digest backend: auto, generic or simd")
	fs.StringVar(&cfg.checkpointDir, "checkpoint-dir", "", "save resumable per-file hash state here")
	fs.Int64Var(&cfg.checkpointEvery, "checkpoint-every", 64<<20, "bytes hashed between checkpoints")
	fs.BoolVar(&cfg.selftest, "selftest", false, "run the self test and print the selected backend")
	fs.StringVar(&cfg.logLevel, "log-level", "warn", "error, warn, info, debug or trace")
	if err := fs.Parse(args); err != nil {
		return config{}, fmt.Errorf("parse flags: %w: %w", err, errUsage)
	}
	if fs.NArg() > 0 {
		return config{}, fmt.Errorf("unexpected arguments %q: %w", fs.Args(), errUsage)
	}
	if cfg.verify && cfg.list == "" {
		return config{}, fmt.Errorf("-list required in verify mode: %w", errUsage)
	}
	return cfg, nil
}

var logLevels = map[string]logging.LogLevel{
	"disabled": logging.LogLevelDisabled,
	"error":    logging.LogLevelError,
	"warn":     logging.LogLevelWarn,
	"info":     logging.LogLevelInfo,
	"debug":    logging.LogLevelDebug,
	"trace":    logging.LogLevelTrace,
}

func newLoggerFactory(level string, w io.Writer) (*logging.DefaultLoggerFactory, error) {
	lvl, ok := logLevels[strings.ToLower(level)]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q: %w", level, errUsage)
	}
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = lvl
	lf.Writer = w
	return lf, nil
}

// hasher produces file digests with the configured backend.
type hasher struct {
	engine string
	ckpt   *checkpointStore
}

func (h *hasher) hashFile(path string) (string, error) {
	if h.ckpt != nil {
		d, err := h.ckpt.hashFile(path)
		if err != nil {
			return "", err
		}
		return d.String(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	var d sha2.Digest
	if h.engine == engineSIMD {
		s := simd.New()
		if _, err := io.Copy(s, f); err != nil {
			return "", err
		}
		copy(d[:], s.Sum(nil))
	} else {
		s := sha2.NewHasher()
		if _, err := io.Copy(s, f); err != nil {
			return "", err
		}
		d = s.Sum256()
	}
	return d.String(), nil
}

func main() {
	os.Exit(exitCode(run(os.Args[1:], os.Stdout, os.Stderr)))
}

func run(args []string, out, errOut io.Writer) error {
	err := execute(args, out, errOut)
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		_, _ = fmt.Fprintf(errOut, "error: %v\n", err)
	}
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func execute(args []string, out, errOut io.Writer) error {
	cfg, err := parseFlags(args, errOut)
	if err != nil {
		return err
	}
	lf, err := newLoggerFactory(cfg.logLevel, errOut)
	if err != nil {
		return err
	}
	log := lf.NewLogger("sha2sum")

	engine, err := resolveEngine(cfg.engine, cfg.checkpointDir != "")
	if err != nil {
		return err
	}
	log.Infof("using %s", describeEngine(engine))

	if cfg.selftest {
		if err := selfTest(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "self test passed, using SHA-256 backend: %s\n", describeEngine(engine))
		return err
	}

	h := &hasher{engine: engine}
	if cfg.checkpointDir != "" {
		if h.ckpt, err = newCheckpointStore(cfg.checkpointDir, cfg.checkpointEvery, lf); err != nil {
			return err
		}
	}

	if cfg.verify {
		return verifyChecksums(h, cfg.dir, cfg.list, cfg.verbose, cfg.progress, out, log)
	}
	return generateChecksums(h, cfg.dir, cfg.out, cfg.progress, out, log)
}

func startProgress(out io.Writer, done *int64, total int) func() {
	if total == 0 {
		return func() {}
	}
	ticker := time.NewTicker(time.Second)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fmt.Fprintf(out, "%d/%d\n", atomic.LoadInt64(done), total)
			case <-stop:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(stop)
		fmt.Fprintf(out, "%d/%d\n", atomic.LoadInt64(done), total)
	}
}

func generateChecksums(h *hasher, dir, output string, progress bool, out io.Writer, log logging.LeveledLogger) error {
	processed := map[string]bool{}
	if f, err := os.Open(output); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			parts := strings.SplitN(line, "\t", 2)
			if len(parts) == 2 {
				processed[parts[1]] = true
			}
		}
		f.Close()
	}

	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	outAbs, _ := filepath.Abs(output)
	mu := sync.Mutex{}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || processed[path] {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == outAbs {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}
	total := len(paths)
	log.Debugf("hashing %d files under %s (%d already listed)", total, dir, len(processed))
	var processedCount, failed int64

	jobs := make(chan string)
	wg := sync.WaitGroup{}
	workers := runtime.NumCPU()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				hash, err := h.hashFile(path)
				if err != nil {
					log.Errorf("%v", err)
					atomic.AddInt64(&failed, 1)
				} else {
					line := fmt.Sprintf("%s\t%s\n", hash, path)
					mu.Lock()
					if _, err := file.WriteString(line); err == nil {
						file.Sync()
					}
					mu.Unlock()
				}
				atomic.AddInt64(&processedCount, 1)
			}
		}()
	}

	stop := func() {}
	if progress {
		stop = startProgress(out, &processedCount, total)
	}

	for _, p := range paths {
		jobs <- p
	}
	close(jobs)
	wg.Wait()
	stop()

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be hashed", failed, total)
	}
	return nil
}

func verifyChecksums(h *hasher, dir, listfile string, verbose, progress bool, out io.Writer, log logging.LeveledLogger) error {
	type entry struct {
		hash string
		path string
	}
	var entries []entry

	f, err := os.Open(listfile)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(f)
	var prefix string
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) == 2 {
			p := strings.ReplaceAll(parts[1], "\\", "/")
			if first {
				prefix = p
				first = false
			} else {
				prefix = commonPrefix(prefix, p)
			}
			entries = append(entries, entry{hash: parts[0], path: p})
		} else if line != "" {
			log.Warnf("skipping malformed line %q", line)
		}
	}
	f.Close()

	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		prefix = prefix[:i+1]
	} else {
		prefix = ""
	}

	expected := map[string]string{}
	var paths []string
	for _, e := range entries {
		rel := strings.TrimPrefix(e.path, prefix)
		expected[rel] = e.hash
		paths = append(paths, rel)
	}

	var match, mismatch int

	total := len(paths)
	var processedCount int64

	type result struct {
		path   string
		status string
		ok     bool
	}

	jobs := make(chan string)
	workers := runtime.NumCPU()
	results := make(chan result, workers)
	done := make(chan struct{})
	wg := sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				path := filepath.Join(dir, name)
				exp, ok := expected[name]
				hash, hErr := h.hashFile(path)
				r := result{path: path}
				if hErr != nil {
					r.status = hErr.Error()
				} else if !ok || !strings.EqualFold(exp, hash) {
					r.status = "MISMATCH"
				} else {
					r.status = "OK"
					r.ok = true
				}
				results <- r
				atomic.AddInt64(&processedCount, 1)
			}
		}()
	}

	go func() {
		for r := range results {
			if r.ok {
				match++
			} else {
				mismatch++
			}
			if verbose || !r.ok {
				fmt.Fprintf(out, "%s %s\n", r.path, r.status)
			}
		}
		done <- struct{}{}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	stop := func() {}
	if progress {
		stop = startProgress(out, &processedCount, total)
	}

	for _, p := range paths {
		jobs <- p
	}
	close(jobs)
	wg.Wait()
	stop()

	<-done

	if !verbose {
		if mismatch == 0 {
			fmt.Fprintln(out, "All files match")
		}
	}
	fmt.Fprintf(out, "Total:%d Match:%d Mismatch:%d\n", total, match, mismatch)
	if mismatch > 0 {
		return fmt.Errorf("%d of %d files: %w", mismatch, total, errMismatch)
	}
	return nil
}

func commonPrefix(a, b string) string {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	i := 0
	for i < max && a[i] == b[i] {
		i++
	}
	return a[:i]
}
