package byteio

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lenlo/mailcheck/internal/lockfile"
)

// mmapThreshold is the minimum file size the Byte Source will attempt to
// memory-map, per SPEC_FULL §4.1.
const mmapThreshold = 8 * 1024

// slurpInitialCap and slurpGrowthFactor drive the grown-buffer fallback
// read path when mmap is unavailable or disabled.
const (
	slurpInitialCap   = 64 * 1024
	slurpGrowthFactor = 1.5
)

// Options controls how a Source is opened.
type Options struct {
	// NoMmap forces the slurp-into-memory fallback even for large files.
	NoMmap bool
	// LockTimeout overrides lockfile.DefaultTimeout.
	LockTimeout time.Duration
}

// Source owns the Mailbox's single immutable backing byte slice, plus the
// exclusive advisory lock acquired while it is open.
type Source struct {
	path   string
	data   []byte
	mapped bool
	file   *os.File
	lock   *lockfile.Lock
}

// Open acquires path's dotlock and returns an immutable view of its
// contents, memory-mapped when the file is large enough and mapping is
// permitted, otherwise read into a grown buffer. Any mmap failure falls
// back to a plain read rather than failing the open.
func Open(path string, opts Options) (*Source, error) {
	lk, err := lockfile.Acquire(path, opts.LockTimeout)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		_ = lockfile.Release(lk)
		return nil, fmt.Errorf("byteio: open %s: %w", path, err)
	}

	src := &Source{path: path, file: f, lock: lk}

	info, err := f.Stat()
	if err == nil && !opts.NoMmap && info.Size() >= mmapThreshold {
		if data, merr := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED); merr == nil {
			src.data = data
			src.mapped = true
			return src, nil
		}
	}

	data, err := slurp(f)
	if err != nil {
		f.Close()
		_ = lockfile.Release(lk)
		return nil, fmt.Errorf("byteio: read %s: %w", path, err)
	}
	src.data = data
	return src, nil
}

// Bytes returns the immutable backing slice. Callers must not mutate it.
func (s *Source) Bytes() []byte { return s.data }

// Path returns the path this Source was opened from.
func (s *Source) Path() string { return s.path }

// Close unmaps (if mapped), closes the underlying file, and releases the
// dotlock.
func (s *Source) Close() error {
	var errs []error
	if s.mapped && s.data != nil {
		if err := unix.Munmap(s.data); err != nil {
			errs = append(errs, err)
		}
		s.data = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := lockfile.Release(s.lock); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// slurp reads all of f into a single grown buffer, doubling-ish
// (slurpGrowthFactor) its capacity as needed rather than relying on
// bytes.Buffer, per SPEC_FULL §4.1's explicit growth policy.
func slurp(f *os.File) ([]byte, error) {
	buf := make([]byte, 0, slurpInitialCap)
	for {
		if len(buf) == cap(buf) {
			newCap := int(float64(cap(buf)) * slurpGrowthFactor)
			if newCap <= cap(buf) {
				newCap = cap(buf) + slurpInitialCap
			}
			grown := make([]byte, len(buf), newCap)
			copy(grown, buf)
			buf = grown
		}
		n, err := f.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err != nil {
			if err == io.EOF {
				return buf, nil
			}
			return nil, err
		}
	}
}
