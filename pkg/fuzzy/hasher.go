// Package fuzzy fingerprints files with context-triggered piecewise hashing
// (ssdeep) and scores how similar two fingerprints are.
package fuzzy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glaslos/ssdeep"
	"github.com/sdejongh/fwdiffer/pkg/models"
	"github.com/sdejongh/fwdiffer/pkg/ratelimit"
)

func init() {
	// Small binaries are common in firmware. Without Force ssdeep refuses
	// inputs of 4096 bytes or less.
	ssdeep.Force = true
}

// Digest is the fingerprint of one file
type Digest struct {
	// Fuzzy is the ssdeep "blocksize:hash:hash" string, empty for empty files
	Fuzzy string
	// SHA256 is the hex content hash, used to recognise identical content
	SHA256 string
	Size   int64
}

// Degenerate reports whether the digest has no piecewise part
func (d Digest) Degenerate() bool {
	return d.Fuzzy == ""
}

// String renders the digest for debug output
func (d Digest) String() string {
	if d.Degenerate() {
		return "sha256:" + d.SHA256
	}
	return d.Fuzzy
}

// Hasher computes digests. It is safe for concurrent use.
type Hasher struct {
	bufferSize int
	bufferPool *sync.Pool
	timeout    time.Duration
	limiter    *ratelimit.Limiter
}

// NewHasher creates a hasher reading files in bufferSize chunks.
// A positive timeout bounds each Fingerprint call.
func NewHasher(bufferSize int, timeout time.Duration) *Hasher {
	if bufferSize < 4096 {
		bufferSize = 4096
	}
	return &Hasher{
		bufferSize: bufferSize,
		timeout:    timeout,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// WithReadLimit throttles file reads of every Fingerprint call through l.
// A nil limiter removes the throttle.
func (h *Hasher) WithReadLimit(l *ratelimit.Limiter) *Hasher {
	h.limiter = l
	return h
}

// Fingerprint streams the file at path once, feeding both the SHA-256 and the
// ssdeep state. Only the digests are kept in memory.
func (h *Hasher) Fingerprint(ctx context.Context, path string) (Digest, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	file, err := os.Open(path)
	if err != nil {
		return Digest{}, &models.HashError{Path: path, Err: err}
	}
	defer file.Close()

	type fuzzyResult struct {
		digest string
		err    error
	}
	pr, pw := io.Pipe()
	done := make(chan fuzzyResult, 1)
	go func() {
		digest, err := ssdeep.FuzzyReader(pr)
		// unblocks the writer if ssdeep stopped before EOF
		pr.CloseWithError(err)
		done <- fuzzyResult{digest: digest, err: err}
	}()

	sum := sha256.New()
	size, err := h.copy(ctx, io.MultiWriter(sum, pw), file)
	pw.CloseWithError(err)
	res := <-done
	if err != nil {
		return Digest{}, &models.HashError{Path: path, Err: err}
	}

	d := Digest{SHA256: hex.EncodeToString(sum.Sum(nil)), Size: size}
	if size == 0 {
		return d, nil
	}
	if res.err != nil {
		return Digest{}, &models.HashError{Path: path, Err: res.err}
	}
	d.Fuzzy = res.digest
	return d, nil
}

// copy moves file to w through a pooled buffer, checking ctx between reads
func (h *Hasher) copy(ctx context.Context, w io.Writer, file io.Reader) (int64, error) {
	src := ratelimit.NewReader(ctx, file, h.limiter)

	bufPtr := h.bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer h.bufferPool.Put(bufPtr)

	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, err := src.Read(buffer)
		if n > 0 {
			if _, werr := w.Write(buffer[:n]); werr != nil {
				return total, fmt.Errorf("failed to hash file: %w", werr)
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("failed to read file: %w", err)
		}
	}
}

// ErrEmptyDigest is returned by Similarity for a zero Digest
var ErrEmptyDigest = errors.New("empty digest")

// Similarity scores two digests from 0 (nothing in common) to 100 (identical).
// The score does not depend on argument order.
func Similarity(a, b Digest) (int, error) {
	if a.SHA256 == "" || b.SHA256 == "" {
		return 0, ErrEmptyDigest
	}
	if a.SHA256 == b.SHA256 {
		return 100, nil
	}
	if a.Degenerate() || b.Degenerate() {
		return 0, nil
	}

	if !comparableBlockSizes(a.Fuzzy, b.Fuzzy) {
		return 0, nil
	}

	first, second := a.Fuzzy, b.Fuzzy
	if second < first {
		first, second = second, first
	}
	score, err := ssdeep.Distance(first, second)
	if err != nil {
		return 0, fmt.Errorf("failed to compare digests: %w", err)
	}
	return clamp(score), nil
}

// comparableBlockSizes reports whether two ssdeep digests have equal block
// sizes or one is twice the other; other pairs share no comparable signature.
func comparableBlockSizes(a, b string) bool {
	x, okA := blockSize(a)
	y, okB := blockSize(b)
	if !okA || !okB {
		// let ssdeep reject malformed digests
		return true
	}
	return x == y || x == 2*y || y == 2*x
}

func blockSize(digest string) (int, bool) {
	prefix, _, found := strings.Cut(digest, ":")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(prefix)
	return n, err == nil
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
