// Package idgen produces the three identifier families spec.md §3/§4.2
// defines: the stable scanId, the per-execution runId, and per-expectation
// ids. runId generation is grounded on the teacher's own use of
// github.com/oklog/ulid/v2 (internal/attractor/engine/handlers.go:
// `callID := ulid.Make().String()`).
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/oklog/ulid/v2"

	"github.com/odavlstudio/verax/internal/clock"
)

// ScanID derives the stable, human-referenceable scan identifier from the
// inputs that define a scan's identity: target URL, source path, and the
// resolved policy profile name.
func ScanID(url, srcPath, policyProfile string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, url)
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, srcPath)
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, policyProfile)
	return "scan_" + hex.EncodeToString(h.Sum(nil))[:16]
}

// RunID allocates the per-execution identifier. In normal mode it is a
// fresh ULID (monotonic, time-prefixed, globally unique). In deterministic
// mode (VERAX_DETERMINISTIC_MODE=1) the ULID's entropy is derived from
// scanID instead of the system RNG. The time prefix still comes from the
// Time Provider, so repeated deterministic-mode runs produce an identical
// runId only when VERAX_TEST_TIME pins the clock as well — useful for
// fixture tests that assert whole-directory-tree equality rather than
// just digest equality. runId is excluded from the determinism digest in both modes
// (spec.md §9), so this determinism is a test convenience, not a
// correctness requirement.
func RunID(scanID string, deterministic bool) string {
	if !deterministic {
		return ulid.Make().String()
	}
	seed := sha256.Sum256([]byte(scanID))
	entropy := ulid.Monotonic(newSeededReader(seed[:]), 0)
	return ulid.MustNew(ulid.Timestamp(clock.Now()), entropy).String()
}

// ExpectationID derives the stable per-expectation id: a hash of the
// (file, line, column, kind, value) tuple spec.md §3 names as the id's
// invariant basis.
func ExpectationID(file string, line, column int, kind, value string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, file)
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, itoa(line))
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, itoa(column))
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, kind)
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, value)
	return "exp_" + hex.EncodeToString(h.Sum(nil))[:16]
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// seededReader is a deterministic io.Reader over a fixed seed, expanded by
// repeated SHA-256 rehashing, used only in VERAX_DETERMINISTIC_MODE to
// drive ulid.Monotonic's entropy source.
type seededReader struct {
	state [32]byte
	pos   int
}

func newSeededReader(seed []byte) *seededReader {
	r := &seededReader{}
	copy(r.state[:], seed)
	return r
}

func (r *seededReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if r.pos == 0 {
			r.state = sha256.Sum256(r.state[:])
		}
		p[n] = r.state[r.pos]
		r.pos = (r.pos + 1) % len(r.state)
		n++
	}
	return n, nil
}
