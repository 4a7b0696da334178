package daemon

import "bytes"

// Magic is the marker the daemon-mode leaf process writes to its stdout
// once its listener is up, signaling the opener that it is safe to start
// forwarding. It is deliberately unlikely to appear in ordinary process
// output.
const Magic = "\x00RSRS\x00magic\x00number\x00"

// MagicScanner passes bytes from a stream through Feed, which returns the
// bytes safe to forward, holding back any suffix that could still turn into
// the marker, and reports once the full marker has been seen. Marker bytes
// themselves are never forwarded. A single Feed call may see a partial match
// later falsified by the next call's bytes, in which case the held-back
// bytes (minus whatever new prefix match remains) are returned untouched.
type MagicScanner struct {
	marker  []byte
	pending []byte // bytes so far that are a prefix of marker
	found   bool
}

// NewMagicScanner creates a scanner looking for marker.
func NewMagicScanner(marker string) *MagicScanner {
	return &MagicScanner{marker: []byte(marker)}
}

// Found reports whether the marker has been seen so far.
func (s *MagicScanner) Found() bool {
	return s.found
}

// Feed processes a new chunk of input, returning the bytes that should be
// forwarded to the real output and whether the marker was completed during
// this call.
func (s *MagicScanner) Feed(chunk []byte) (forward []byte, justFound bool) {
	if s.found {
		return chunk, false
	}

	combined := append(append([]byte(nil), s.pending...), chunk...)
	s.pending = nil

	if idx := bytes.Index(combined, s.marker); idx >= 0 {
		forward = append(forward, combined[:idx]...)
		s.found = true
		return forward, true
	}

	// No complete marker yet. Find the longest suffix of combined that is
	// itself a prefix of the marker — that suffix might still grow into the
	// marker on the next call, so it's held back as pending. Everything
	// before it is safe to forward now.
	maxSuffix := len(s.marker) - 1
	if maxSuffix > len(combined) {
		maxSuffix = len(combined)
	}
	for l := maxSuffix; l > 0; l-- {
		suffix := combined[len(combined)-l:]
		if bytes.Equal(suffix, s.marker[:l]) {
			forward = append(forward, combined[:len(combined)-l]...)
			s.pending = append(s.pending, suffix...)
			return forward, false
		}
	}

	forward = append(forward, combined...)
	return forward, false
}
