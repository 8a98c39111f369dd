package http1

// chunkPhase steps through RFC 7230 §4.1's chunked-body grammar one
// chunk at a time. The decoder works in place over a
// Workspace-resident buffer; the parser owns no socket of its own.
type chunkPhase uint8

const (
	chunkNeedSize chunkPhase = iota
	chunkInBody
	chunkNeedCRLF
	chunkNeedTrailer
	chunkDone
)

const maxChunkSize = 16 << 20 // 16 MiB

// chunkDecoder walks raw chunked-encoded bytes and compacts the actual
// body octets toward the front of the same buffer, discarding the
// size lines, chunk-extensions and inter-chunk CRLFs as it goes so the
// decoded body forms one contiguous span that the parser then moves
// into its body ring.
type chunkDecoder struct {
	phase     chunkPhase
	remaining uint64
}

// step consumes as much of raw[rawPos:rawEnd] as it can, writing
// decoded body bytes to raw[decodedEnd:] (decodedEnd <= rawPos always,
// so the copy never reads before it writes). It returns the updated
// rawPos and decodedEnd, and ErrNeedMoreInput if it ran out of input
// bytes before reaching a stable point.
func (c *chunkDecoder) step(raw []byte, rawPos, rawEnd, decodedEnd int, trailers *trailerScanner) (newRawPos, newDecodedEnd int, err error) {
	for {
		switch c.phase {
		case chunkNeedSize:
			line, n, ok := findLine(raw, rawPos, rawEnd)
			if !ok {
				// Reject bad size bytes eagerly rather than waiting
				// for a CRLF that may never come.
				if !validChunkSizePrefix(raw[rawPos:rawEnd]) {
					return rawPos, decodedEnd, ErrChunkedEncoding
				}
				return rawPos, decodedEnd, ErrNeedMoreInput
			}
			size, ok := parseChunkSize(line)
			if !ok {
				return rawPos, decodedEnd, ErrChunkedEncoding
			}
			rawPos += n
			if size == 0 {
				c.phase = chunkNeedTrailer
				trailers.reset()
				continue
			}
			c.remaining = size
			c.phase = chunkInBody
		case chunkInBody:
			avail := rawEnd - rawPos
			if uint64(avail) > c.remaining {
				avail = int(c.remaining)
			}
			if avail == 0 {
				if c.remaining == 0 {
					c.phase = chunkNeedCRLF
					continue
				}
				return rawPos, decodedEnd, ErrNeedMoreInput
			}
			copy(raw[decodedEnd:decodedEnd+avail], raw[rawPos:rawPos+avail])
			decodedEnd += avail
			rawPos += avail
			c.remaining -= uint64(avail)
			if c.remaining == 0 {
				c.phase = chunkNeedCRLF
			} else {
				return rawPos, decodedEnd, ErrNeedMoreInput
			}
		case chunkNeedCRLF:
			if rawEnd-rawPos < 2 {
				return rawPos, decodedEnd, ErrNeedMoreInput
			}
			if raw[rawPos] != '\r' || raw[rawPos+1] != '\n' {
				return rawPos, decodedEnd, ErrChunkedEncoding
			}
			rawPos += 2
			c.phase = chunkNeedSize
		case chunkNeedTrailer:
			done, n, err := trailers.feed(raw, rawPos, rawEnd)
			if err != nil {
				return rawPos, decodedEnd, err
			}
			rawPos += n
			if !done {
				return rawPos, decodedEnd, ErrNeedMoreInput
			}
			c.phase = chunkDone
			return rawPos, decodedEnd, nil
		case chunkDone:
			return rawPos, decodedEnd, nil
		}
	}
}

// findLine locates a CRLF-terminated line starting at pos, returning
// the line (without the CRLF) and the total byte count including the
// CRLF.
func findLine(buf []byte, pos, end int) (line []byte, n int, ok bool) {
	for i := pos; i+1 < end; i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' {
			return buf[pos:i], i + 2 - pos, true
		}
	}
	return nil, 0, false
}

// parseChunkSize reads the hex chunk-size, ignoring any
// chunk-extension following a ';'.
func parseChunkSize(line []byte) (uint64, bool) {
	if i := indexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	if len(line) == 0 {
		return 0, false
	}
	var n uint64
	for _, c := range line {
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint64(c-'A') + 10
		default:
			return 0, false
		}
		if n > (maxChunkSize-d)>>4 {
			return 0, false
		}
		n = n<<4 | d
	}
	return n, true
}

// validChunkSizePrefix reports whether b could still grow into a valid
// chunk-size line: one or more hex digits, optionally followed by a
// chunk extension or the line's CR.
func validChunkSizePrefix(b []byte) bool {
	i := 0
	for i < len(b) && isHexDigit(b[i]) {
		i++
	}
	if i == len(b) {
		return true
	}
	if i == 0 {
		return false
	}
	return b[i] == ';' || b[i] == '\r'
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// trailerScanner accumulates trailer header lines (unfolded, same
// grammar as the main header block) and records them on the View once
// the trailer section's terminating blank line is found.
type trailerScanner struct {
	view trailerSink
}

type trailerSink interface {
	AddTrailer(nameOff, nameLen, valueOff, valueLen int) error
}

func (t *trailerScanner) reset() {}

// feed scans raw[pos:end] for the blank-line-terminated trailer
// section. Nothing is consumed or recorded until the terminating blank
// line is present: the offsets handed to AddTrailer point into raw,
// and a partial section's bytes can still be shifted by a front-buffer
// compaction before the rest arrives.
func (t *trailerScanner) feed(raw []byte, pos, end int) (done bool, n int, err error) {
	term := pos
	for {
		line, ln, ok := findLine(raw, term, end)
		if !ok {
			return false, 0, nil
		}
		term += ln
		if len(line) == 0 {
			break
		}
	}
	cur := pos
	for {
		line, ln, _ := findLine(raw, cur, term)
		lineStart := cur
		cur += ln
		if len(line) == 0 {
			return true, term - pos, nil
		}
		nameOff, nameLen, valueOff, valueLen, ok := splitHeaderLine(raw, lineStart, ln-2)
		if !ok {
			return false, 0, ErrBadHeader
		}
		if err := t.view.AddTrailer(nameOff, nameLen, valueOff, valueLen); err != nil {
			return false, 0, ErrBadHeader
		}
	}
}
