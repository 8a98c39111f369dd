package streamio

import (
	"io"

	"github.com/mirodin/httpengine/http1"
)

// BodyReader wraps a ReadStream and a *http1.Parser to satisfy a
// generic read-stream contract over the message's body.
// The first ReadSome call that observes a header not yet
// parsed drives the prepare/read/commit loop until the header
// completes; every call thereafter pulls already-decoded body bytes
// out of the Parser.
type BodyReader struct {
	Stream ReadStream
	Parser *http1.Parser
}

// ParseHeader drives prepare/read/commit until the start-line and
// header block are fully parsed, without touching any body bytes.
// Callers that need the parsed Method/Target/View before deciding how
// to read the body (as streamio.Conn does, to dispatch a Handler) call
// this directly instead of ReadSome.
func (r *BodyReader) ParseHeader() error {
	for !r.Parser.GotHeader() {
		err := r.Parser.Parse()
		if err == nil {
			continue
		}
		if err == http1.ErrNeedMoreInput {
			if ferr := r.fillOnce(); ferr != nil {
				return ferr
			}
			continue
		}
		return err
	}
	return nil
}

// ReadSome copies decoded body bytes into p, driving the
// prepare/read/commit loop as needed. A complete body reads as
// (n, io.EOF).
func (r *BodyReader) ReadSome(p []byte) (int, error) {
	if err := r.ParseHeader(); err != nil {
		return 0, err
	}
	for {
		buf, err := r.Parser.PullBody()
		if len(buf) > 0 {
			n := copy(p, buf)
			r.Parser.ConsumeBody(n)
			// EOF is reported by a later call once the ring is truly
			// empty; the ring may hold a wrapped second segment even
			// when the message is complete.
			return n, nil
		}
		if err == nil {
			return 0, io.EOF
		}
		if err != http1.ErrNeedMoreInput {
			return 0, err
		}
		// Parse already-committed bytes before reading more: the body
		// may already sit in the raw buffer behind the header.
		perr := r.Parser.Parse()
		if perr == nil {
			continue
		}
		if perr != http1.ErrNeedMoreInput {
			return 0, perr
		}
		if ferr := r.fillOnce(); ferr != nil {
			return 0, ferr
		}
	}
}

// fillOnce performs one prepare/read/commit cycle against the
// underlying stream.
func (r *BodyReader) fillOnce() error {
	buf, err := r.Parser.Prepare()
	if err != nil {
		return err
	}
	n, rerr := r.Stream.ReadSome(buf)
	if n > 0 {
		r.Parser.Commit(n)
	}
	if rerr != nil {
		if rerr == io.EOF {
			r.Parser.CommitEOF()
			return nil
		}
		return rerr
	}
	return nil
}

// Pull fills dst with slices into Parser-owned memory holding the next
// available body bytes, up to max total bytes, without copying. It is
// the lazy body-source counterpart to ReadSome. Consume(n) must be
// called with the number of bytes the caller actually used before the
// next Pull.
func (r *BodyReader) Pull(max int) ([]byte, error) {
	for {
		buf, err := r.Parser.PullBody()
		if len(buf) > 0 {
			if max > 0 && len(buf) > max {
				buf = buf[:max]
			}
			return buf, nil
		}
		if err == nil {
			return nil, io.EOF
		}
		if err != http1.ErrNeedMoreInput {
			return nil, err
		}
		perr := r.Parser.Parse()
		if perr == nil {
			continue
		}
		if perr != http1.ErrNeedMoreInput {
			return nil, perr
		}
		if ferr := r.fillOnce(); ferr != nil {
			return nil, ferr
		}
	}
}

// Consume releases n bytes previously returned by Pull.
func (r *BodyReader) Consume(n int) { r.Parser.ConsumeBody(n) }
