package streamio

import (
	"io"

	"github.com/mirodin/httpengine/http1"
)

// BodyWriteSink drains a *http1.Serializer built with Start or
// StartBuffers (a complete, already-known message) to a WriteStream.
// Unlike ChunkedWriteSink it never accepts
// new body bytes from the caller: the whole message was handed to the
// Serializer up front, so Flush only has to push it out.
type BodyWriteSink struct {
	Stream     WriteStream
	Serializer *http1.Serializer
}

// Flush writes buffers until the Serializer reports IsDone. It returns
// http1.ErrExpect100Continue exactly once, after the header, if the
// message set Expect: 100-continue; calling Flush again proceeds to
// the body once the caller has decided to send it.
func (w *BodyWriteSink) Flush() error {
	for !w.Serializer.IsDone() {
		bufs, err := w.Serializer.Prepare()
		if err != nil {
			return err
		}
		if err := writeAll(w.Stream, w.Serializer, bufs); err != nil {
			return err
		}
	}
	return nil
}

// ChunkedWriteSink wraps a *http1.Serializer built with StartStream,
// exposing WriteSome/Close over a body the caller produces
// incrementally. Errors are deferred: if a
// transport write fails after the input bytes were already staged into
// the Serializer, WriteSome still reports success with the number of
// input bytes consumed, and surfaces the failure on the next
// WriteSome or Close instead of discarding already-committed state.
type ChunkedWriteSink struct {
	Stream     WriteStream
	Serializer *http1.Serializer

	pendingErr error
}

// WriteSome stages up to StreamCapacity bytes of p into the
// Serializer's staging buffer and drains as much framed output as the
// transport will currently accept.
func (w *ChunkedWriteSink) WriteSome(p []byte) (int, error) {
	if err := w.takePendingErr(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if w.Serializer.StreamCapacity() == 0 {
		if err := w.drainAll(); err != nil {
			w.pendingErr = err
		}
	}
	capN := w.Serializer.StreamCapacity()
	if capN == 0 {
		// Transport could not keep up and no room was freed; report
		// zero progress rather than dropping bytes.
		return 0, nil
	}
	if capN > len(p) {
		capN = len(p)
	}
	dst := w.Serializer.StreamPrepare()[:capN]
	n := copy(dst, p)
	w.Serializer.StreamCommit(n)
	if err := w.drainAll(); err != nil {
		w.pendingErr = err
	}
	return n, nil
}

// Close signals end of body via StreamClose and drains until the
// Serializer reports IsDone. It first returns any error deferred by an
// earlier WriteSome; a transport error while draining is returned
// directly.
func (w *ChunkedWriteSink) Close() error {
	if err := w.takePendingErr(); err != nil {
		return err
	}
	w.Serializer.StreamClose()
	for !w.Serializer.IsDone() {
		if err := w.drainAll(); err != nil {
			return err
		}
	}
	return nil
}

func (w *ChunkedWriteSink) takePendingErr() error {
	err := w.pendingErr
	w.pendingErr = nil
	return err
}

// drainAll writes every buffer Prepare currently offers, stopping
// cleanly on ErrNeedData (nothing staged yet) or ErrExpect100Continue
// (body gated).
func (w *ChunkedWriteSink) drainAll() error {
	for {
		bufs, err := w.Serializer.Prepare()
		switch err {
		case nil:
		case http1.ErrNeedData, http1.ErrExpect100Continue:
			return nil
		default:
			return err
		}
		if len(bufs) == 0 {
			return nil
		}
		if err := writeAll(w.Stream, w.Serializer, bufs); err != nil {
			return err
		}
	}
}

// writeAll pushes every byte of bufs to stream, calling Consume after
// each partial or full write so the Serializer's framing state stays
// correct even when a write fails midway.
func writeAll(stream WriteStream, s *http1.Serializer, bufs [][]byte) error {
	for _, b := range bufs {
		for len(b) > 0 {
			n, err := stream.WriteSome(b)
			if n > 0 {
				s.Consume(n)
				b = b[n:]
			}
			if err != nil {
				return err
			}
			if n == 0 {
				return io.ErrNoProgress
			}
		}
	}
	return nil
}
