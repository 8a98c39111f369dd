package filter

import (
	"bytes"
	"io"
)

// decodeStream buffers an encoded stream as Process calls deliver it,
// then decodes through a codec reader once the final input has arrived.
// The underlying codecs treat any error from their source reader as
// terminal, so feeding them a partial stream and pausing mid-read is
// not an option; buffering until the source is complete is.
type decodeStream struct {
	in       []byte
	r        io.Reader
	finished bool
}

// process implements the Filter contract over a codec reader built by
// newReader. Input bytes are always consumed in full; output appears
// only once more == false has been seen and is drained into each
// call's out buffer until the codec reports EOF.
func (d *decodeStream) process(newReader func(io.Reader) (io.Reader, error), out, in []byte, more bool) (Result, error) {
	res := Result{}
	if d.r == nil {
		d.in = append(d.in, in...)
		res.InBytes = len(in)
		if more {
			return res, nil
		}
		r, err := newReader(bytes.NewReader(d.in))
		if err != nil {
			return res, err
		}
		d.r = r
	}
	if d.finished {
		res.Finished = true
		return res, nil
	}
	total := 0
	for total < len(out) {
		n, err := d.r.Read(out[total:])
		total += n
		if err == io.EOF {
			d.finished = true
			res.OutBytes = total
			res.Finished = true
			return res, nil
		}
		if err != nil {
			res.OutBytes = total
			return res, err
		}
		if n == 0 {
			break
		}
	}
	res.OutBytes = total
	res.OutShort = total == len(out) && len(out) > 0
	return res, nil
}

// growSink accumulates a codec writer's output. The writer never sees
// a short write, keeping its internal state valid across Process
// calls; drain moves the pending bytes into each call's out buffer.
type growSink struct {
	buf     []byte
	emitted int
}

func (s *growSink) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// drain copies pending output into out, reporting whether any bytes
// remain undelivered. Once everything pending has been delivered the
// accumulation buffer is rewound for reuse.
func (s *growSink) drain(out []byte) (n int, pending bool) {
	n = copy(out, s.buf[s.emitted:])
	s.emitted += n
	if s.emitted == len(s.buf) {
		s.buf = s.buf[:0]
		s.emitted = 0
		return n, false
	}
	return n, true
}
