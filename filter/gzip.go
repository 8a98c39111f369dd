package filter

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// GzipDecompressor implements Filter over
// github.com/klauspost/compress/gzip: more means "don't expect end of
// stream yet", !more means "this is the final input".
type GzipDecompressor struct {
	stream decodeStream
}

// NewGzipDecompressor returns a Filter that inflates a gzip stream.
func NewGzipDecompressor() *GzipDecompressor {
	return &GzipDecompressor{}
}

func (d *GzipDecompressor) Process(out, in []byte, more bool) (Result, error) {
	return d.stream.process(func(r io.Reader) (io.Reader, error) {
		return gzip.NewReader(r)
	}, out, in, more)
}

// GzipCompressor implements Filter by writing to a
// github.com/klauspost/compress/gzip.Writer whose output accumulates in
// a growSink, drained into each Process call's out buffer.
type GzipCompressor struct {
	sink   *growSink
	zw     *gzip.Writer
	closed bool
}

// NewGzipCompressor returns a Filter that deflates into a gzip stream
// at the given compression level (gzip.DefaultCompression if zero).
func NewGzipCompressor(level int) (*GzipCompressor, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	s := &growSink{}
	zw, err := gzip.NewWriterLevel(s, level)
	if err != nil {
		return nil, err
	}
	return &GzipCompressor{sink: s, zw: zw}, nil
}

func (c *GzipCompressor) Process(out, in []byte, more bool) (Result, error) {
	res := Result{}
	if !c.closed {
		if len(in) > 0 {
			n, err := c.zw.Write(in)
			res.InBytes = n
			if err != nil {
				return res, err
			}
		}
		if !more {
			if err := c.zw.Close(); err != nil {
				return res, err
			}
			c.closed = true
		} else if len(in) > 0 {
			if err := c.zw.Flush(); err != nil {
				return res, err
			}
		}
	}
	n, pending := c.sink.drain(out)
	res.OutBytes = n
	res.OutShort = pending
	res.Finished = c.closed && !pending
	return res, nil
}
