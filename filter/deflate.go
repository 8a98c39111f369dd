package filter

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// DeflateDecompressor implements Filter over github.com/klauspost/compress/zlib,
// which is what most servers actually send for Content-Encoding: deflate
// (a zlib-wrapped deflate stream, not raw deflate).
type DeflateDecompressor struct {
	stream decodeStream
}

// NewDeflateDecompressor returns a Filter that inflates a zlib stream.
func NewDeflateDecompressor() *DeflateDecompressor {
	return &DeflateDecompressor{}
}

func (d *DeflateDecompressor) Process(out, in []byte, more bool) (Result, error) {
	return d.stream.process(func(r io.Reader) (io.Reader, error) {
		return zlib.NewReader(r)
	}, out, in, more)
}

// DeflateCompressor implements Filter by writing to a
// github.com/klauspost/compress/zlib.Writer, parameterized by
// compression level.
type DeflateCompressor struct {
	sink   *growSink
	zw     *zlib.Writer
	closed bool
}

// NewDeflateCompressor returns a Filter that deflates into a zlib
// stream at the given compression level (zlib.DefaultCompression if
// zero).
func NewDeflateCompressor(level int) (*DeflateCompressor, error) {
	if level == 0 {
		level = zlib.DefaultCompression
	}
	s := &growSink{}
	zw, err := zlib.NewWriterLevel(s, level)
	if err != nil {
		return nil, err
	}
	return &DeflateCompressor{sink: s, zw: zw}, nil
}

func (c *DeflateCompressor) Process(out, in []byte, more bool) (Result, error) {
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
