package filter

import (
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliDecompressor implements Filter over
// github.com/andybalholm/brotli.
type BrotliDecompressor struct {
	stream decodeStream
}

// NewBrotliDecompressor returns a Filter that decodes a brotli stream.
func NewBrotliDecompressor() *BrotliDecompressor {
	return &BrotliDecompressor{}
}

func (d *BrotliDecompressor) Process(out, in []byte, more bool) (Result, error) {
	return d.stream.process(func(r io.Reader) (io.Reader, error) {
		return brotli.NewReader(r), nil
	}, out, in, more)
}

// BrotliCompressor implements Filter over brotli.Writer, parameterized
// by quality and window size.
type BrotliCompressor struct {
	sink   *growSink
	bw     *brotli.Writer
	closed bool
}

// NewBrotliCompressor returns a Filter that encodes a brotli stream at
// the given quality (0-11) and window size in bits (10-24, 0 selects
// the library default), matching brotli_comp_quality/brotli_comp_window.
func NewBrotliCompressor(quality, window int) *BrotliCompressor {
	s := &growSink{}
	bw := brotli.NewWriterOptions(s, brotli.WriterOptions{Quality: quality, LGWin: window})
	return &BrotliCompressor{sink: s, bw: bw}
}

func (c *BrotliCompressor) Process(out, in []byte, more bool) (Result, error) {
	res := Result{}
	if !c.closed {
		if len(in) > 0 {
			n, err := c.bw.Write(in)
			res.InBytes = n
			if err != nil {
				return res, err
			}
		}
		if !more {
			if err := c.bw.Close(); err != nil {
				return res, err
			}
			c.closed = true
		} else if len(in) > 0 {
			if err := c.bw.Flush(); err != nil {
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
