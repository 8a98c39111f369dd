package http1

import (
	"github.com/mirodin/httpengine/filter"
	"github.com/mirodin/httpengine/workspace"
)

// installBodyRing reserves the ring buffer every body byte passes
// through on its way out of the Parser; body availability is measured
// out of this ring instead of the raw front region. It is installed
// unconditionally, filtered or verbatim, so
// in-place body delivery never depends on the ever-growing front
// region the raw bytes arrive into.
func (p *Parser) installBodyRing() error {
	stage, err := p.ws.ReserveBack(p.cfg.BodyRingSize)
	if err != nil {
		return err
	}
	p.bodyOut = workspace.NewRingBuffer(stage)
	return nil
}

// installDecoder installs a Content-Encoding decompressor for the
// current message if the configured coding is auto-decode enabled.
// It is a no-op if the header names no coding, an unsupported one, or
// one this Parser was not configured to auto-decode, in which case the
// body is delivered verbatim through the same bodyOut ring installDecoder
// was handed by installBodyRing.
func (p *Parser) installDecoder() {
	coding := p.view.Metadata().ContentEncoding
	var f filter.Filter
	switch coding {
	case "gzip":
		if p.cfg.ApplyGzipDecoder {
			f = filter.NewGzipDecompressor()
		}
	case "deflate":
		if p.cfg.ApplyDeflateDecoder {
			f = filter.NewDeflateDecompressor()
		}
	case "br":
		if p.cfg.ApplyBrotliDecoder {
			f = filter.NewBrotliDecompressor()
		}
	}
	if f == nil {
		return
	}
	p.activeFilter = f
	p.filterCoding = coding
}

// feedFilter pushes newly available raw (still encoded) body bytes
// [p.pushedEnd:rawEnd) into the installed filter, writing decoded
// output into p.bodyOut. eofReached reports whether the raw source
// itself has reached its natural end (all of size(N)/to_eof/chunked
// input has arrived), which becomes the filter's more=false signal.
func (p *Parser) feedFilter(raw []byte, rawEnd int, eofReached bool) error {
	for {
		in := raw[p.pushedEnd:rawEnd]
		a, _ := p.bodyOut.WriteSlot()
		if len(a) == 0 {
			// Ring full. Not an error: draining bodyOut via
			// PullBody/ConsumeBody (or the sink) makes room for the
			// next call, same as pushRaw. A stalled sink with a full
			// ring is detected separately in drainSink.
			return nil
		}
		res, err := p.activeFilter.Process(a, in, !eofReached)
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.ObserveFilter(p.filterCoding, "decode", res.InBytes, res.OutBytes, err)
		}
		if err != nil {
			return err
		}
		p.bodyOut.Commit(res.OutBytes)
		p.pushedEnd += res.InBytes
		p.pushedTotal += uint64(res.OutBytes)
		if p.pushedTotal > p.bodyLimit {
			return ErrBodyTooLarge
		}
		if res.Finished {
			p.filterDone = true
			return nil
		}
		if res.InBytes == 0 && res.OutBytes == 0 {
			// No progress: input exhausted (wait for more raw bytes)
			// or the write segment was full.
			return nil
		}
	}
}

// pushRaw transfers raw[p.pushedEnd:rawEnd) verbatim into p.bodyOut,
// the passthrough counterpart to feedFilter used when no
// Content-Encoding filter is installed. It stops once bodyOut has no
// more room, which is not an error: draining bodyOut via
// PullBody/ConsumeBody (and the front-buffer reclaim Prepare's
// compactRaw performs) makes room for the next call.
func (p *Parser) pushRaw(raw []byte, rawEnd int) error {
	for p.pushedEnd < rawEnd {
		a, _ := p.bodyOut.WriteSlot()
		if len(a) == 0 {
			return nil
		}
		n := rawEnd - p.pushedEnd
		if n > len(a) {
			n = len(a)
		}
		copy(a, raw[p.pushedEnd:p.pushedEnd+n])
		p.bodyOut.Commit(n)
		p.pushedEnd += n
		p.pushedTotal += uint64(n)
		if p.pushedTotal > p.bodyLimit {
			return ErrBodyTooLarge
		}
	}
	return nil
}
