package http1

import (
	"errors"

	"github.com/mirodin/httpengine/header"
)

// indexCRLF returns the index of the next "\r\n" at or after pos, or
// -1 if none is found.
func indexCRLF(buf []byte, pos int) int {
	for i := pos; i+1 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// indexCRLFCRLF returns the index of the first byte of a "\r\n\r\n"
// sequence, or -1 if none is found.
func indexCRLFCRLF(buf []byte) int {
	for i := 0; i+3 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' && buf[i+2] == '\r' && buf[i+3] == '\n' {
			return i
		}
	}
	return -1
}

// splitOnce splits b at the first occurrence of sep, returning the
// part before it and the remainder after it. ok is false if sep does
// not occur.
func splitOnce(b []byte, sep byte) (before, after []byte, ok bool) {
	for i, c := range b {
		if c == sep {
			return b[:i], b[i+1:], true
		}
	}
	return b, nil, false
}

func (p *Parser) parseRequestLine(line []byte) error {
	method, rest, ok := splitOnce(line, ' ')
	if !ok {
		return ErrInvalidRequestLine
	}
	target, proto, ok := splitOnce(rest, ' ')
	if !ok {
		return ErrInvalidRequestLine
	}
	if len(method) == 0 || len(target) == 0 {
		return ErrInvalidRequestLine
	}
	// The method is an extensible token: unknown spellings parse as
	// MethodUnknown, but non-token bytes are a grammar violation.
	if !validFieldName(method) {
		return ErrInvalidMethod
	}
	if len(target) > DefaultMaxURILength {
		return ErrURITooLong
	}
	if target[0] != '/' && target[0] != '*' {
		return ErrInvalidPath
	}
	if string(proto) != "HTTP/1.1" && string(proto) != "HTTP/1.0" {
		return ErrInvalidProtocol
	}
	p.method = ParseMethod(method)
	p.target = string(target)
	p.proto = string(proto)
	return nil
}

func (p *Parser) parseStatusLine(line []byte) error {
	proto, rest, ok := splitOnce(line, ' ')
	if !ok {
		return ErrInvalidRequestLine
	}
	if string(proto) != "HTTP/1.1" && string(proto) != "HTTP/1.0" {
		return ErrInvalidProtocol
	}
	code, reason, ok := splitOnce(rest, ' ')
	if !ok {
		code = rest
		reason = nil
	}
	n, ok := parseThreeDigit(code)
	if !ok {
		return ErrInvalidStatusCode
	}
	p.proto = string(proto)
	p.statusCode = n
	p.reason = string(reason)
	return nil
}

func parseThreeDigit(b []byte) (int, bool) {
	if len(b) != 3 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// scanHeader scans as much of the committed front buffer as is needed
// to find the start-line and header block, unfolding any obs-fold
// continuation lines in place and compacting already-buffered body
// bytes to follow immediately after. It returns ok == false when more
// input is required.
func (p *Parser) scanHeader() (bool, error) {
	buf := p.ws.FrontBytes()
	blank := indexCRLFCRLF(buf)
	if blank < 0 {
		if len(buf) > p.cfg.MaxHeaderSize {
			return false, ErrHeadersTooLarge
		}
		return false, nil
	}
	if blank+4 > p.cfg.MaxHeaderSize {
		return false, ErrHeadersTooLarge
	}

	// Unfold the header lines only; the blank-line CRLF at blank+2
	// stays in the buffer so Buffer() ends with the full CRLFCRLF.
	headerEnd := blank + 4
	newLen := unfoldInPlace(buf[:blank+2])
	if removed := blank + 2 - newLen; removed > 0 {
		tailLen := len(buf) - (blank + 2)
		copy(buf[newLen:newLen+tailLen], buf[blank+2:])
		p.ws.TruncateFront(newLen + tailLen)
		buf = p.ws.FrontBytes()
		headerEnd -= removed
	}

	if err := p.view.Reset(buf[:headerEnd], p.ws, p.cfg.MaxHeaderCount); err != nil {
		return false, err
	}

	lineEnd := indexCRLF(buf, 0)
	if lineEnd < 0 {
		return false, ErrInvalidRequestLine
	}
	var err error
	if p.cfg.Kind == KindRequest {
		err = p.parseRequestLine(buf[0:lineEnd])
	} else {
		err = p.parseStatusLine(buf[0:lineEnd])
	}
	if err != nil {
		return false, err
	}
	// The gross line cap applies after the grammar checks, so an
	// oversize URI reports the more specific ErrURITooLong.
	if lineEnd > DefaultMaxStartLine {
		return false, ErrRequestLineTooLarge
	}

	pos := lineEnd + 2
	count := 0
	for pos < newLen {
		le := indexCRLF(buf, pos)
		if le < 0 {
			return false, ErrBadHeader
		}
		lineLen := le - pos
		if lineLen == 0 {
			break
		}
		nameOff, nameLen, valueOff, valueLen, ok := splitHeaderLine(buf, pos, lineLen)
		if !ok {
			return false, ErrBadHeader
		}
		if err := p.view.Add(nameOff, nameLen, valueOff, valueLen); err != nil {
			return false, mapHeaderErr(err)
		}
		count++
		if count > p.cfg.MaxHeaderCount {
			return false, ErrTooManyHeaders
		}
		pos = le + 2
	}

	p.view.SetComplete()
	p.bodyStart = headerEnd
	return true, nil
}

// mapHeaderErr translates package header's field rejections into this
// package's taxonomy; anything unrecognized collapses to the generic
// ErrBadHeader kind.
func mapHeaderErr(err error) error {
	switch {
	case errors.Is(err, header.ErrContentLengthWithTransferEncoding):
		return ErrContentLengthWithTransferEncoding
	case errors.Is(err, header.ErrDuplicateContentLength):
		return ErrDuplicateContentLength
	case errors.Is(err, header.ErrInvalidContentLength):
		return ErrInvalidContentLength
	default:
		return ErrBadHeader
	}
}
