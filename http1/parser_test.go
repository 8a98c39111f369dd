package http1

import (
	"errors"
	"strings"
	"testing"
)

// feedAll commits data to p in one shot via Prepare/Commit, then
// drives Parse until it stops making progress.
func feedAll(t *testing.T, p *Parser, data string, eof bool) error {
	t.Helper()
	buf, err := p.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(data) > len(buf) {
		t.Fatalf("test data (%d bytes) exceeds workspace capacity (%d)", len(data), len(buf))
	}
	copy(buf, data)
	p.Commit(len(data))
	if eof {
		p.CommitEOF()
	}
	for {
		perr := p.Parse()
		if perr == nil {
			if p.IsComplete() {
				return nil
			}
			continue
		}
		return perr
	}
}

func TestRequestWithContentLength(t *testing.T) {
	p := NewRequestParser(Config{})
	p.Start()
	if err := feedAll(t, p.Parser, "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nHello", false); err != nil {
		t.Fatalf("feedAll: %v", err)
	}
	if p.Method() != MethodPOST {
		t.Fatalf("Method = %v, want POST", p.Method())
	}
	if p.Target() != "/" {
		t.Fatalf("Target = %q, want /", p.Target())
	}
	if p.Body() != "Hello" {
		t.Fatalf("Body = %q, want Hello", p.Body())
	}
	if !p.IsComplete() {
		t.Fatalf("IsComplete = false, want true")
	}
}

func TestChunkedResponseSplitAcrossReads(t *testing.T) {
	p := NewResponseParser(Config{})
	p.Start(false)

	pieces := []string{
		"HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n",
		"5\r\nHello\r\n",
		"7\r\n, World\r\n",
		"0\r\n\r\n",
	}
	var body strings.Builder
	for _, piece := range pieces {
		buf, err := p.Prepare()
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		n := copy(buf, piece)
		if n != len(piece) {
			t.Fatalf("workspace too small for piece %q", piece)
		}
		p.Commit(n)
		for {
			perr := p.Parse()
			if b, _ := p.PullBody(); len(b) > 0 {
				body.Write(b)
				p.ConsumeBody(len(b))
			}
			if perr == nil {
				if p.IsComplete() {
					break
				}
				continue
			}
			if perr == ErrNeedMoreInput {
				break
			}
			t.Fatalf("Parse: %v", perr)
		}
	}
	if p.StatusCode() != 200 {
		t.Fatalf("StatusCode = %d, want 200", p.StatusCode())
	}
	if body.String() != "Hello, World" {
		t.Fatalf("body = %q, want %q", body.String(), "Hello, World")
	}
	if !p.IsComplete() {
		t.Fatalf("IsComplete = false, want true")
	}
}

func TestBodyTooLarge(t *testing.T) {
	p := NewResponseParser(Config{})
	p.Start(false)
	p.SetBodyLimit(3)
	err := feedAll(t, p.Parser, "HTTP/1.1 200 OK\r\n\r\n12345", true)
	if err != ErrBodyTooLarge {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
	if !p.GotHeader() {
		t.Fatalf("header should remain accessible after a body error")
	}
	if p.StatusCode() != 200 {
		t.Fatalf("StatusCode = %d, want 200 (header survives body fault)", p.StatusCode())
	}
}

func TestMalformedChunkSize(t *testing.T) {
	p := NewResponseParser(Config{})
	p.Start(false)
	buf, err := p.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	head := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\nxxxasdfasdfasd"
	n := copy(buf, head)
	p.Commit(n)
	var perr error
	for {
		perr = p.Parse()
		if perr == nil {
			continue
		}
		break
	}
	if perr != ErrChunkedEncoding {
		t.Fatalf("err = %v, want ErrChunkedEncoding", perr)
	}

	// The instance must refuse further Parse calls until Reset.
	if err := p.Parse(); err != ErrChunkedEncoding {
		t.Fatalf("Parse after fault = %v, want the same terminal error", err)
	}
	p.Reset()
	if p.GotHeader() {
		t.Fatalf("GotHeader after Reset should be false")
	}
}

func TestPipeliningTwoMessages(t *testing.T) {
	p := NewRequestParser(Config{})
	wire := "GET /a HTTP/1.1\r\nContent-Length: 0\r\n\r\n" +
		"GET /b HTTP/1.1\r\nContent-Length: 0\r\n\r\n"

	p.Start()
	buf, err := p.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	n := copy(buf, wire)
	p.Commit(n)
	for !p.IsComplete() {
		if err := p.Parse(); err != nil {
			t.Fatalf("Parse (msg1): %v", err)
		}
	}
	if p.Target() != "/a" {
		t.Fatalf("first Target = %q, want /a", p.Target())
	}
	leftover := p.ReleaseBufferedData()

	p.Start()
	if len(leftover) > 0 {
		buf2, err := p.Prepare()
		if err != nil {
			t.Fatalf("Prepare (msg2): %v", err)
		}
		copy(buf2, leftover)
		p.Commit(len(leftover))
	}
	for !p.IsComplete() {
		if err := p.Parse(); err != nil {
			t.Fatalf("Parse (msg2): %v", err)
		}
	}
	if p.Target() != "/b" {
		t.Fatalf("second Target = %q, want /b", p.Target())
	}
}

func TestSplitInputMatchesSingleShot(t *testing.T) {
	wire := "POST /x HTTP/1.1\r\nContent-Length: 11\r\n\r\nHello World"

	oneShot := NewRequestParser(Config{})
	oneShot.Start()
	if err := feedAll(t, oneShot.Parser, wire, false); err != nil {
		t.Fatalf("one-shot feedAll: %v", err)
	}

	split := NewRequestParser(Config{})
	split.Start()
	for i := 0; i < len(wire); i++ {
		buf, err := split.Prepare()
		if err != nil {
			t.Fatalf("Prepare at byte %d: %v", i, err)
		}
		buf[0] = wire[i]
		split.Commit(1)
		for {
			perr := split.Parse()
			if perr == nil {
				if split.IsComplete() {
					break
				}
				continue
			}
			if perr == ErrNeedMoreInput {
				break
			}
			t.Fatalf("Parse at byte %d: %v", i, perr)
		}
	}
	if oneShot.Target() != split.Target() || oneShot.Method() != split.Method() {
		t.Fatalf("split parse diverged: one-shot target=%q method=%v, split target=%q method=%v",
			oneShot.Target(), oneShot.Method(), split.Target(), split.Method())
	}
	if oneShot.Body() != split.Body() {
		t.Fatalf("body diverged: one-shot=%q split=%q", oneShot.Body(), split.Body())
	}
}

func TestToEOFFraming(t *testing.T) {
	p := NewResponseParser(Config{})
	p.Start(false)
	if err := feedAll(t, p.Parser, "HTTP/1.1 200 OK\r\n\r\nall the bytes until close", true); err != nil {
		t.Fatalf("feedAll: %v", err)
	}
	if p.Body() != "all the bytes until close" {
		t.Fatalf("Body = %q", p.Body())
	}
}

func TestHeadResponseForcesNoBody(t *testing.T) {
	p := NewResponseParser(Config{})
	p.Start(true) // associated request used HEAD
	if err := feedAll(t, p.Parser, "HTTP/1.1 200 OK\r\nContent-Length: 500\r\n\r\n", false); err != nil {
		t.Fatalf("feedAll: %v", err)
	}
	if !p.IsComplete() {
		t.Fatalf("HEAD response should complete with no body despite Content-Length")
	}
	if p.Body() != "" {
		t.Fatalf("Body = %q, want empty", p.Body())
	}
}

func TestNoContentStatusForcesNoBody(t *testing.T) {
	p := NewResponseParser(Config{})
	p.Start(false)
	if err := feedAll(t, p.Parser, "HTTP/1.1 204 No Content\r\n\r\n", false); err != nil {
		t.Fatalf("feedAll: %v", err)
	}
	if !p.IsComplete() {
		t.Fatalf("204 response should complete immediately")
	}
}

func TestDuplicateContentLengthConflictIsBadHeader(t *testing.T) {
	p := NewRequestParser(Config{})
	p.Start()
	err := feedAll(t, p.Parser, "POST / HTTP/1.1\r\nContent-Length: 5\r\nContent-Length: 6\r\n\r\nHello!", false)
	if err != ErrDuplicateContentLength {
		t.Fatalf("err = %v, want ErrDuplicateContentLength", err)
	}
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("ErrDuplicateContentLength should match the ErrBadHeader kind, got %v", err)
	}
}

func TestContentLengthWithTransferEncodingIsBadHeader(t *testing.T) {
	p := NewRequestParser(Config{})
	p.Start()
	err := feedAll(t, p.Parser, "POST / HTTP/1.1\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\n", false)
	if err != ErrContentLengthWithTransferEncoding {
		t.Fatalf("err = %v, want ErrContentLengthWithTransferEncoding", err)
	}
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("want ErrBadHeader kind, got %v", err)
	}
}

func TestMalformedRequestLineIsBadHeader(t *testing.T) {
	p := NewRequestParser(Config{})
	p.Start()
	err := feedAll(t, p.Parser, "GARBAGE\r\nHost: x\r\n\r\n", false)
	if err != ErrInvalidRequestLine {
		t.Fatalf("err = %v, want ErrInvalidRequestLine", err)
	}
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("ErrInvalidRequestLine should match the ErrBadHeader kind, got %v", err)
	}
}

func TestInvalidMethodTokenIsBadHeader(t *testing.T) {
	p := NewRequestParser(Config{})
	p.Start()
	err := feedAll(t, p.Parser, "G@T / HTTP/1.1\r\nHost: x\r\n\r\n", false)
	if err != ErrInvalidMethod {
		t.Fatalf("err = %v, want ErrInvalidMethod", err)
	}
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("want ErrBadHeader kind, got %v", err)
	}
}

func TestURITooLong(t *testing.T) {
	p := NewRequestParser(Config{WorkspaceSize: 64 * 1024, MaxHeaderSize: 32 * 1024})
	p.Start()
	target := "/" + strings.Repeat("a", DefaultMaxURILength)
	err := feedAll(t, p.Parser, "GET "+target+" HTTP/1.1\r\nHost: x\r\n\r\n", false)
	if err != ErrURITooLong {
		t.Fatalf("err = %v, want ErrURITooLong", err)
	}
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("want ErrBadHeader kind, got %v", err)
	}
}

func TestObsFoldUnfoldedInHeaderValue(t *testing.T) {
	p := NewRequestParser(Config{})
	p.Start()
	wire := "GET / HTTP/1.1\r\nX-Folded: first\r\n second\r\nContent-Length: 0\r\n\r\n"
	if err := feedAll(t, p.Parser, wire, false); err != nil {
		t.Fatalf("feedAll: %v", err)
	}
	f, ok := p.View().FindByName([]byte("X-Folded"))
	if !ok {
		t.Fatalf("X-Folded field not found")
	}
	if string(f.Value) != "first second" {
		t.Fatalf("folded value = %q, want %q", f.Value, "first second")
	}
}

func TestBareCRInHeaderIsBadHeader(t *testing.T) {
	p := NewRequestParser(Config{})
	p.Start()
	wire := "GET / HTTP/1.1\r\nX-Bad: a\rb\r\n\r\n"
	err := feedAll(t, p.Parser, wire, false)
	if err != ErrBadHeader {
		t.Fatalf("err = %v, want ErrBadHeader", err)
	}
}

func TestResetAllowsReuse(t *testing.T) {
	p := NewRequestParser(Config{})
	p.Start()
	if err := feedAll(t, p.Parser, "GET / HTTP/1.1\r\nContent-Length: 0\r\n\r\n", false); err != nil {
		t.Fatalf("feedAll: %v", err)
	}
	p.Reset()
	p.Start()
	if err := feedAll(t, p.Parser, "POST /again HTTP/1.1\r\nContent-Length: 2\r\n\r\nhi", false); err != nil {
		t.Fatalf("feedAll after reset: %v", err)
	}
	if p.Target() != "/again" || p.Body() != "hi" {
		t.Fatalf("got Target=%q Body=%q after reuse", p.Target(), p.Body())
	}
}
