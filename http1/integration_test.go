package http1

import (
	"bytes"
	"strings"
	"testing"
)

// TestTrailersRoundTrip exercises a chunked body with trailer fields:
// the fields must not leak into Metadata/framing decisions but must be
// visible through View.Trailers() once the message completes.
func TestTrailersRoundTrip(t *testing.T) {
	wire := "POST /upload HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nHello\r\n0\r\nX-Checksum: abc123\r\n\r\n"
	p := NewParser(Config{Kind: KindRequest})
	p.Start(false)
	if err := feedAll(t, p, wire, true); err != nil {
		t.Fatalf("feedAll: %v", err)
	}

	if !p.IsComplete() {
		t.Fatalf("parser not complete")
	}
	if got := p.Body(); got != "Hello" {
		t.Fatalf("Body = %q, want Hello", got)
	}

	trailers := p.View().Trailers()
	if len(trailers) != 1 {
		t.Fatalf("Trailers = %+v, want 1 entry", trailers)
	}
	if string(trailers[0].Name) != "X-Checksum" || string(trailers[0].Value) != "abc123" {
		t.Fatalf("trailer = %+v", trailers[0])
	}
}

// TestContentEncodingRoundTrip serializes a message with a gzip
// compressor installed, parses the wire bytes back with a matching
// decompressor, and checks the decoded body matches the original.
func TestContentEncodingRoundTrip(t *testing.T) {
	payload := strings.Repeat("compress me please ", 200)

	s := NewSerializer(SerializerConfig{ApplyGzipEncoder: true, GzipLevel: 6})
	msg := Message{
		Kind:       KindResponse,
		Proto:      "HTTP/1.1",
		StatusCode: 200,
		Fields:     []Field{{Name: "Content-Encoding", Value: "gzip"}},
	}
	if err := s.StartBuffers(msg, [][]byte{[]byte(payload)}); err != nil {
		t.Fatalf("StartBuffers: %v", err)
	}

	var wire bytes.Buffer
	for !s.IsDone() {
		bufs, err := s.Prepare()
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		n := 0
		for _, b := range bufs {
			wire.Write(b)
			n += len(b)
		}
		s.Consume(n)
	}

	p := NewParser(Config{Kind: KindResponse, ApplyGzipDecoder: true})
	p.Start(false)
	if err := feedAll(t, p, wire.String(), true); err != nil {
		t.Fatalf("feedAll: %v", err)
	}

	if !p.IsComplete() {
		t.Fatalf("parser not complete")
	}
	if got := p.Body(); got != payload {
		t.Fatalf("decoded body length = %d, want %d", len(got), len(payload))
	}
}

// TestPipelinedRequestsWithCompressedBodyOverread feeds two pipelined
// requests in one commit, the first carrying a gzip-compressed body of
// an odd size chosen so the compressed wire bytes straddle an internal
// scratch-buffer boundary, and checks that the second message's start
// line is recovered intact via ReleaseBufferedData/Start.
func TestPipelinedRequestsWithCompressedBodyOverread(t *testing.T) {
	payload := strings.Repeat("x", 4097) // odd size relative to typical power-of-two buffers

	s := NewSerializer(SerializerConfig{ApplyGzipEncoder: true})
	msgA := Message{
		Kind:   KindRequest,
		Method: MethodPOST,
		Target: "/a",
		Proto:  "HTTP/1.1",
		Fields: []Field{{Name: "Host", Value: "x"}, {Name: "Content-Encoding", Value: "gzip"}},
	}
	if err := s.StartBuffers(msgA, [][]byte{[]byte(payload)}); err != nil {
		t.Fatalf("StartBuffers: %v", err)
	}
	var wireA bytes.Buffer
	for !s.IsDone() {
		bufs, err := s.Prepare()
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		n := 0
		for _, b := range bufs {
			wireA.Write(b)
			n += len(b)
		}
		s.Consume(n)
	}

	wireB := "GET /b HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n"
	combined := wireA.String() + wireB

	p := NewParser(Config{Kind: KindRequest, ApplyGzipDecoder: true})
	p.Start(false)
	if err := feedAll(t, p, combined, true); err != nil {
		t.Fatalf("feedAll: %v", err)
	}
	if !p.IsComplete() {
		t.Fatalf("message A not complete")
	}
	if got := p.Body(); got != payload {
		t.Fatalf("message A decoded body length = %d, want %d", len(got), len(payload))
	}

	leftover := p.ReleaseBufferedData()
	p.Reset()
	p.Start(false)
	n, err := p.Prepare()
	if err != nil {
		t.Fatalf("Prepare for message B: %v", err)
	}
	copy(n, leftover)
	p.Commit(len(leftover))
	p.CommitEOF()
	for {
		err := p.Parse()
		if err == nil {
			if p.IsComplete() {
				break
			}
			continue
		}
		if err == ErrNeedMoreInput {
			t.Fatalf("message B starved for input: leftover = %d bytes", len(leftover))
		}
		break
	}
	if p.Target() != "/b" {
		t.Fatalf("message B target = %q, want /b", p.Target())
	}
}
