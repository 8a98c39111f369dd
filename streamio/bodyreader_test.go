package streamio

import (
	"bytes"
	"io"
	"testing"

	"github.com/mirodin/httpengine/http1"
)

// chunkedReaderStream feeds its backing bytes a few bytes at a time, to
// force BodyReader through multiple fillOnce cycles instead of
// satisfying every Prepare in one ReadSome call.
type chunkedReaderStream struct {
	data    []byte
	pos     int
	chunkSz int
}

func (s *chunkedReaderStream) ReadSome(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := s.chunkSz
	if n > len(p) {
		n = len(p)
	}
	if s.pos+n > len(s.data) {
		n = len(s.data) - s.pos
	}
	copy(p, s.data[s.pos:s.pos+n])
	s.pos += n
	return n, nil
}

func newBodyReader(wire string, chunkSz int) (*BodyReader, *http1.RequestParser) {
	p := http1.NewRequestParser(http1.Config{})
	p.Start()
	stream := &chunkedReaderStream{data: []byte(wire), chunkSz: chunkSz}
	return &BodyReader{Stream: stream, Parser: p.Parser}, p
}

func TestBodyReaderParseHeaderThenReadSome(t *testing.T) {
	wire := "POST /upload HTTP/1.1\r\nHost: x\r\nContent-Length: 11\r\n\r\nhello world"
	br, p := newBodyReader(wire, 3)

	if err := br.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if p.Target() != "/upload" {
		t.Fatalf("Target = %q", p.Target())
	}

	var got bytes.Buffer
	buf := make([]byte, 4)
	for {
		n, err := br.ReadSome(buf)
		got.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadSome: %v", err)
		}
	}
	if got.String() != "hello world" {
		t.Fatalf("body = %q, want %q", got.String(), "hello world")
	}
}

func TestBodyReaderPullConsume(t *testing.T) {
	wire := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nHello"
	br, _ := newBodyReader(wire, 64)

	if err := br.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}

	var got []byte
	for {
		buf, err := br.Pull(2)
		if len(buf) > 0 {
			got = append(got, buf...)
			br.Consume(len(buf))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Pull: %v", err)
		}
	}
	if string(got) != "Hello" {
		t.Fatalf("got = %q, want Hello", got)
	}
}

func TestBodyReaderNoBodyRequest(t *testing.T) {
	wire := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"
	br, _ := newBodyReader(wire, 64)

	if err := br.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	buf := make([]byte, 16)
	n, err := br.ReadSome(buf)
	if n != 0 || err != io.EOF {
		t.Fatalf("ReadSome on bodyless request = (%d, %v), want (0, EOF)", n, err)
	}
}
