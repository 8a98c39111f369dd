package streamio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mirodin/httpengine/http1"
)

// shortWriterStream accepts at most max bytes per WriteSome call, to
// exercise the partial-write/Consume loop in writeAll.
type shortWriterStream struct {
	buf bytes.Buffer
	max int
}

func (s *shortWriterStream) WriteSome(p []byte) (int, error) {
	n := len(p)
	if s.max > 0 && n > s.max {
		n = s.max
	}
	return s.buf.Write(p[:n])
}

func TestBodyWriteSinkFlush(t *testing.T) {
	s := http1.NewSerializer(http1.SerializerConfig{})
	msg := http1.Message{
		Kind:       http1.KindResponse,
		Proto:      "HTTP/1.1",
		StatusCode: 200,
		Fields:     []http1.Field{{Name: "Content-Type", Value: "text/plain"}},
	}
	if err := s.StartBuffers(msg, [][]byte{[]byte("payload body")}); err != nil {
		t.Fatalf("StartBuffers: %v", err)
	}

	stream := &shortWriterStream{max: 5}
	sink := &BodyWriteSink{Stream: stream, Serializer: s}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := stream.buf.String()
	if !strings.Contains(got, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("missing status line: %q", got)
	}
	if !strings.HasSuffix(got, "payload body") {
		t.Fatalf("missing body: %q", got)
	}
}

func TestChunkedWriteSinkStreamsAndCloses(t *testing.T) {
	s := http1.NewSerializer(http1.SerializerConfig{})
	msg := http1.Message{Kind: http1.KindResponse, Proto: "HTTP/1.1", StatusCode: 200}
	if err := s.StartStream(msg); err != nil {
		t.Fatalf("StartStream: %v", err)
	}

	stream := &shortWriterStream{max: 7}
	sink := &ChunkedWriteSink{Stream: stream, Serializer: s}

	body := []byte("the quick brown fox jumps over the lazy dog")
	written := 0
	for written < len(body) {
		n, err := sink.WriteSome(body[written:])
		if err != nil {
			t.Fatalf("WriteSome: %v", err)
		}
		if n == 0 {
			continue
		}
		written += n
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := stream.buf.String()
	headerEnd := strings.Index(got, "\r\n\r\n") + 4
	bodySection := got[headerEnd:]
	if !strings.HasSuffix(bodySection, "0\r\n\r\n") {
		t.Fatalf("missing terminal chunk: %q", bodySection)
	}
	if !strings.Contains(bodySection, string(body)) {
		t.Fatalf("body bytes not present in output: %q", bodySection)
	}
}
