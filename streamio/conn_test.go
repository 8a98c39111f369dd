package streamio

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/mirodin/httpengine/http1"
)

func echoHandler(req *http1.RequestParser, body *BodyReader, resp *http1.Serializer) error {
	var buf []byte
	scratch := make([]byte, 256)
	for {
		n, err := body.ReadSome(scratch)
		buf = append(buf, scratch[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	msg := http1.Message{
		Kind:       http1.KindResponse,
		Proto:      "HTTP/1.1",
		StatusCode: 200,
		Fields:     []http1.Field{{Name: "X-Method", Value: req.Method().String()}},
	}
	return resp.StartBuffers(msg, [][]byte{buf})
}

func TestConnServeSingleRequest(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	cfg := ConnConfig{MaxRequests: 1}
	conn := NewConn(serverConn, cfg, echoHandler)

	done := make(chan error, 1)
	go func() { done <- conn.Serve() }()

	req := "POST /echo HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	if _, err := clientConn.Write([]byte(req)); err != nil {
		t.Fatalf("client write: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	// MaxRequests: 1 makes the server close after the response, so
	// reading to EOF collects the whole reply regardless of how many
	// writes it took.
	var respBytes []byte
	scratch := make([]byte, 4096)
	for {
		n, err := clientConn.Read(scratch)
		respBytes = append(respBytes, scratch[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("client read: %v", err)
		}
	}
	resp := string(respBytes)

	if want := "HTTP/1.1 200 OK\r\n"; !hasPrefix(resp, want) {
		t.Fatalf("resp = %q, want prefix %q", resp, want)
	}
	if !hasSuffix(resp, "hello") {
		t.Fatalf("resp = %q, want suffix hello", resp)
	}

	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if conn.State() != StateClosed {
		t.Fatalf("State = %v, want closed", conn.State())
	}
	if conn.RequestCount() != 1 {
		t.Fatalf("RequestCount = %d, want 1", conn.RequestCount())
	}
}

func hasPrefix(s, p string) bool { return len(s) >= len(p) && s[:len(p)] == p }
func hasSuffix(s, p string) bool { return len(s) >= len(p) && s[len(s)-len(p):] == p }
