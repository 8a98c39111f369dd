package http1

import "testing"

func TestParseChunkSizeHex(t *testing.T) {
	cases := []struct {
		line string
		want uint64
		ok   bool
	}{
		{"5", 5, true},
		{"A", 10, true},
		{"ff", 255, true},
		{"007", 7, true},
		{"800", 2048, true},
		{"5;ext=foo", 5, true},
		{"", 0, false},
		{"zz", 0, false},
	}
	for _, c := range cases {
		got, ok := parseChunkSize([]byte(c.line))
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("parseChunkSize(%q) = (%d, %v), want (%d, %v)", c.line, got, ok, c.want, c.ok)
		}
	}
}

func TestChunkDecoderStepSingleChunk(t *testing.T) {
	raw := []byte("5\r\nHello\r\n0\r\n\r\n")
	var c chunkDecoder
	var ts trailerScanner
	ts.view = noopTrailerSink{}
	rawPos, decodedEnd, err := c.step(raw, 0, len(raw), 0, &ts)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if string(raw[:decodedEnd]) != "Hello" {
		t.Fatalf("decoded = %q, want Hello", raw[:decodedEnd])
	}
	if rawPos != len(raw) {
		t.Fatalf("rawPos = %d, want %d", rawPos, len(raw))
	}
}

func TestChunkDecoderStepNeedsMoreInput(t *testing.T) {
	raw := []byte("5\r\nHel")
	var c chunkDecoder
	var ts trailerScanner
	ts.view = noopTrailerSink{}
	_, decodedEnd, err := c.step(raw, 0, len(raw), 0, &ts)
	if err != ErrNeedMoreInput {
		t.Fatalf("err = %v, want ErrNeedMoreInput", err)
	}
	if string(raw[:decodedEnd]) != "Hel" {
		t.Fatalf("partial decoded = %q, want Hel", raw[:decodedEnd])
	}
}

func TestChunkDecoderBadCRLF(t *testing.T) {
	raw := []byte("5\r\nHelloXX")
	var c chunkDecoder
	var ts trailerScanner
	ts.view = noopTrailerSink{}
	_, _, err := c.step(raw, 0, len(raw), 0, &ts)
	if err != ErrChunkedEncoding {
		t.Fatalf("err = %v, want ErrChunkedEncoding", err)
	}
}

func TestChunkDecoderWithTrailers(t *testing.T) {
	raw := []byte("3\r\nabc\r\n0\r\nX-Trailer: v\r\n\r\n")
	var c chunkDecoder
	sink := &recordingTrailerSink{}
	var ts trailerScanner
	ts.view = sink
	rawPos, decodedEnd, err := c.step(raw, 0, len(raw), 0, &ts)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if string(raw[:decodedEnd]) != "abc" {
		t.Fatalf("decoded = %q, want abc", raw[:decodedEnd])
	}
	if rawPos != len(raw) {
		t.Fatalf("rawPos = %d, want %d", rawPos, len(raw))
	}
	if len(sink.added) != 1 {
		t.Fatalf("trailers recorded = %d, want 1", len(sink.added))
	}
}

type noopTrailerSink struct{}

func (noopTrailerSink) AddTrailer(int, int, int, int) error { return nil }

type recordingTrailerSink struct {
	added [][4]int
}

func (r *recordingTrailerSink) AddTrailer(nameOff, nameLen, valueOff, valueLen int) error {
	r.added = append(r.added, [4]int{nameOff, nameLen, valueOff, valueLen})
	return nil
}
