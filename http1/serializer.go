package http1

import (
	"strconv"

	"github.com/mirodin/httpengine/filter"
	"github.com/mirodin/httpengine/httpmetrics"
	"github.com/mirodin/httpengine/workspace"
)

// Field is a single header field to emit, supplied by the caller
// rather than parsed from the wire.
type Field struct {
	Name  string
	Value string
}

// Message is the minimal start-line-plus-headers input the Serializer
// needs. It deliberately carries no higher-level request/response
// conveniences.
type Message struct {
	Kind       Kind
	Method     Method
	Target     string
	Proto      string
	StatusCode int
	Reason     string
	Fields     []Field

	// Expect100Continue, set on a request Message, makes Prepare
	// surface ErrExpect100Continue exactly once after the header bytes
	// have been consumed, before any body bytes are offered.
	Expect100Continue bool
}

type serializerState uint8

const (
	serHeader serializerState = iota
	serGate
	serBody
	serStream
	serDone
	serFaulted
)

// SerializerConfig configures a Serializer's workspace size and
// optional Content-Encoding compression.
type SerializerConfig struct {
	WorkspaceSize int

	// PayloadBufferSize sizes the staging buffer StreamPrepare/
	// StreamCommit write into between chunk frames, carved from the
	// Serializer's Workspace. It also bounds StreamCapacity.
	PayloadBufferSize int

	ApplyGzipEncoder    bool
	ApplyDeflateEncoder bool
	ApplyBrotliEncoder  bool

	GzipLevel     int
	ZlibLevel     int
	BrotliQuality int

	// ZlibMemLevel and ZlibWindowBits name zlib's memLevel/windowBits
	// tuning knobs. They are accepted for API completeness but have no
	// effect: filter/deflate.go is grounded on
	// github.com/klauspost/compress/zlib, a pure-Go implementation whose
	// NewWriterLevel exposes only a compression level, not these
	// cgo-zlib-specific parameters.
	ZlibMemLevel   int
	ZlibWindowBits int

	// BrotliCompWindow sets the brotli encoder's window size in bits
	// (10-24), wired into filter.NewBrotliCompressor's LGWin parameter.
	BrotliCompWindow int

	// Metrics, when non-nil, records per-filter byte counts and errors
	// through httpmetrics.Metrics.ObserveFilter.
	Metrics *httpmetrics.Metrics
}

func (c SerializerConfig) withDefaults() SerializerConfig {
	if c.WorkspaceSize <= 0 {
		c.WorkspaceSize = workspace.DefaultSize
	}
	if c.PayloadBufferSize <= 0 {
		c.PayloadBufferSize = DefaultPayloadBufferSize
	}
	return c
}

// Serializer is a streaming HTTP/1.1 message serializer. It emits a
// start-line, headers, and a body supplied either as a fixed sequence
// of buffers (Start/StartBuffers) or incrementally
// (StartStream/StreamPrepare/StreamCommit/StreamClose), the latter
// always framed as chunked since the body length cannot be known in
// advance.
type Serializer struct {
	cfg SerializerConfig
	ws  *workspace.Workspace

	state serializerState
	err   error

	headerLen int
	headerPos int

	fixedBody    [][]byte
	fixedBodyIdx int
	fixedBodyOff int

	streaming    bool
	staging      []byte
	framedLen    int
	chunkHdr     [32]byte
	closed       bool
	gateOpen     bool
	pendingFrame [][]byte

	activeFilter     filter.Filter
	filterScratch    []byte
	filterBuf        []byte
	filterCoding     string
	filterFlushed    bool
	emittedLastChunk bool
}

// NewSerializer constructs a Serializer.
func NewSerializer(cfg SerializerConfig) *Serializer {
	cfg = cfg.withDefaults()
	return &Serializer{cfg: cfg, ws: workspace.New(cfg.WorkspaceSize)}
}

// Reset discards all state, making the Serializer ready for a new
// message.
func (s *Serializer) Reset() {
	s.ws.Clear()
	s.state = serHeader
	s.err = nil
	s.headerLen = 0
	s.headerPos = 0
	s.fixedBody = nil
	s.fixedBodyIdx = 0
	s.fixedBodyOff = 0
	s.streaming = false
	s.staging = nil
	s.framedLen = 0
	s.closed = false
	s.gateOpen = false
	s.pendingFrame = nil
	s.activeFilter = nil
	s.filterScratch = nil
	s.filterBuf = nil
	s.filterCoding = ""
	s.filterFlushed = false
	s.emittedLastChunk = false
}

// Start begins serializing m with no body.
func (s *Serializer) Start(m Message) error {
	return s.start(m, nil, false)
}

// StartBuffers begins serializing m with a fixed, fully-known body.
// Content-Length is derived from the total length of body unless m's
// Fields already specify Transfer-Encoding: chunked.
func (s *Serializer) StartBuffers(m Message, body [][]byte) error {
	return s.start(m, body, false)
}

// StartStream begins serializing m with a body whose length is not
// yet known; it is always framed as chunked.
func (s *Serializer) StartStream(m Message) error {
	return s.start(m, nil, true)
}

func (s *Serializer) start(m Message, body [][]byte, streaming bool) error {
	if s.headerPos > 0 && s.state != serDone && s.state != serFaulted {
		// Header bytes of the previous message are already on the
		// wire; restarting now would interleave two messages.
		return ErrHeadersAlreadyWritten
	}
	s.Reset()
	if m.Kind == KindResponse && m.StatusCode != 0 && (m.StatusCode < 100 || m.StatusCode > 599) {
		s.state = serFaulted
		s.err = ErrInvalidStatusCode
		return s.err
	}
	s.activeFilter = s.installEncoder(m.Fields)
	if s.activeFilter != nil {
		// Both the compressor's working scratch and its accumulated
		// output buffer are carved from the Workspace once per message
		// here, rather than on every Prepare call, so the streaming
		// compress path (runFilterOnStaging) allocates nothing in
		// steady state.
		scratch, err := s.ws.ReserveBack(s.cfg.PayloadBufferSize)
		if err != nil {
			s.state = serFaulted
			s.err = ErrInPlaceOverflow
			return s.err
		}
		s.filterScratch = scratch
		fbuf, err := s.ws.ReserveBack(s.cfg.PayloadBufferSize + 64)
		if err != nil {
			s.state = serFaulted
			s.err = ErrInPlaceOverflow
			return s.err
		}
		s.filterBuf = fbuf[:0]
	}
	if s.activeFilter != nil && !streaming {
		compressed, err := compressBuffers(s.activeFilter, body, s.filterScratch, s.cfg.Metrics, s.filterCoding)
		if err != nil {
			s.state = serFaulted
			s.err = err
			return err
		}
		body = [][]byte{compressed}
	}
	chunked := streaming || hasChunkedField(m.Fields)
	if statusForbidsBody(m) {
		body = nil
	}
	if chunked && !streaming {
		// A fixed body under Transfer-Encoding: chunked is framed
		// eagerly, one chunk per non-empty buffer plus the terminator.
		framed := make([][]byte, 0, 3*len(body)+1)
		for _, b := range body {
			if len(b) == 0 {
				continue
			}
			framed = append(framed, []byte(strconv.FormatInt(int64(len(b)), 16)+"\r\n"), b, crlf)
		}
		body = append(framed, lastChunk)
	}
	var contentLength uint64
	if !chunked {
		for _, b := range body {
			contentLength += uint64(len(b))
		}
	}
	// RFC 7230 §3.3.2 forbids Content-Length/Transfer-Encoding on 1xx,
	// 204, and 304 responses regardless of whether a body was supplied;
	// every other message gets a framing header even for a zero-length
	// body.
	hasBody := !statusForbidsBody(m)
	hdr, err := s.buildHeader(m, chunked, contentLength, hasBody)
	if err != nil {
		s.state = serFaulted
		s.err = err
		return err
	}
	s.headerLen = len(hdr)
	s.fixedBody = body
	s.streaming = streaming
	s.gateOpen = !m.Expect100Continue
	// staging lives inside the Workspace between the header and any
	// back-allocated tail/table region, carved here instead of
	// heap-allocated so a pooled Serializer handling its Nth message
	// allocates nothing new.
	staging, err := s.ws.ReserveBack(s.cfg.PayloadBufferSize)
	if err != nil {
		s.state = serFaulted
		s.err = ErrInPlaceOverflow
		return s.err
	}
	s.staging = staging[:0]
	s.state = serHeader
	return nil
}

// installEncoder returns a Compressor Filter if fields carries a
// Content-Encoding this Serializer was configured to auto-apply, or
// nil if the body should be emitted verbatim (no coding requested, or
// the requested coding's apply_*_encoder flag is unset).
func (s *Serializer) installEncoder(fields []Field) filter.Filter {
	coding, ok := findFieldValue(fields, "Content-Encoding")
	if !ok {
		return nil
	}
	switch coding {
	case "gzip":
		if s.cfg.ApplyGzipEncoder {
			f, err := filter.NewGzipCompressor(s.cfg.GzipLevel)
			if err == nil {
				s.filterCoding = coding
				return f
			}
		}
	case "deflate":
		if s.cfg.ApplyDeflateEncoder {
			f, err := filter.NewDeflateCompressor(s.cfg.ZlibLevel)
			if err == nil {
				s.filterCoding = coding
				return f
			}
		}
	case "br":
		if s.cfg.ApplyBrotliEncoder {
			s.filterCoding = coding
			return filter.NewBrotliCompressor(s.cfg.BrotliQuality, s.cfg.BrotliCompWindow)
		}
	}
	return nil
}

func findFieldValue(fields []Field, name string) (string, bool) {
	for _, f := range fields {
		if equalFoldString(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// compressBuffers runs every byte of body through f to completion,
// returning the fully compressed output as one contiguous slice. Used
// for the fixed-body (non-streaming) case, where Content-Length must
// be known before the header is emitted, so compression happens eagerly
// rather than interleaved with transmission. out grows by append since
// the final compressed size is not known ahead of time; this is a
// once-per-message cost against the caller-supplied body buffers, not
// the steady-state streaming path runFilterOnStaging serves.
func compressBuffers(f filter.Filter, body [][]byte, scratch []byte, metrics *httpmetrics.Metrics, coding string) ([]byte, error) {
	var out []byte
	flush := func(in []byte, more bool) error {
		for {
			res, err := f.Process(scratch, in, more)
			if metrics != nil {
				metrics.ObserveFilter(coding, "encode", res.InBytes, res.OutBytes, err)
			}
			if err != nil {
				return err
			}
			out = append(out, scratch[:res.OutBytes]...)
			in = in[res.InBytes:]
			if res.Finished || (len(in) == 0 && !res.OutShort) {
				return nil
			}
		}
	}
	for _, b := range body {
		if err := flush(b, true); err != nil {
			return nil, err
		}
	}
	if err := flush(nil, false); err != nil {
		return nil, err
	}
	return out, nil
}

func hasChunkedField(fields []Field) bool {
	for _, f := range fields {
		if equalFoldString(f.Name, "Transfer-Encoding") && containsFold(f.Value, "chunked") {
			return true
		}
	}
	return false
}

func equalFoldString(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func containsFold(s, sub string) bool {
	ls, lsub := len(s), len(sub)
	if lsub == 0 || lsub > ls {
		return lsub == 0
	}
	for i := 0; i+lsub <= ls; i++ {
		if equalFoldString(s[i:i+lsub], sub) {
			return true
		}
	}
	return false
}

// statusForbidsBody reports whether m is a response whose status code
// RFC 7230 §3.3.2 forbids from carrying a body-framing header at all:
// any 1xx, 204 No Content, or 304 Not Modified. Requests never forbid
// one this way; body-forbidden methods simply carry a zero-length one.
func statusForbidsBody(m Message) bool {
	if m.Kind != KindResponse {
		return false
	}
	code := m.StatusCode
	return code == 204 || code == 304 || (code >= 100 && code < 200)
}

// buildHeader writes the start-line, caller fields, and the derived
// framing header (Content-Length or Transfer-Encoding: chunked) into
// the Serializer's workspace, returning the whole header block.
func (s *Serializer) buildHeader(m Message, chunked bool, contentLength uint64, hasBody bool) ([]byte, error) {
	var startLine []byte
	if m.Kind == KindRequest {
		startLine = append(startLine, m.Method.Bytes()...)
		startLine = append(startLine, ' ')
		startLine = append(startLine, []byte(m.Target)...)
		startLine = append(startLine, ' ')
		proto := m.Proto
		if proto == "" {
			proto = "HTTP/1.1"
		}
		startLine = append(startLine, []byte(proto)...)
	} else {
		proto := m.Proto
		if proto == "" {
			proto = "HTTP/1.1"
		}
		startLine = append(startLine, []byte(proto)...)
		startLine = append(startLine, ' ')
		code := m.StatusCode
		if code == 0 {
			code = 200
		}
		startLine = append(startLine, []byte(strconv.Itoa(code))...)
		startLine = append(startLine, ' ')
		reason := m.Reason
		if reason == "" {
			reason = StatusText(code)
		}
		startLine = append(startLine, []byte(reason)...)
	}

	var b []byte
	b = append(b, startLine...)
	b = append(b, crlf...)
	for _, f := range m.Fields {
		b = append(b, []byte(f.Name)...)
		b = append(b, colonSpace...)
		b = append(b, []byte(f.Value)...)
		b = append(b, crlf...)
	}
	if hasBody {
		if chunked {
			b = append(b, []byte("Transfer-Encoding: chunked")...)
			b = append(b, crlf...)
		} else {
			b = append(b, []byte("Content-Length: ")...)
			b = append(b, []byte(strconv.FormatUint(contentLength, 10))...)
			b = append(b, crlf...)
		}
	}
	b = append(b, crlf...)

	dst := s.ws.PrepareFront(len(b))
	if len(dst) < len(b) {
		return nil, ErrInPlaceOverflow
	}
	copy(dst, b)
	if err := s.ws.CommitFront(len(b)); err != nil {
		return nil, ErrInPlaceOverflow
	}
	return s.ws.FrontBytes(), nil
}

// IsDone reports whether every byte of the message has been Consumed.
func (s *Serializer) IsDone() bool { return s.state == serDone }

// AllowBody releases the Expect: 100-continue gate opened by a request
// Message with Expect100Continue set. Calling it is optional: Prepare
// surfaces ErrExpect100Continue once and then proceeds regardless.
func (s *Serializer) AllowBody() { s.gateOpen = true }

// Prepare returns the next buffers to write to the transport. It
// returns ErrExpect100Continue once, after headers, when the message
// requested Expect: 100-continue and AllowBody has not yet been
// called; ErrNeedData in streaming mode when no body bytes are
// currently staged and the stream has not been closed.
func (s *Serializer) Prepare() ([][]byte, error) {
	if s.state == serFaulted {
		return nil, s.err
	}
	if s.state == serDone {
		return nil, nil
	}
	if s.headerPos < s.headerLen {
		return [][]byte{s.ws.FrontBytes()[s.headerPos:s.headerLen]}, nil
	}
	if !s.gateOpen {
		// Surfaced exactly once after the header bytes drain; the next
		// Prepare proceeds to the body. AllowBody exists for callers
		// that want to acknowledge explicitly, but is not required.
		s.gateOpen = true
		return nil, ErrExpect100Continue
	}
	if s.streaming {
		return s.prepareStream()
	}
	return s.prepareFixedBody()
}

func (s *Serializer) prepareFixedBody() ([][]byte, error) {
	if s.fixedBodyIdx >= len(s.fixedBody) {
		s.state = serDone
		return nil, nil
	}
	out := make([][]byte, 0, len(s.fixedBody)-s.fixedBodyIdx)
	cur := s.fixedBody[s.fixedBodyIdx][s.fixedBodyOff:]
	out = append(out, cur)
	for i := s.fixedBodyIdx + 1; i < len(s.fixedBody); i++ {
		out = append(out, s.fixedBody[i])
	}
	return out, nil
}

// Consume marks n bytes, previously returned by Prepare, as written.
func (s *Serializer) Consume(n int) {
	if s.headerPos < s.headerLen {
		s.headerPos += n
		return
	}
	if s.streaming {
		s.consumeStream(n)
		return
	}
	for n > 0 && s.fixedBodyIdx < len(s.fixedBody) {
		remaining := len(s.fixedBody[s.fixedBodyIdx]) - s.fixedBodyOff
		if n < remaining {
			s.fixedBodyOff += n
			return
		}
		n -= remaining
		s.fixedBodyIdx++
		s.fixedBodyOff = 0
	}
	if s.fixedBodyIdx >= len(s.fixedBody) {
		s.state = serDone
	}
}

// StreamCapacity reports how many more bytes can be staged via
// StreamPrepare before a StreamCommit is required to make room.
func (s *Serializer) StreamCapacity() int { return cap(s.staging) - len(s.staging) }

// StreamPrepare returns a window the caller may write new body bytes
// into, to be handed to Prepare as a chunk once StreamCommit reports
// them.
func (s *Serializer) StreamPrepare() []byte {
	return s.staging[len(s.staging):cap(s.staging)]
}

// StreamCommit records that n bytes were written into the window
// returned by StreamPrepare.
func (s *Serializer) StreamCommit(n int) {
	s.staging = s.staging[:len(s.staging)+n]
}

// StreamClose signals that no more body bytes will be staged; Prepare
// will emit the final chunk terminator once the staged bytes have been
// drained.
func (s *Serializer) StreamClose() { s.closed = true }

// frameChunk wraps payload as one chunk frame: "<hex-size>\r\n<payload>\r\n".
func (s *Serializer) frameChunk(payload []byte) ([][]byte, error) {
	n := copy(s.chunkHdr[:], []byte(strconv.FormatInt(int64(len(payload)), 16)))
	n += copy(s.chunkHdr[n:], crlf)
	s.pendingFrame = [][]byte{append([]byte(nil), s.chunkHdr[:n]...), payload, crlf}
	return s.pendingFrame, nil
}

func (s *Serializer) prepareStream() ([][]byte, error) {
	if len(s.pendingFrame) > 0 {
		return s.pendingFrame, nil
	}
	if s.activeFilter == nil {
		if len(s.staging) == 0 {
			if s.closed {
				s.pendingFrame = [][]byte{lastChunk}
				s.emittedLastChunk = true
				return s.pendingFrame, nil
			}
			return nil, ErrNeedData
		}
		// Only the bytes staged so far are framed; anything committed
		// while this frame is in flight rides in the next one.
		s.framedLen = len(s.staging)
		return s.frameChunk(s.staging)
	}

	// Compressing path: every staged byte is run through the installed
	// Compressor before chunk-framing, so the chunked wire bytes wrap
	// the compressed output rather than the raw body bytes.
	if len(s.staging) > 0 {
		out, err := s.runFilterOnStaging(s.staging, true)
		s.staging = s.staging[:0]
		if err != nil {
			s.state = serFaulted
			s.err = err
			return nil, err
		}
		if len(out) == 0 {
			return nil, ErrNeedData
		}
		return s.frameChunk(out)
	}
	if !s.closed {
		return nil, ErrNeedData
	}
	if !s.filterFlushed {
		s.filterFlushed = true
		out, err := s.runFilterOnStaging(nil, false)
		if err != nil {
			s.state = serFaulted
			s.err = err
			return nil, err
		}
		if len(out) > 0 {
			return s.frameChunk(out)
		}
	}
	s.pendingFrame = [][]byte{lastChunk}
	s.emittedLastChunk = true
	return s.pendingFrame, nil
}

// runFilterOnStaging drives s.activeFilter to completion over in,
// returning whatever compressed bytes it produces. more mirrors
// Filter.Process's more parameter: false only for the terminal flush
// once StreamClose has been called and no further input will arrive.
func (s *Serializer) runFilterOnStaging(in []byte, more bool) ([]byte, error) {
	s.filterBuf = s.filterBuf[:0]
	scratch := s.filterScratch
	for {
		res, err := s.activeFilter.Process(scratch, in, more)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ObserveFilter(s.filterCoding, "encode", res.InBytes, res.OutBytes, err)
		}
		if err != nil {
			return nil, err
		}
		s.filterBuf = append(s.filterBuf, scratch[:res.OutBytes]...)
		in = in[res.InBytes:]
		if res.Finished || (len(in) == 0 && !res.OutShort) {
			return s.filterBuf, nil
		}
	}
}

func (s *Serializer) consumeStream(n int) {
	for n > 0 && len(s.pendingFrame) > 0 {
		cur := s.pendingFrame[0]
		if n < len(cur) {
			s.pendingFrame[0] = cur[n:]
			return
		}
		n -= len(cur)
		s.pendingFrame = s.pendingFrame[1:]
	}
	if len(s.pendingFrame) == 0 {
		if s.emittedLastChunk {
			s.state = serDone
			return
		}
		if s.activeFilter == nil && s.framedLen > 0 {
			rest := copy(s.staging, s.staging[s.framedLen:])
			s.staging = s.staging[:rest]
			s.framedLen = 0
		}
	}
}
