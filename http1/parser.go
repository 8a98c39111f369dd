package http1

import (
	"github.com/mirodin/httpengine/filter"
	"github.com/mirodin/httpengine/header"
	"github.com/mirodin/httpengine/httpmetrics"
	"github.com/mirodin/httpengine/workspace"
)

// BodySink receives body bytes pushed by the parser instead of being
// pulled through PullBody/ConsumeBody.
type BodySink interface {
	Write(p []byte) (int, error)
}

// Config configures a Parser's limits and workspace size. Zero values
// fall back to the package defaults.
type Config struct {
	Kind           Kind
	WorkspaceSize  int
	MaxHeaderCount int
	MaxHeaderSize  int
	BodyLimit      uint64

	// MinBuffer is accepted and defaulted but has no effect: Prepare
	// always compacts the raw buffer first and then returns whatever
	// front room is free (capped by MaxPrepare), and ring sizing uses
	// BodyRingSize alone.
	MinBuffer int

	// MaxPrepare caps how large a single Prepare window can be, so a
	// caller reading from the transport in a loop gets a bounded buffer
	// per read rather than however much front capacity happens to be
	// free. Zero means unbounded (the whole remaining front capacity).
	MaxPrepare int

	// MaxTypeErase is accepted for API completeness but has no effect:
	// a Go BodySink is an ordinary interface value, not a type-erased
	// buffer, so there is nothing for this to size.
	MaxTypeErase int

	// BodyRingSize sizes the ring buffer reserved from the Workspace for
	// body delivery (filtered or verbatim). Zero uses
	// DefaultBodyRingSize.
	BodyRingSize int

	// ApplyGzipDecoder, ApplyDeflateDecoder, and ApplyBrotliDecoder
	// control whether a matching Content-Encoding is auto-decoded. A
	// coding with its flag unset (or unsupported) is delivered
	// verbatim; the caller decodes it.
	ApplyGzipDecoder    bool
	ApplyDeflateDecoder bool
	ApplyBrotliDecoder  bool

	// ZlibWindowBits names zlib's windowBits tuning knob. It is accepted
	// for API completeness but has no effect: filter/deflate.go is
	// grounded on github.com/klauspost/compress/zlib, a pure-Go
	// implementation that doesn't expose this cgo-zlib-specific
	// parameter.
	ZlibWindowBits int

	// Metrics, when non-nil, records per-filter byte counts and errors
	// through httpmetrics.Metrics.ObserveFilter.
	Metrics *httpmetrics.Metrics
}

func (c Config) withDefaults() Config {
	if c.WorkspaceSize <= 0 {
		c.WorkspaceSize = workspace.DefaultSize
	}
	if c.MaxHeaderCount <= 0 {
		c.MaxHeaderCount = DefaultMaxHeaderCount
	}
	if c.MaxHeaderSize <= 0 {
		c.MaxHeaderSize = DefaultMaxHeaderSize
	}
	if c.BodyLimit == 0 {
		c.BodyLimit = DefaultMaxBodyLimit
	}
	if c.MinBuffer <= 0 {
		c.MinBuffer = DefaultMinBuffer
	}
	if c.BodyRingSize <= 0 {
		c.BodyRingSize = DefaultBodyRingSize
	}
	return c
}

// parserState tracks where a Parser is in its lifecycle.
type parserState uint8

const (
	stateNeedStart parserState = iota
	stateNeedHeader
	stateBody
	stateFaulted
)

// Parser is a streaming HTTP/1.1 message parser operating entirely
// within one Workspace. It never allocates once its Workspace and
// internal scratch slices have grown to steady-state size. A single
// Parser decodes one message at a time; call Reset between messages
// (or use a fresh instance from ParserPool).
type Parser struct {
	cfg Config
	ws  *workspace.Workspace
	view header.View

	state parserState
	err   error

	headResponse bool // response parser only: request method was HEAD

	method     Method
	target     string
	statusCode int
	reason     string
	proto      string

	bodyStart   int // offset into ws.FrontBytes() where body bytes begin
	rawPos      int // chunked decode: next unparsed raw byte
	decodedEnd  int // chunked decode: end of decoded, not-yet-delivered body bytes
	payloadKind PayloadKind
	bodyLimit   uint64
	contentLen  uint64
	complete    bool
	eof         bool
	chunk       chunkDecoder
	trailerScan trailerScanner
	sink        BodySink

	// bodyOut is the Workspace-backed ring buffer every body byte passes
	// through on its way to PullBody/ConsumeBody, whether or not a
	// Content-Encoding filter is installed — the single mechanism that
	// gives in-place body delivery a bounded-memory, wraparound-capable
	// buffer instead of the ever-growing front region it used to index
	// directly.
	bodyOut *workspace.RingBuffer

	// pushedEnd is the offset into ws.FrontBytes() (for size(N)/to_eof)
	// or into the decoded-body coordinate space ending at decodedEnd
	// (for chunked) up to which bytes have already been transferred
	// into bodyOut, whether verbatim (pushRaw) or through a filter
	// (feedFilter). It always satisfies bodyStart <= pushedEnd <=
	// (decodedEnd or the current raw availability), which is what makes
	// compactRaw's reclaim safe: everything before pushedEnd has left
	// the front buffer for good.
	pushedEnd   int
	pushedTotal uint64 // monotonic count of bytes ever pushed into bodyOut, independent of compaction
	bodyConsumed uint64

	activeFilter filter.Filter
	filterDone   bool
	filterCoding string
}

// NewParser constructs a Parser for requests or responses per cfg.Kind.
func NewParser(cfg Config) *Parser {
	cfg = cfg.withDefaults()
	p := &Parser{cfg: cfg, ws: workspace.New(cfg.WorkspaceSize)}
	p.trailerScan.view = &p.view
	return p
}

// Reset discards all state, making the Parser ready to decode a new
// message. The underlying Workspace is cleared, not reallocated.
func (p *Parser) Reset() {
	p.ws.Clear()
	p.view.ResetState()
	p.state = stateNeedStart
	p.err = nil
	p.headResponse = false
	p.method = MethodUnknown
	p.target = ""
	p.statusCode = 0
	p.reason = ""
	p.proto = ""
	p.bodyStart = 0
	p.rawPos = 0
	p.decodedEnd = 0
	p.payloadKind = PayloadNone
	p.bodyLimit = p.cfg.BodyLimit
	p.contentLen = 0
	p.complete = false
	p.eof = false
	p.chunk = chunkDecoder{}
	p.sink = nil
	p.bodyOut = nil
	p.pushedEnd = 0
	p.pushedTotal = 0
	p.bodyConsumed = 0
	p.activeFilter = nil
	p.filterDone = false
	p.filterCoding = ""
}

// Start begins decoding a new message. headResponse is only meaningful
// for a response Parser: pass true when the associated request used
// the HEAD method, since a HEAD response reports Content-Length but
// never actually carries a body.
func (p *Parser) Start(headResponse bool) {
	midMessage := p.state == stateNeedHeader || (p.state == stateBody && !p.complete)
	if midMessage {
		violate("Start called on a Parser mid-message; call Reset first")
	}
	p.Reset()
	p.headResponse = headResponse
	p.state = stateNeedHeader
}

// GotHeader reports whether the start-line and header block have been
// fully parsed.
func (p *Parser) GotHeader() bool { return p.view.GotHeader() }

// IsComplete reports whether the entire message, including its body,
// has been parsed.
func (p *Parser) IsComplete() bool { return p.complete }

// SetBodyLimit overrides the maximum number of body bytes this Parser
// will accept before failing with ErrBodyTooLarge. Must be called
// before the body begins arriving.
func (p *Parser) SetBodyLimit(n uint64) { p.bodyLimit = n }

// SetSink installs a BodySink that receives body bytes as Parse makes
// them available, instead of requiring the caller to call
// PullBody/ConsumeBody. Must be set before the body begins arriving.
func (p *Parser) SetSink(s BodySink) { p.sink = s }

// View exposes the parsed header fields and derived framing metadata.
func (p *Parser) View() *header.View { return &p.view }

// Method returns the parsed request method (request parser only).
func (p *Parser) Method() Method { return p.method }

// Target returns the parsed request-target (request parser only).
func (p *Parser) Target() string { return p.target }

// StatusCode returns the parsed status code (response parser only).
func (p *Parser) StatusCode() int { return p.statusCode }

// Reason returns the parsed reason phrase (response parser only).
func (p *Parser) Reason() string { return p.reason }

// Prepare returns a mutable window the caller should fill with bytes
// read from the transport, then report back via Commit. An empty
// returned slice with ErrInPlaceOverflow means the workspace has no
// room left for more input — the message exceeds this Parser's
// configured capacity.
func (p *Parser) Prepare() ([]byte, error) {
	p.compactRaw()
	buf := p.ws.PrepareFront(p.cfg.MaxPrepare)
	if len(buf) == 0 {
		return nil, ErrInPlaceOverflow
	}
	return buf, nil
}

// compactRaw reclaims front-buffer space already transferred into
// bodyOut, shifting the still-pending raw tail down to bodyStart so the
// front region's size is bounded by how much unread/undelivered input
// is in flight rather than by the message's total body size. It
// mirrors scanHeader's obs-fold compaction, anchored at bodyStart
// instead of the buffer start so header bytes are never touched.
func (p *Parser) compactRaw() {
	if p.state != stateBody {
		return
	}
	discard := p.pushedEnd - p.bodyStart
	if discard <= 0 {
		return
	}
	buf := p.ws.FrontBytes()
	tailLen := len(buf) - p.pushedEnd
	if tailLen > 0 {
		copy(buf[p.bodyStart:p.bodyStart+tailLen], buf[p.pushedEnd:p.pushedEnd+tailLen])
	}
	p.ws.TruncateFront(p.bodyStart + tailLen)
	switch p.payloadKind {
	case PayloadChunked:
		p.rawPos -= discard
		p.decodedEnd -= discard
	case PayloadSize:
		// contentLen counts the raw body bytes still owed past
		// bodyStart, so it shrinks with every discard.
		p.contentLen -= uint64(discard)
	}
	p.pushedEnd -= discard
}

// Commit records that n bytes were written into the window last
// returned by Prepare.
func (p *Parser) Commit(n int) {
	if err := p.ws.CommitFront(n); err != nil {
		p.fault(ErrInPlaceOverflow)
	}
}

// CommitEOF tells the parser the transport has reached end of stream.
// It completes a to_eof-framed body; before a complete header block,
// or during a size(N) or chunked body still short of its end, Parse reports
// ErrEndOfStream or ErrIncomplete instead of ErrNeedMoreInput.
func (p *Parser) CommitEOF() { p.eof = true }

// Parse advances the state machine as far as the currently committed
// input allows. It returns ErrNeedMoreInput when the caller should
// Prepare/read/Commit more bytes and call Parse again, nil when
// progress was made (check GotHeader/IsComplete for what changed), or
// a terminal error when the message is malformed.
func (p *Parser) Parse() error {
	if p.state == stateFaulted {
		return p.err
	}
	if p.state == stateNeedHeader {
		ok, err := p.scanHeader()
		if err != nil {
			p.fault(err)
			return err
		}
		if !ok {
			if p.eof {
				// A clean close before any bytes of a new message is
				// not a truncation.
				if p.ws.FrontLen() == 0 {
					p.fault(ErrEndOfStream)
					return ErrEndOfStream
				}
				p.fault(ErrIncomplete)
				return ErrIncomplete
			}
			return ErrNeedMoreInput
		}
		if err := p.derivePayload(); err != nil {
			p.fault(err)
			return err
		}
		p.state = stateBody
		if p.payloadKind == PayloadNone {
			p.complete = true
		}
		return nil
	}
	if p.state == stateBody {
		err := p.advanceBody()
		if p.sink != nil && (err == nil || err == ErrNeedMoreInput) {
			if serr := p.drainSink(); serr != nil {
				p.fault(serr)
				return serr
			}
		}
		return err
	}
	return nil
}

// drainSink pushes whatever body bytes are currently available into
// the installed BodySink: the sink may accept fewer bytes than
// offered, in which case the
// remainder is left for the next call. If the sink accepts nothing and
// the ring buffer backing the pulled bytes is completely full, there
// is no way to make further progress and the parser faults with
// ErrInPlaceOverflow.
func (p *Parser) drainSink() error {
	for {
		buf, err := p.PullBody()
		if len(buf) == 0 {
			if err == ErrNeedMoreInput || err == nil {
				return nil
			}
			return err
		}
		n, werr := p.sink.Write(buf)
		if werr != nil {
			return werr
		}
		p.ConsumeBody(n)
		if n == 0 {
			if p.ringFull() {
				return ErrInPlaceOverflow
			}
			return nil
		}
		if n < len(buf) {
			return nil
		}
	}
}

// ringFull reports whether the buffer backing the currently pulled
// body bytes has no remaining write capacity, the condition under
// which a stalled sink can never be unblocked without the caller
// acting first.
func (p *Parser) ringFull() bool {
	return p.bodyOut.Free() == 0
}

func (p *Parser) fault(err error) {
	p.state = stateFaulted
	p.err = err
}

// derivePayload computes the payload-kind decision once the header
// block is fully parsed, seeds the framing counters for whichever kind
// was decided, and reserves the body delivery ring.
func (p *Parser) derivePayload() error {
	meta := p.view.Metadata()
	if p.headResponse {
		p.payloadKind = PayloadNone
		p.complete = true
		return nil
	}
	p.payloadKind = decidePayloadKind(p.cfg.Kind, p.method, p.statusCode, meta)
	if p.payloadKind == PayloadError {
		return ErrBadPayload
	}
	if p.payloadKind == PayloadSize {
		p.contentLen = meta.ContentLength
	}
	p.rawPos = p.bodyStart
	p.decodedEnd = p.bodyStart
	p.pushedEnd = p.bodyStart
	p.pushedTotal = 0
	p.bodyConsumed = 0
	if p.payloadKind == PayloadSize || p.payloadKind == PayloadChunked || p.payloadKind == PayloadToEOF {
		if err := p.installBodyRing(); err != nil {
			return err
		}
		p.installDecoder()
	}
	return nil
}

// advanceBody makes whatever body progress the currently buffered
// bytes allow, without blocking.
func (p *Parser) advanceBody() error {
	switch p.payloadKind {
	case PayloadNone:
		p.complete = true
		return nil
	case PayloadSize:
		return p.advanceSize()
	case PayloadToEOF:
		return p.advanceToEOF()
	case PayloadChunked:
		return p.advanceChunked()
	default:
		p.fault(ErrBadPayload)
		return ErrBadPayload
	}
}

// advanceSize handles size(N) framing: the raw bytes already are the
// body, so there is nothing to decode, only transfer into bodyOut
// (verbatim or through a filter) and completion to detect.
func (p *Parser) advanceSize() error {
	buf := p.ws.FrontBytes()
	rawEnd := p.bodyStart + int(p.contentLen)
	if rawEnd > len(buf) {
		rawEnd = len(buf)
	}
	// rawDone compares against the uncapped available length, since
	// bytes committed past contentLen belong to a pipelined next
	// message and must never be required before this one completes.
	rawDone := uint64(len(buf)-p.bodyStart) >= p.contentLen
	var err error
	if p.activeFilter != nil {
		err = p.feedFilter(buf, rawEnd, rawDone)
	} else {
		err = p.pushRaw(buf, rawEnd)
	}
	if err != nil {
		p.fault(err)
		return err
	}
	// transferDone additionally requires that every raw byte currently
	// available has actually left the front buffer for bodyOut: a full
	// ring can leave pushedEnd short of rawEnd on this call, and
	// completing the message before that catches up would let the
	// caller stop calling Parse/Prepare with body bytes still stranded
	// in the front buffer.
	transferDone := p.pushedEnd >= rawEnd
	if p.activeFilter != nil {
		transferDone = p.filterDone
	}
	if rawDone && transferDone {
		p.complete = true
		return nil
	}
	// EOF is only fatal while raw bytes are still owed; a full ring
	// with all raw bytes already present just needs the consumer to
	// drain.
	if p.eof && !rawDone {
		p.fault(ErrIncomplete)
		return ErrIncomplete
	}
	return ErrNeedMoreInput
}

// advanceToEOF handles to_eof framing: every committed byte is body
// until the transport signals CommitEOF.
func (p *Parser) advanceToEOF() error {
	buf := p.ws.FrontBytes()
	var err error
	if p.activeFilter != nil {
		err = p.feedFilter(buf, len(buf), p.eof)
	} else {
		err = p.pushRaw(buf, len(buf))
	}
	if err != nil {
		p.fault(err)
		return err
	}
	transferDone := p.pushedEnd >= len(buf)
	if p.activeFilter != nil {
		transferDone = p.filterDone
	}
	if p.eof && transferDone {
		p.complete = true
		return nil
	}
	return ErrNeedMoreInput
}

// advanceChunked runs the chunk decoder over newly committed bytes,
// then transfers whatever it decoded into bodyOut.
func (p *Parser) advanceChunked() error {
	buf := p.ws.FrontBytes()
	newRawPos, newDecodedEnd, cerr := p.chunk.step(buf, p.rawPos, len(buf), p.decodedEnd, &p.trailerScan)
	p.rawPos, p.decodedEnd = newRawPos, newDecodedEnd
	var err error
	if p.activeFilter != nil {
		err = p.feedFilter(buf, p.decodedEnd, cerr == nil)
	} else {
		err = p.pushRaw(buf, p.decodedEnd)
	}
	if err != nil {
		p.fault(err)
		return err
	}
	if cerr == nil {
		transferDone := p.pushedEnd >= p.decodedEnd
		if p.activeFilter != nil {
			transferDone = p.filterDone
		}
		if transferDone {
			p.complete = true
			return nil
		}
		return ErrNeedMoreInput
	}
	if cerr == ErrNeedMoreInput {
		if p.eof {
			p.fault(ErrIncomplete)
			return ErrIncomplete
		}
		return ErrNeedMoreInput
	}
	p.fault(cerr)
	return cerr
}

// PullBody returns the currently available, not-yet-consumed body
// bytes. Call ConsumeBody once the caller has copied or otherwise
// finished with them.
func (p *Parser) PullBody() ([]byte, error) {
	if p.bodyOut == nil {
		if p.complete {
			return nil, nil
		}
		return nil, ErrNeedMoreInput
	}
	a, _ := p.bodyOut.ReadSlot()
	if len(a) == 0 {
		if p.complete {
			return nil, nil
		}
		return nil, ErrNeedMoreInput
	}
	return a, nil
}

// ConsumeBody marks n bytes, previously returned by PullBody, as
// consumed by the caller.
func (p *Parser) ConsumeBody(n int) {
	if p.bodyOut == nil || n <= 0 {
		return
	}
	p.bodyOut.Consume(n)
	p.bodyConsumed += uint64(n)
}

// Body returns, as a string, the unconsumed body bytes that PullBody
// currently offers: the whole body for one that fits the body ring
// unconsumed, but only the first contiguous segment once the ring has
// wrapped. Streaming consumers use PullBody/ConsumeBody or SetSink.
func (p *Parser) Body() string {
	b, _ := p.PullBody()
	return string(b)
}

// ReleaseBufferedData returns any bytes committed past the end of this
// message (pipelined data belonging to the next message on the same
// connection) as a freshly allocated copy. The bytes themselves stay
// in this Parser's Workspace until the next Reset or Start clears it.
func (p *Parser) ReleaseBufferedData() []byte {
	buf := p.ws.FrontBytes()
	var end int
	switch p.payloadKind {
	case PayloadNone:
		end = p.bodyStart
	case PayloadChunked:
		end = p.rawPos
	case PayloadSize:
		// pushedEnd tracks the live boundary through any compaction
		// compactRaw has already applied, unlike a freshly recomputed
		// bodyStart+contentLen which would point past where pipelined
		// bytes actually now sit once this message's body has been
		// discarded from the front buffer.
		end = p.pushedEnd
	default:
		// to_eof is connection-terminal: no pipelined data can follow.
		end = len(buf)
	}
	if end >= len(buf) {
		return nil
	}
	leftover := make([]byte, len(buf)-end)
	copy(leftover, buf[end:])
	return leftover
}
