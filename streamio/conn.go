package streamio

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mirodin/httpengine/http1"
	"github.com/mirodin/httpengine/httpmetrics"
)

// ConnState is a lock-free snapshot of where a connection sits in its
// keep-alive lifecycle.
type ConnState int32

const (
	StateNew ConnState = iota
	StateActive
	StateIdle
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler processes one request on a Conn. req's header has already
// been parsed when Handler is called; the handler reads any remaining
// body through body (ReadSome/Pull) and produces a response by calling
// resp.Start/StartBuffers/StartStream and draining it through a
// BodyWriteSink or ChunkedWriteSink built on the same Conn's
// WriteStream. Returning an error closes the connection after the
// response, if any, has been flushed.
type Handler func(req *http1.RequestParser, body *BodyReader, resp *http1.Serializer) error

// ConnConfig configures a Conn.
type ConnConfig struct {
	// KeepAliveTimeout bounds how long Serve waits for the next
	// pipelined or keep-alive request before giving up. Zero disables
	// the deadline.
	KeepAliveTimeout time.Duration

	// MaxRequests caps how many requests Serve will process on this
	// connection before closing it. Zero means unlimited.
	MaxRequests int

	ParserConfig     http1.Config
	SerializerConfig http1.SerializerConfig

	// ParserPool and SerializerPool, when both non-nil, supply this
	// connection's Parser/Serializer via Get at NewConn and return them
	// via Put once Serve returns, instead of each Conn allocating its
	// own pair. Leave both nil to keep the simpler one-Parser-per-Conn
	// behavior (ParserConfig/SerializerConfig are then used directly).
	ParserPool     *http1.ParserPool
	SerializerPool *http1.SerializerPool

	// Metrics, when non-nil, records connection lifecycle and request
	// counts through httpmetrics.Metrics.
	Metrics *httpmetrics.Metrics

	// Logger receives one structured event per connection close and
	// per fatal parse/serialize error. The zero value is
	// zerolog.Nop(), which discards everything.
	Logger zerolog.Logger
}

// DefaultConnConfig returns a ConnConfig with a 60-second keep-alive
// timeout and no request cap.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		KeepAliveTimeout: 60 * time.Second,
	}
}

// Conn adapts one net.Conn to repeated RequestParser/Serializer
// request-response cycles. Parsing and serializing run directly
// against the caller-supplied net.Conn through the
// ReadStream/WriteStream contract rather than through a bufio.Reader,
// since Parser/Serializer already own their own Workspace buffering.
type Conn struct {
	state    atomic.Int32
	lastUse  atomic.Int64
	requests atomic.Int32

	netConn net.Conn
	reader  ReaderStream
	writer  WriterStream

	parser     *http1.RequestParser
	serializer *http1.Serializer
	handler    Handler

	parserPool     *http1.ParserPool
	serializerPool *http1.SerializerPool

	keepAliveTimeout time.Duration
	maxRequests      int32
	metrics          *httpmetrics.Metrics
	log              zerolog.Logger

	leftover []byte
}

// NewConn constructs a Conn ready to Serve requests arriving on conn.
// When cfg.ParserPool and cfg.SerializerPool are both set, the Conn
// borrows its Parser/Serializer from them (returning both once Serve
// finishes) instead of building its own pair from ParserConfig/
// SerializerConfig.
func NewConn(conn net.Conn, cfg ConnConfig, handler Handler) *Conn {
	var parser *http1.RequestParser
	var serializer *http1.Serializer
	if cfg.ParserPool != nil && cfg.SerializerPool != nil {
		parser = &http1.RequestParser{Parser: cfg.ParserPool.Get()}
		serializer = cfg.SerializerPool.Get()
	} else {
		parser = http1.NewRequestParser(cfg.ParserConfig)
		serializer = http1.NewSerializer(cfg.SerializerConfig)
	}
	c := &Conn{
		netConn:          conn,
		reader:           ReaderStream{R: conn},
		writer:           WriterStream{W: conn},
		parser:           parser,
		serializer:       serializer,
		handler:          handler,
		parserPool:       cfg.ParserPool,
		serializerPool:   cfg.SerializerPool,
		keepAliveTimeout: cfg.KeepAliveTimeout,
		log:              cfg.Logger,
		maxRequests:      int32(cfg.MaxRequests),
		metrics:          cfg.Metrics,
	}
	c.state.Store(int32(StateNew))
	c.lastUse.Store(time.Now().UnixNano())
	if c.metrics != nil {
		c.metrics.ConnectionsOpened.Inc()
		c.metrics.ConnectionsActive.Inc()
	}
	return c
}

// State returns the current connection state.
func (c *Conn) State() ConnState { return ConnState(c.state.Load()) }

func (c *Conn) setState(s ConnState) {
	c.state.Store(int32(s))
	c.lastUse.Store(time.Now().UnixNano())
}

// RequestCount returns how many requests Serve has completed on this
// connection so far.
func (c *Conn) RequestCount() int { return int(c.requests.Load()) }

// Serve processes requests on the connection until a non-keep-alive
// condition is reached, then closes the underlying net.Conn. It
// returns nil on a clean connection close (EOF between requests) and
// a non-nil error for a malformed message or handler failure.
func (c *Conn) Serve() error {
	remote := c.netConn.RemoteAddr()
	c.log.Debug().Stringer("remote", remote).Msg("connection accepted")
	defer c.netConn.Close()
	defer func() {
		if c.parserPool != nil && c.serializerPool != nil {
			c.parserPool.Put(c.parser.Parser)
			c.serializerPool.Put(c.serializer)
		}
		if c.metrics != nil {
			c.metrics.ConnectionsClosed.Inc()
			c.metrics.ConnectionsActive.Dec()
		}
		c.log.Debug().Stringer("remote", remote).Int("requests", int(c.requests.Load())).Msg("connection closed")
	}()

	for {
		if c.maxRequests > 0 && c.requests.Load() >= c.maxRequests {
			c.setState(StateClosed)
			return nil
		}

		if err := c.setDeadline(); err != nil {
			return err
		}

		c.setState(StateActive)
		c.parser.Start()
		if err := c.feedLeftover(); err != nil {
			return err
		}

		body := &BodyReader{Stream: c.reader, Parser: c.parser.Parser}
		if err := body.ParseHeader(); err != nil {
			if err == http1.ErrEndOfStream {
				c.setState(StateClosed)
				return nil
			}
			c.log.Warn().Stringer("remote", remote).Err(err).Msg("request header parse failed")
			return err
		}

		requestNum := c.requests.Add(1)
		willCloseAfterThis := c.maxRequests > 0 && requestNum >= c.maxRequests
		if c.metrics != nil {
			c.metrics.RequestsTotal.Inc()
		}

		c.serializer.Reset()
		handlerErr := c.handler(c.parser, body, c.serializer)
		if handlerErr != nil {
			c.log.Warn().Stringer("remote", remote).Err(handlerErr).Msg("request handler failed")
		}

		if err := c.drainBody(body); err != nil && handlerErr == nil {
			handlerErr = err
		}
		if err := c.flushResponse(); err != nil {
			c.log.Warn().Stringer("remote", remote).Err(err).Msg("response write failed")
			return err
		}

		closeAfter := willCloseAfterThis || handlerErr != nil ||
			c.parser.View().Metadata().ConnectionClose

		c.leftover = c.parser.ReleaseBufferedData()

		if closeAfter {
			c.setState(StateClosed)
			return handlerErr
		}

		c.setState(StateIdle)
	}
}

// feedLeftover re-injects bytes read past the previous message's
// boundary (pipelined data) into the freshly reset Parser before any
// new transport reads happen.
func (c *Conn) feedLeftover() error {
	for len(c.leftover) > 0 {
		buf, err := c.parser.Prepare()
		if err != nil {
			return err
		}
		n := copy(buf, c.leftover)
		c.parser.Commit(n)
		if n == len(c.leftover) {
			c.leftover = nil
			return nil
		}
		c.leftover = c.leftover[n:]
	}
	return nil
}

// drainBody consumes whatever body bytes the handler left unread, so
// ReleaseBufferedData can correctly identify the next message's
// leading bytes.
func (c *Conn) drainBody(body *BodyReader) error {
	var scratch [4096]byte
	for !c.parser.IsComplete() {
		_, err := body.ReadSome(scratch[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if err == http1.ErrBodyTooLarge && c.metrics != nil {
				c.metrics.BodyTooLargeTotal.Inc()
			}
			return err
		}
	}
	return nil
}

// flushResponse drains the Serializer to completion, honoring an
// Expect: 100-continue gate left unopened by the handler by opening it
// and continuing, since by the time Serve reaches this point the
// handler has already decided whether to consume the request body.
func (c *Conn) flushResponse() error {
	sink := &BodyWriteSink{Stream: c.writer, Serializer: c.serializer}
	for {
		err := sink.Flush()
		if err == nil {
			return nil
		}
		if err == http1.ErrExpect100Continue {
			c.serializer.AllowBody()
			continue
		}
		return err
	}
}

func (c *Conn) setDeadline() error {
	if c.keepAliveTimeout <= 0 {
		return nil
	}
	return c.netConn.SetDeadline(time.Now().Add(c.keepAliveTimeout))
}

// Close closes the underlying net.Conn immediately.
func (c *Conn) Close() error {
	c.setState(StateClosed)
	return c.netConn.Close()
}

// RemoteAddr returns the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }
