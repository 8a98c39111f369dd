package http1

// RequestParser decodes HTTP/1.1 requests. It is Parser with Kind
// fixed to KindRequest. Requests and responses get distinct wrapper
// types because their framing differs: a response's to_eof framing has
// no request counterpart.
type RequestParser struct{ *Parser }

// NewRequestParser constructs a RequestParser. cfg.Kind is forced to
// KindRequest regardless of what the caller set.
func NewRequestParser(cfg Config) *RequestParser {
	cfg.Kind = KindRequest
	return &RequestParser{Parser: NewParser(cfg)}
}

// Start begins decoding a new request. Requests never carry the
// head-response special case, so Start takes no argument.
func (p *RequestParser) Start() { p.Parser.Start(false) }

// ResponseParser decodes HTTP/1.1 responses.
type ResponseParser struct{ *Parser }

// NewResponseParser constructs a ResponseParser. cfg.Kind is forced to
// KindResponse regardless of what the caller set.
func NewResponseParser(cfg Config) *ResponseParser {
	cfg.Kind = KindResponse
	return &ResponseParser{Parser: NewParser(cfg)}
}

// Start begins decoding a new response. headRequest must be true when
// the request this response answers used the HEAD method, since a HEAD
// response reports Content-Length/Transfer-Encoding but never actually
// carries body bytes.
func (p *ResponseParser) Start(headRequest bool) { p.Parser.Start(headRequest) }
