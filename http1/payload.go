package http1

import "github.com/mirodin/httpengine/header"

// PayloadKind classifies how a message's body is framed: none (no
// body expected),
// size(N) (Content-Length framing), chunked (Transfer-Encoding:
// chunked), to_eof (body runs until the connection closes), or error
// (the framing itself is contradictory and unparsable).
type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	PayloadSize
	PayloadChunked
	PayloadToEOF
	PayloadError
)

// String names a PayloadKind for logging.
func (k PayloadKind) String() string {
	switch k {
	case PayloadNone:
		return "none"
	case PayloadSize:
		return "size"
	case PayloadChunked:
		return "chunked"
	case PayloadToEOF:
		return "to_eof"
	default:
		return "error"
	}
}

// decidePayloadKind implements the decision table: chunked
// Transfer-Encoding wins over Content-Length (the two can never
// coexist; header.View already rejects that combination while
// parsing), a body-forbidden response status or method short-circuits
// to none, otherwise Content-Length governs, and a request with
// neither header and no forbidding condition has no body (to_eof only
// applies to responses without Content-Length, since a request body
// can never be framed by connection close).
func decidePayloadKind(kind Kind, method Method, statusCode int, meta header.Metadata) PayloadKind {
	if kind == KindResponse {
		if statusCode == 204 || statusCode == 304 || (statusCode >= 100 && statusCode < 200) {
			return PayloadNone
		}
	}
	if kind == KindRequest && method.BodyForbidden() {
		if !meta.HasContentLength && !meta.HasTransferEncoding {
			return PayloadNone
		}
	}
	if meta.HasTransferEncoding {
		if meta.ChunkedEncoding {
			return PayloadChunked
		}
		return PayloadError
	}
	if meta.HasContentLength {
		if meta.ContentLength == 0 {
			return PayloadNone
		}
		return PayloadSize
	}
	if kind == KindResponse {
		return PayloadToEOF
	}
	return PayloadNone
}
