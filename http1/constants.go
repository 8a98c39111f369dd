package http1

// Wire constants. Every byte slice the serializer writes is
// pre-compiled so the hot path never allocates.
var (
	crlf        = []byte("\r\n")
	colonSpace  = []byte(": ")
	http11Bytes = []byte("HTTP/1.1")
	http10Bytes = []byte("HTTP/1.0")
	lastChunk   = []byte("0\r\n\r\n")
)

// Default configuration limits. Enforced as Workspace capacity checks
// rather than fixed-size arrays since the Header view is arena-backed.
const (
	DefaultMaxHeaderCount = 100
	DefaultMaxHeaderSize  = 8192
	DefaultMaxStartLine   = 8192
	DefaultMaxURILength   = 8192
	DefaultMaxBodyLimit   = 8 << 20 // 8 MiB, overridable via SetBodyLimit

	// DefaultBodyRingSize sizes the ring buffer a Parser reserves from
	// its Workspace for body delivery (filtered or verbatim). It must
	// fit alongside the header block and field index, which
	// workspace.DefaultSize is sized to accommodate.
	DefaultBodyRingSize = 16 * 1024

	// DefaultPayloadBufferSize sizes the Serializer's staging (in_ring)
	// buffer and filter scratch/output buffers when no explicit
	// PayloadBuffer is configured.
	DefaultPayloadBufferSize = 4096

	// DefaultMinBuffer is the default for Config.MinBuffer, which
	// Prepare does not consult.
	DefaultMinBuffer = 4096
)

var statusText = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	417: "Expectation Failed",
	422: "Unprocessable Entity",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// StatusText returns the RFC 7231 §6 reason phrase for code, or
// "Unknown" if code is not one of the common statuses this module
// pre-maps.
func StatusText(code int) string {
	if t, ok := statusText[code]; ok {
		return t
	}
	return "Unknown"
}
