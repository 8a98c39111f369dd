package http1

// Method identifies an HTTP request method by a small integer so
// dispatch and comparisons avoid string work in the hot path.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodGET
	MethodHEAD
	MethodPOST
	MethodPUT
	MethodDELETE
	MethodCONNECT
	MethodOPTIONS
	MethodTRACE
	MethodPATCH
)

var methodBytes = [...][]byte{
	MethodUnknown: []byte(""),
	MethodGET:     []byte("GET"),
	MethodHEAD:    []byte("HEAD"),
	MethodPOST:    []byte("POST"),
	MethodPUT:     []byte("PUT"),
	MethodDELETE:  []byte("DELETE"),
	MethodCONNECT: []byte("CONNECT"),
	MethodOPTIONS: []byte("OPTIONS"),
	MethodTRACE:   []byte("TRACE"),
	MethodPATCH:   []byte("PATCH"),
}

// String returns the wire spelling of m.
func (m Method) String() string { return string(methodBytes[m]) }

// Bytes returns the wire spelling of m.
func (m Method) Bytes() []byte { return methodBytes[m] }

// ParseMethod maps a wire method token to a Method, or MethodUnknown if
// it is not one of the registered methods (an unrecognized method is
// not itself an error; RFC 7230 treats the method as an extensible
// token, so callers that care must reject MethodUnknown themselves).
func ParseMethod(b []byte) Method {
	switch len(b) {
	case 3:
		if string(b) == "GET" {
			return MethodGET
		}
		if string(b) == "PUT" {
			return MethodPUT
		}
	case 4:
		if string(b) == "HEAD" {
			return MethodHEAD
		}
		if string(b) == "POST" {
			return MethodPOST
		}
	case 5:
		if string(b) == "PATCH" {
			return MethodPATCH
		}
		if string(b) == "TRACE" {
			return MethodTRACE
		}
	case 6:
		if string(b) == "DELETE" {
			return MethodDELETE
		}
	case 7:
		if string(b) == "CONNECT" {
			return MethodCONNECT
		}
		if string(b) == "OPTIONS" {
			return MethodOPTIONS
		}
	}
	return MethodUnknown
}

// BodyForbidden reports whether a request with this method is never
// expected to carry a body framed by Content-Length/Transfer-Encoding
// for payload-kind purposes (RFC 7230 §3.3.2 treats a body on these as
// implementation-defined; this module treats HEAD, CONNECT and TRACE
// requests as body-forbidden and every other method as body-capable).
func (m Method) BodyForbidden() bool {
	switch m {
	case MethodHEAD, MethodTRACE, MethodCONNECT:
		return true
	}
	return false
}
