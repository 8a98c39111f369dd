package header

// FieldID names a well-known header field so lookups in the hot path
// can switch on a small integer instead of comparing strings.
type FieldID uint8

const (
	FieldUnknown FieldID = iota
	FieldContentLength
	FieldTransferEncoding
	FieldContentEncoding
	FieldConnection
	FieldHost
	FieldContentType
	FieldExpect
	FieldUpgrade
	FieldTrailer
	FieldAcceptEncoding
	fieldIDCount
)

var fieldNames = [fieldIDCount][]byte{
	FieldUnknown:          nil,
	FieldContentLength:    []byte("Content-Length"),
	FieldTransferEncoding: []byte("Transfer-Encoding"),
	FieldContentEncoding:  []byte("Content-Encoding"),
	FieldConnection:       []byte("Connection"),
	FieldHost:             []byte("Host"),
	FieldContentType:      []byte("Content-Type"),
	FieldExpect:           []byte("Expect"),
	FieldUpgrade:          []byte("Upgrade"),
	FieldTrailer:          []byte("Trailer"),
	FieldAcceptEncoding:   []byte("Accept-Encoding"),
}

// Name returns the canonical byte spelling of a well-known field id.
func (id FieldID) Name() []byte { return fieldNames[id] }

// LookupFieldID maps a header name to its well-known FieldID, or
// FieldUnknown if name is not one of the fields this package tracks
// metadata for. Comparison is ASCII case-insensitive.
func LookupFieldID(name []byte) FieldID {
	switch len(name) {
	case 4:
		if equalFold(name, fieldNames[FieldHost]) {
			return FieldHost
		}
	case 6:
		if equalFold(name, fieldNames[FieldExpect]) {
			return FieldExpect
		}
	case 7:
		if equalFold(name, fieldNames[FieldTrailer]) {
			return FieldTrailer
		}
		if equalFold(name, fieldNames[FieldUpgrade]) {
			return FieldUpgrade
		}
	case 10:
		if equalFold(name, fieldNames[FieldConnection]) {
			return FieldConnection
		}
	case 12:
		if equalFold(name, fieldNames[FieldContentType]) {
			return FieldContentType
		}
	case 14:
		if equalFold(name, fieldNames[FieldContentLength]) {
			return FieldContentLength
		}
	case 15:
		if equalFold(name, fieldNames[FieldAcceptEncoding]) {
			return FieldAcceptEncoding
		}
	case 16:
		if equalFold(name, fieldNames[FieldContentEncoding]) {
			return FieldContentEncoding
		}
	case 17:
		if equalFold(name, fieldNames[FieldTransferEncoding]) {
			return FieldTransferEncoding
		}
	}
	return FieldUnknown
}

func equalFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
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
