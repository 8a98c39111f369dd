package header

import (
	"bytes"
	"strconv"
)

// applyMetadata folds a newly added field into the running Metadata,
// rejecting request-smuggling shapes: a Content-Length alongside
// Transfer-Encoding, or two different Content-Length values.
func (v *View) applyMetadata(id FieldID, value []byte) error {
	switch id {
	case FieldContentLength:
		n, ok := parseUint(value)
		if !ok {
			return ErrInvalidContentLength
		}
		if v.meta.HasTransferEncoding {
			return ErrContentLengthWithTransferEncoding
		}
		if v.meta.HasContentLength && n != v.meta.ContentLength {
			return ErrDuplicateContentLength
		}
		v.meta.HasContentLength = true
		v.meta.ContentLength = n
	case FieldTransferEncoding:
		if v.meta.HasContentLength {
			return ErrContentLengthWithTransferEncoding
		}
		v.meta.HasTransferEncoding = true
		if bytes.Contains(bytes.ToLower(value), []byte("chunked")) {
			v.meta.ChunkedEncoding = true
		}
	case FieldContentEncoding:
		v.meta.ContentEncoding = string(bytes.TrimSpace(value))
	case FieldConnection:
		lower := bytes.ToLower(value)
		if bytes.Contains(lower, []byte("close")) {
			v.meta.ConnectionClose = true
		}
		if bytes.Contains(lower, []byte("keep-alive")) {
			v.meta.ConnectionKeepAlive = true
		}
	case FieldExpect:
		if bytes.EqualFold(bytes.TrimSpace(value), []byte("100-continue")) {
			v.meta.Expect100Continue = true
		}
	case FieldUpgrade:
		v.meta.HasUpgrade = true
	}
	return nil
}

func parseUint(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
