package header

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mirodin/httpengine/workspace"
)

// ErrMalformed is returned when a header line violates the field-name
// or field-value grammar (stray CR/LF, whitespace before the colon,
// empty name).
var ErrMalformed = errors.New("header: malformed field")

// Framing-field rejections. Each wraps ErrMalformed so errors.Is
// still matches the generic kind; the specific values let callers
// distinguish the request-smuggling shapes RFC 7230 §3.3.3 requires
// rejecting.
var (
	ErrInvalidContentLength              = fmt.Errorf("%w: invalid Content-Length", ErrMalformed)
	ErrContentLengthWithTransferEncoding = fmt.Errorf("%w: Content-Length with Transfer-Encoding", ErrMalformed)
	ErrDuplicateContentLength            = fmt.Errorf("%w: conflicting Content-Length values", ErrMalformed)
)

// ErrTooManyFields is returned by Add/AddTrailer once the Workspace-
// backed field index carved by Reset has no more room, keeping field
// storage bounded by the maxFields+1 slots Reset carved rather than growing
// past the arena.
var ErrTooManyFields = errors.New("header: too many fields")

// Field is a single parsed header field, referencing bytes owned by
// the View's buffer.
type Field struct {
	ID    FieldID
	Name  []byte
	Value []byte
}

// entry is the back-allocated field-index record: an offset/length
// pair for the name and value, plus the resolved FieldID. Entries are
// stored in the Workspace's back region so the whole header view lives
// in one arena, per the Workspace's ownership of everything the parser
// touches.
type entry struct {
	id                 FieldID
	nameOff, nameLen   int
	valueOff, valueLen int
}

// Metadata summarizes the header fields that drive framing decisions,
// computed once as headers are added rather than re-scanned on every
// query.
type Metadata struct {
	HasContentLength    bool
	ContentLength       uint64
	HasTransferEncoding bool
	ChunkedEncoding     bool
	ContentEncoding     string
	ConnectionClose     bool
	ConnectionKeepAlive bool
	Expect100Continue   bool
	HasUpgrade          bool
}

// View is a parsed header block: the raw bytes plus a field index and
// derived Metadata. A View never owns its own storage; it is reset and
// reused across messages by pointing buf at a fresh Workspace region,
// and its field/trailer index arrays are carved from that same
// Workspace via workspace.PushArray so the whole header view lives in
// one arena rather than a heap-grown Go slice.
type View struct {
	buf      []byte
	entries  []entry
	trailers []entry
	meta     Metadata
	got      bool
}

// Reset clears the view for reuse with a new buffer and (re)carves its
// field-index and trailer-index arrays from ws, each sized for up to
// maxFields+1 entries. It returns workspace.ErrExhausted if ws has no
// room left for either array.
func (v *View) Reset(buf []byte, ws *workspace.Workspace, maxFields int) error {
	v.buf = buf
	v.meta = Metadata{}
	v.got = false
	entries, err := workspace.PushArray[entry](ws, maxFields+1)
	if err != nil {
		v.entries, v.trailers = nil, nil
		return err
	}
	trailers, err := workspace.PushArray[entry](ws, maxFields+1)
	if err != nil {
		v.entries, v.trailers = nil, nil
		return err
	}
	v.entries = entries[:0]
	v.trailers = trailers[:0]
	return nil
}

// ResetState clears completion/metadata state without touching the
// field-index arrays, for use when the owning Workspace has already
// been (or is about to be) cleared and a real Reset with a freshly
// carved buf will follow once a new header block is available.
func (v *View) ResetState() {
	v.buf = nil
	v.entries = nil
	v.trailers = nil
	v.meta = Metadata{}
	v.got = false
}

// Buffer returns the raw header bytes backing this view.
func (v *View) Buffer() []byte { return v.buf }

// GotHeader reports whether SetComplete has been called, mirroring the
// parser's got_header() once the header block has been fully scanned.
func (v *View) GotHeader() bool { return v.got }

// SetComplete marks the header as fully parsed. Called by the parser
// once it has consumed the blank line ending the header block.
func (v *View) SetComplete() { v.got = true }

// Metadata returns the derived framing metadata for this header block.
func (v *View) Metadata() Metadata { return v.meta }

// Add records a parsed name/value field at the given byte offsets into
// Buffer(). The parser computes these offsets as it scans the header
// block, so the index never needs to search for them. Add rejects CR
// or LF embedded in either span and updates Metadata for well-known
// fields as they arrive, combining repeated
// Content-Length/Transfer-Encoding occurrences under the
// request-smuggling rules in metadata.go.
func (v *View) Add(nameOff, nameLen, valueOff, valueLen int) error {
	if len(v.entries) >= cap(v.entries) {
		return ErrTooManyFields
	}
	name := v.buf[nameOff : nameOff+nameLen]
	value := v.buf[valueOff : valueOff+valueLen]
	if containsCRLF(name) || containsCRLF(value) || nameLen == 0 {
		return ErrMalformed
	}
	id := LookupFieldID(name)
	v.entries = append(v.entries, entry{id: id, nameOff: nameOff, nameLen: nameLen, valueOff: valueOff, valueLen: valueLen})
	return v.applyMetadata(id, value)
}

// AddTrailer records a parsed trailer field by byte offsets, populated
// only once the chunked body has finished. Trailers never influence
// Metadata: they arrive after framing decisions have already been
// made.
func (v *View) AddTrailer(nameOff, nameLen, valueOff, valueLen int) error {
	if len(v.trailers) >= cap(v.trailers) {
		return ErrTooManyFields
	}
	name := v.buf[nameOff : nameOff+nameLen]
	value := v.buf[valueOff : valueOff+valueLen]
	if containsCRLF(name) || containsCRLF(value) || nameLen == 0 {
		return ErrMalformed
	}
	v.trailers = append(v.trailers, entry{id: LookupFieldID(name), nameOff: nameOff, nameLen: nameLen, valueOff: valueOff, valueLen: valueLen})
	return nil
}

func containsCRLF(b []byte) bool {
	return bytes.IndexByte(b, '\r') >= 0 || bytes.IndexByte(b, '\n') >= 0
}

// Count returns how many fields with the given id are present.
func (v *View) Count(id FieldID) int {
	n := 0
	for _, e := range v.entries {
		if e.id == id {
			n++
		}
	}
	return n
}

// Exists reports whether at least one field with the given id is
// present.
func (v *View) Exists(id FieldID) bool { return v.Count(id) > 0 }

// Find returns the first field with the given id.
func (v *View) Find(id FieldID) (Field, bool) {
	for _, e := range v.entries {
		if e.id == id {
			return v.field(e), true
		}
	}
	return Field{}, false
}

// FindAll returns every field with the given id, in wire order.
func (v *View) FindAll(id FieldID) []Field {
	var out []Field
	for _, e := range v.entries {
		if e.id == id {
			out = append(out, v.field(e))
		}
	}
	return out
}

// FindByName looks up a field by its literal (possibly non-well-known)
// name, case-insensitively.
func (v *View) FindByName(name []byte) (Field, bool) {
	for _, e := range v.entries {
		if equalFold(v.buf[e.nameOff:e.nameOff+e.nameLen], name) {
			return v.field(e), true
		}
	}
	return Field{}, false
}

// CombineFieldValues returns all values for id joined with ",",
// mirroring RFC 7230 §3.2.2's rule that a list-valued header repeated
// across multiple fields is equivalent to one field with the values
// comma-joined in order.
func (v *View) CombineFieldValues(id FieldID) (string, bool) {
	fields := v.FindAll(id)
	if len(fields) == 0 {
		return "", false
	}
	if len(fields) == 1 {
		return string(fields[0].Value), true
	}
	var buf bytes.Buffer
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(f.Value)
	}
	return buf.String(), true
}

// Trailers returns the trailer fields parsed after a chunked body,
// valid only once the owning Parser reports IsComplete.
func (v *View) Trailers() []Field {
	out := make([]Field, len(v.trailers))
	for i, e := range v.trailers {
		out[i] = v.field(e)
	}
	return out
}

func (v *View) field(e entry) Field {
	return Field{
		ID:    e.id,
		Name:  v.buf[e.nameOff : e.nameOff+e.nameLen],
		Value: v.buf[e.valueOff : e.valueOff+e.valueLen],
	}
}

// VisitAll calls fn for every field in wire order, stopping early if
// fn returns false.
func (v *View) VisitAll(fn func(name, value []byte) bool) {
	for _, e := range v.entries {
		if !fn(v.buf[e.nameOff:e.nameOff+e.nameLen], v.buf[e.valueOff:e.valueOff+e.valueLen]) {
			return
		}
	}
}
