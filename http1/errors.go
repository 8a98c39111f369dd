package http1

import (
	"errors"
	"fmt"
)

// Recoverable conditions. These never change parser/serializer state;
// they tell the caller to supply more input, more body data, or to
// act on a side channel (100-continue) before calling again.
var (
	ErrNeedMoreInput     = errors.New("http1: need more input")
	ErrNeedData          = errors.New("http1: need more body data")
	ErrExpect100Continue = errors.New("http1: expect 100-continue")
)

// Terminal conditions. Once returned, the Parser/Serializer is faulted
// and must be Reset before reuse.
var (
	ErrEndOfStream     = errors.New("http1: end of stream")
	ErrIncomplete      = errors.New("http1: message incomplete at eof")
	ErrBadHeader       = errors.New("http1: malformed header")
	ErrBadPayload      = errors.New("http1: malformed payload framing")
	ErrBodyTooLarge    = errors.New("http1: body exceeds configured limit")
	ErrInPlaceOverflow = errors.New("http1: workspace exhausted mid-message")
	ErrInvalidArgument = errors.New("http1: invalid argument")
)

// Specific syntactic header errors. Each wraps ErrBadHeader so
// errors.Is(err, ErrBadHeader) matches the kind regardless of which
// concrete check fired.
var (
	ErrInvalidRequestLine                = fmt.Errorf("%w: invalid request line", ErrBadHeader)
	ErrInvalidMethod                     = fmt.Errorf("%w: invalid method", ErrBadHeader)
	ErrInvalidPath                       = fmt.Errorf("%w: invalid path", ErrBadHeader)
	ErrInvalidProtocol                   = fmt.Errorf("%w: invalid protocol version", ErrBadHeader)
	ErrInvalidStatusCode                 = fmt.Errorf("%w: invalid status code", ErrBadHeader)
	ErrURITooLong                        = fmt.Errorf("%w: uri too long", ErrBadHeader)
	ErrRequestLineTooLarge               = fmt.Errorf("%w: request line too large", ErrBadHeader)
	ErrTooManyHeaders                    = fmt.Errorf("%w: too many headers", ErrBadHeader)
	ErrHeadersTooLarge                   = fmt.Errorf("%w: headers too large", ErrBadHeader)
	ErrInvalidContentLength              = fmt.Errorf("%w: invalid content-length", ErrBadHeader)
	ErrContentLengthWithTransferEncoding = fmt.Errorf("%w: content-length with transfer-encoding", ErrBadHeader)
	ErrDuplicateContentLength            = fmt.Errorf("%w: duplicate content-length", ErrBadHeader)
)

// ErrChunkedEncoding wraps ErrBadPayload the same way the header
// sentinels wrap ErrBadHeader.
var ErrChunkedEncoding = fmt.Errorf("%w: invalid chunked encoding", ErrBadPayload)

// ErrHeadersAlreadyWritten is returned by Serializer.Start/
// StartBuffers/StartStream when header bytes of the previous message
// have already been handed to the transport and the message is not yet
// done; restarting would corrupt the wire stream.
var ErrHeadersAlreadyWritten = errors.New("http1: headers already written")

// ContractViolation is panicked (not returned) when a caller violates
// a precondition the state machine documents. Go's analogue of an
// exception channel distinct from ordinary error returns is
// panic/recover, so contract violations use it explicitly.
type ContractViolation struct {
	Msg string
}

func (e ContractViolation) Error() string { return "http1: contract violation: " + e.Msg }

// Unwrap ties a recovered ContractViolation into the error taxonomy:
// errors.Is(err, ErrInvalidArgument) holds for any contract violation.
func (e ContractViolation) Unwrap() error { return ErrInvalidArgument }

func violate(msg string) {
	panic(ContractViolation{Msg: msg})
}
