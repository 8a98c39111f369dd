package http1

import (
	"testing"

	"github.com/mirodin/httpengine/header"
)

func TestDecidePayloadKindTable(t *testing.T) {
	cases := []struct {
		name    string
		kind    Kind
		method  Method
		status  int
		meta    header.Metadata
		want    PayloadKind
	}{
		{
			name:   "chunked response with body-capable status",
			kind:   KindResponse,
			status: 200,
			meta:   header.Metadata{HasTransferEncoding: true, ChunkedEncoding: true},
			want:   PayloadChunked,
		},
		{
			name:   "content-length positive",
			kind:   KindRequest,
			method: MethodPOST,
			meta:   header.Metadata{HasContentLength: true, ContentLength: 5},
			want:   PayloadSize,
		},
		{
			name:   "content-length zero means none",
			kind:   KindRequest,
			method: MethodPOST,
			meta:   header.Metadata{HasContentLength: true, ContentLength: 0},
			want:   PayloadNone,
		},
		{
			name:   "response with no framing is to_eof",
			kind:   KindResponse,
			status: 200,
			meta:   header.Metadata{},
			want:   PayloadToEOF,
		},
		{
			name:   "204 forces none regardless of framing",
			kind:   KindResponse,
			status: 204,
			meta:   header.Metadata{HasContentLength: true, ContentLength: 10},
			want:   PayloadNone,
		},
		{
			name:   "304 forces none",
			kind:   KindResponse,
			status: 304,
			meta:   header.Metadata{},
			want:   PayloadNone,
		},
		{
			name:   "1xx forces none",
			kind:   KindResponse,
			status: 100,
			meta:   header.Metadata{},
			want:   PayloadNone,
		},
		{
			name:   "request with no framing has no body",
			kind:   KindRequest,
			method: MethodPOST,
			meta:   header.Metadata{},
			want:   PayloadNone,
		},
		{
			name:   "body-forbidden method with no framing is none",
			kind:   KindRequest,
			method: MethodHEAD,
			meta:   header.Metadata{},
			want:   PayloadNone,
		},
		{
			name:   "transfer-encoding present but not chunked is an error",
			kind:   KindRequest,
			method: MethodPOST,
			meta:   header.Metadata{HasTransferEncoding: true, ChunkedEncoding: false},
			want:   PayloadError,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := decidePayloadKind(c.kind, c.method, c.status, c.meta)
			if got != c.want {
				t.Fatalf("decidePayloadKind = %v, want %v", got, c.want)
			}
		})
	}
}

func TestPayloadKindString(t *testing.T) {
	cases := map[PayloadKind]string{
		PayloadNone:    "none",
		PayloadSize:    "size",
		PayloadChunked: "chunked",
		PayloadToEOF:   "to_eof",
		PayloadError:   "error",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", k, got, want)
		}
	}
}
