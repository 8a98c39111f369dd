package main

import (
	"io"

	"github.com/mirodin/httpengine/http1"
	"github.com/mirodin/httpengine/streamio"
)

// echoHandler reads the request body (if any) fully into memory and
// writes it back as the response body, reporting the request method
// and target in an X-Echo-Of header. It exists to exercise the full
// Parser -> Serializer round trip end to end, not as a production
// handler shape.
func echoHandler(req *http1.RequestParser, body *streamio.BodyReader, resp *http1.Serializer) error {
	var buf []byte
	var scratch [8192]byte
	for {
		n, err := body.ReadSome(scratch[:])
		buf = append(buf, scratch[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	fields := []http1.Field{
		{Name: "X-Echo-Of", Value: req.Method().String() + " " + req.Target()},
	}

	if len(buf) == 0 {
		return resp.Start(http1.Message{
			Kind:       http1.KindResponse,
			StatusCode: 204,
			Fields:     fields,
		})
	}
	return resp.StartBuffers(http1.Message{
		Kind:       http1.KindResponse,
		StatusCode: 200,
		Fields:     fields,
	}, [][]byte{buf})
}
