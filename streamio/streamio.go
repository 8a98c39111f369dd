// Package streamio bridges the Workspace-resident Parser/Serializer in
// package http1 to ordinary blocking Go I/O. Suspension lives entirely
// in these adapters: a goroutine blocked on a read or write is the
// only wait point, so the Parser/Serializer cores stay synchronous and
// no scheduler abstraction is introduced.
package streamio

import "io"

// ReadStream is the minimal read side of the caller-provided stream
// contract. net.Conn and any io.Reader satisfy it through ReaderStream.
type ReadStream interface {
	ReadSome(p []byte) (int, error)
}

// WriteStream is the minimal write side of the caller-provided stream
// contract. net.Conn and any io.Writer satisfy it through WriterStream.
type WriteStream interface {
	WriteSome(p []byte) (int, error)
}

// ReaderStream adapts an io.Reader to ReadStream.
type ReaderStream struct{ R io.Reader }

// ReadSome implements ReadStream by delegating to the wrapped Reader.
func (s ReaderStream) ReadSome(p []byte) (int, error) { return s.R.Read(p) }

// WriterStream adapts an io.Writer to WriteStream.
type WriterStream struct{ W io.Writer }

// WriteSome implements WriteStream by delegating to the wrapped Writer.
func (s WriterStream) WriteSome(p []byte) (int, error) { return s.W.Write(p) }
