// Package filter adapts block-oriented compression codecs to the
// byte-granular Process contract the parser and serializer drive their
// Content-Encoding handling through.
package filter

// Result reports what a single Process call consumed and produced:
// InBytes/OutBytes consumed/produced this call, Finished once the
// stream has reached its natural end, and OutShort when out was filled
// before in was fully consumed (the caller should drain out and call
// again).
type Result struct {
	InBytes  int
	OutBytes int
	Finished bool
	OutShort bool
}

// Filter is the uniform interface shared by compressors and
// decompressors. Process consumes as much of in as it can, writing the
// transformed bytes to out, and returns how much of each buffer it
// touched. more is false on the final call for a message (end of body),
// requesting the codec flush any buffered state; true otherwise.
// Process never blocks. A filter may buffer internally: decompressors
// hold the encoded stream until the final input arrives, and
// compressors hold encoded output until it has been drained, so a
// single logical byte may take several Process calls to surface.
type Filter interface {
	Process(out, in []byte, more bool) (Result, error)
}
