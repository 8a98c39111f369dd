package http1

// Kind distinguishes a request parser/serializer from a response one;
// the two share every algorithm except start-line grammar and the
// payload-kind decision table's body-forbidden rules.
type Kind uint8

const (
	KindRequest Kind = iota
	KindResponse
)
