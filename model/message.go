package model

import "net/textproto"

// Item is a single file yielded by an archive, before any decoding.
type Item struct {
	Key     string
	Archive string
	Bytes   []byte
}

// Message is a parsed message reduced to its header fields and one
// renderable body.
type Message struct {
	Headers    map[string]string
	BodyText   string
	BodyIsHTML bool
}

// Header returns the value of the named field. Lookup is case-insensitive.
func (m Message) Header(name string) (string, bool) {
	v, ok := m.Headers[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}
