// Package envelope implements the length-prefixed wire frame of
// spec.md §3/§6: a UTF-8 JSON text part plus an optional binary part.
package envelope

import (
	"encoding/binary"
	"fmt"
)

// Envelope is one framed application payload: a JSON text part and an
// optional binary part.
type Envelope struct {
	Text   []byte
	Binary []byte
}

// Encode lays out [u32 LE len(text)][text][u32 LE len(binary)][binary].
// When Binary is empty the second length is zero and no binary bytes
// follow, matching "n = 0" in spec.md §6.
func Encode(text, binary_ []byte) []byte {
	buf := make([]byte, 4+len(text)+4+len(binary_))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(text)))
	copy(buf[4:4+len(text)], text)
	offset := 4 + len(text)
	binary.LittleEndian.PutUint32(buf[offset:offset+4], uint32(len(binary_)))
	copy(buf[offset+4:], binary_)
	return buf
}

// Decode reverses Encode. It returns an error if frame is too short to
// hold its own declared lengths — a malformed or truncated frame.
func Decode(frame []byte) (text, binary_ []byte, err error) {
	if len(frame) < 4 {
		return nil, nil, fmt.Errorf("frame too short for text length prefix: %d bytes", len(frame))
	}
	textLen := int(binary.LittleEndian.Uint32(frame[0:4]))
	if len(frame) < 4+textLen+4 {
		return nil, nil, fmt.Errorf("frame too short for declared text length %d", textLen)
	}
	text = frame[4 : 4+textLen]

	binOffset := 4 + textLen
	binLen := int(binary.LittleEndian.Uint32(frame[binOffset : binOffset+4]))
	if len(frame) < binOffset+4+binLen {
		return nil, nil, fmt.Errorf("frame too short for declared binary length %d", binLen)
	}
	binary_ = frame[binOffset+4 : binOffset+4+binLen]

	return text, binary_, nil
}
