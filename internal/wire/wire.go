package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version byte = 1

	KindPage      byte = 1
	KindComponent byte = 2
	KindCall      byte = 3
)

var (
	ErrCorrupt = errors.New("revalcache: corrupt entry")
	magic4     = [...]byte{'R', 'V', 'A', 'L'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// TagGen is a tag and the generation it had when the entry was written.
type TagGen struct {
	Tag string
	Gen uint64
}

// Envelope is everything the store keeps next to the encoded value.
type Envelope struct {
	Kind      byte
	WrittenAt int64 // unix nanos
	TTL       int64 // nanos; 0 => no age-based staleness
	Tags      []TagGen
	Payload   []byte
}

// Encode layout:
//
//	magic(4) | ver(1) | kind(1) | writtenAt(i64 be) | ttl(i64 be) | n(u16 be)
//	tagLen(u16 be) | tag(tagLen) | gen(u64 be)  * n
//	vlen(u32 be) | payload(vlen)
func Encode(e Envelope) ([]byte, error) {
	if e.Kind < KindPage || e.Kind > KindCall {
		return nil, fmt.Errorf("revalcache: invalid kind %d", e.Kind)
	}
	if len(e.Tags) > 0xFFFF {
		return nil, errors.New("revalcache: too many tags")
	}
	total := 4 + 1 + 1 + 8 + 8 + 2 + 4 + len(e.Payload)
	for _, t := range e.Tags {
		if l := len(t.Tag); l == 0 || l > 0xFFFF {
			return nil, errors.New("revalcache: invalid tag length")
		}
		total += 2 + len(t.Tag) + 8
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(e.Kind)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.WrittenAt))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.TTL))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Tags)))
	buf.Write(u2[:])
	for _, t := range e.Tags {
		binary.BigEndian.PutUint16(u2[:], uint16(len(t.Tag)))
		buf.Write(u2[:])
		buf.WriteString(t.Tag)
		binary.BigEndian.PutUint64(u8[:], t.Gen)
		buf.Write(u8[:])
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)
	return buf.Bytes(), nil
}

// Decode parses b strictly: unknown versions/kinds, truncation and trailing
// bytes are all ErrCorrupt. Payload aliases b.
func Decode(b []byte) (Envelope, error) {
	const hdr = 4 + 1 + 1 + 8 + 8 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return Envelope{}, ErrCorrupt
	}
	e := Envelope{Kind: b[5]}
	if e.Kind < KindPage || e.Kind > KindCall {
		return Envelope{}, ErrCorrupt
	}

	off := 6
	e.WrittenAt = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	e.TTL = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2

	if n > 0 {
		e.Tags = make([]TagGen, 0, n)
	}
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return Envelope{}, ErrCorrupt
		}
		tlen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if tlen == 0 || tlen > len(b)-off {
			return Envelope{}, ErrCorrupt
		}
		tag := string(b[off : off+tlen])
		off += tlen

		if off+8 > len(b) {
			return Envelope{}, ErrCorrupt
		}
		gen := binary.BigEndian.Uint64(b[off : off+8])
		off += 8
		e.Tags = append(e.Tags, TagGen{Tag: tag, Gen: gen})
	}

	if off+4 > len(b) {
		return Envelope{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off { // exact: no truncation, no trailing bytes
		return Envelope{}, ErrCorrupt
	}
	e.Payload = b[off : off+vlen]
	return e, nil
}
