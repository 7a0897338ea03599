// Package wire implements the subset of the memcached binary protocol
// used by cachesrv: a 24-byte fixed header followed by extras, key and
// value sections, all big-endian.
//
//	Byte/     0       |       1       |       2       |       3       |
//	   /              |               |               |               |
//	  |0 1 2 3 4 5 6 7|0 1 2 3 4 5 6 7|0 1 2 3 4 5 6 7|0 1 2 3 4 5 6 7|
//	  +---------------+---------------+---------------+---------------+
//	 0| Magic         | Opcode        | Key length                    |
//	  +---------------+---------------+---------------+---------------+
//	 4| Extras length | Data type     | Status / vbucket id           |
//	  +---------------+---------------+---------------+---------------+
//	 8| Total body length                                             |
//	  +---------------+---------------+---------------+---------------+
//	12| Opaque                                                        |
//	  +---------------+---------------+---------------+---------------+
//	16| CAS                                                           |
//	  |                                                               |
//	  +---------------+---------------+---------------+---------------+
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	MagicRequest  uint8 = 0x80
	MagicResponse uint8 = 0x81
)

const (
	OpGet uint8 = 0x00
	OpSet uint8 = 0x01
)

const (
	StatusOK               uint16 = 0x00
	StatusKeyNotFound      uint16 = 0x01
	StatusValueTooLarge    uint16 = 0x03
	StatusInvalidArguments uint16 = 0x04
	StatusUnknownCommand   uint16 = 0x81
	StatusOutOfMemory      uint16 = 0x82
)

// MaxValueLen is the hard framing cap on a decoded value. Messages
// whose declared value length exceeds this are a fatal framing error.
const MaxValueLen = 10_000_000

// MaxSetValueLen is the SET semantics cap (spec layer, not framing).
const MaxSetValueLen = 1_000_000

const headerLen = 24

// ErrEndOfStream is returned by Decode when the peer closed the
// connection cleanly before any byte of a new message arrived.
var ErrEndOfStream = errors.New("wire: end of stream")

// FramingError marks any violation of the wire-format invariants. It
// is always fatal to the connection it was read from.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("wire: %s", e.Reason)
}

func (e *FramingError) Unwrap() error { return e.Err }

func framingErr(reason string, err error) error {
	return &FramingError{Reason: reason, Err: err}
}

// Message is a single request or response. CAS is accepted on
// requests and ignored; it is always zero on responses this server
// writes.
type Message struct {
	Magic           uint8
	Opcode          uint8
	DataType        uint8
	StatusOrVBucket uint16
	Opaque          uint32
	CAS             uint64

	Extras []byte
	Key    []byte
	Value  []byte
}

// BodyLen is extras+key+value, the wire "total body length" field.
func (m *Message) BodyLen() uint32 {
	return uint32(len(m.Extras) + len(m.Key) + len(m.Value))
}

// GoString renders a Message the way a debugger or verbose log would,
// the Go analogue of the original Python Message.__repr__.
func (m *Message) GoString() string {
	return fmt.Sprintf(
		"wire.Message{magic=0x%02x, opcode=0x%02x, keylen=%d, extralen=%d, datatype=%d, status=0x%02x, bodylen=%d, key=%q}",
		m.Magic, m.Opcode, len(m.Key), len(m.Extras), m.DataType, m.StatusOrVBucket, m.BodyLen(), m.Key,
	)
}

// Decode reads one message from r. It returns ErrEndOfStream if the
// peer closed the connection before any byte arrived, or a
// *FramingError for any other violation of the wire format.
func Decode(r io.Reader) (*Message, error) {
	var header [headerLen]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, ErrEndOfStream
		}
		return nil, framingErr("incorrect header", err)
	}

	m := &Message{
		Magic:           header[0],
		Opcode:          header[1],
		DataType:        header[5],
		StatusOrVBucket: binary.BigEndian.Uint16(header[6:8]),
		Opaque:          binary.BigEndian.Uint32(header[12:16]),
		CAS:             binary.BigEndian.Uint64(header[16:24]),
	}
	keyLen := binary.BigEndian.Uint16(header[2:4])
	extrasLen := header[4]
	bodyLen := binary.BigEndian.Uint32(header[8:12])

	if m.Magic != MagicRequest && m.Magic != MagicResponse {
		return nil, framingErr("incorrect packet", nil)
	}

	if extrasLen > 0 {
		m.Extras = make([]byte, extrasLen)
		if _, err := io.ReadFull(r, m.Extras); err != nil {
			return nil, framingErr("incorrect extralen", err)
		}
	}

	if keyLen > 0 {
		m.Key = make([]byte, keyLen)
		if _, err := io.ReadFull(r, m.Key); err != nil {
			return nil, framingErr("incorrect keylen", err)
		}
	}

	valueLen := int64(bodyLen) - int64(extrasLen) - int64(keyLen)
	if valueLen < 0 {
		return nil, framingErr("incorrect bodylen", nil)
	}
	if valueLen > MaxValueLen {
		return nil, framingErr("value too large", nil)
	}
	if valueLen > 0 {
		m.Value = make([]byte, valueLen)
		if _, err := io.ReadFull(r, m.Value); err != nil {
			return nil, framingErr("incorrect bodylen", err)
		}
	}

	return m, nil
}

// Encode writes m to w as a header+extras+key unit followed by a
// separate value write, so callers streaming a large value never need
// to concatenate it onto the header.
func Encode(w io.Writer, m *Message) error {
	head := headPool.get(headerLen + len(m.Extras) + len(m.Key))
	defer headPool.put(head)
	head[0] = m.Magic
	head[1] = m.Opcode
	binary.BigEndian.PutUint16(head[2:4], uint16(len(m.Key)))
	head[4] = uint8(len(m.Extras))
	head[5] = m.DataType
	binary.BigEndian.PutUint16(head[6:8], m.StatusOrVBucket)
	binary.BigEndian.PutUint32(head[8:12], m.BodyLen())
	binary.BigEndian.PutUint32(head[12:16], m.Opaque)
	binary.BigEndian.PutUint64(head[16:24], m.CAS)
	copy(head[headerLen:headerLen+len(m.Extras)], m.Extras)
	copy(head[headerLen+len(m.Extras):], m.Key)

	if _, err := w.Write(head); err != nil {
		return err
	}
	if len(m.Value) > 0 {
		if _, err := w.Write(m.Value); err != nil {
			return err
		}
	}
	return nil
}
