// Package face implements the External connectors spec.md §1 calls
// collaborators rather than core: the TCP/UDP/Unix/WebSocket/QUIC
// listeners and transports that hand parsed Messages to the
// MessageProcessor, and the codec between wire bytes and a Message.
//
// The wire format itself is an explicit non-goal (spec.md §1); this
// package's codec is deliberately simple — a fixed field layout, not a
// TLV scheme — since spec.md only constrains two observable properties
// (§6): a ContentObject is expired once wall-clock >= its declared expiry,
// and re-encoding/re-parsing the same packet must round-trip to an
// equivalent Message. Framing is grounded on
// std/utils/io.ReadTlvStream's "read the stream, invoke a callback per
// delimited frame" shape, generalized here to a plain 4-byte big-endian
// length prefix (the same framing spec.md §6 names explicitly for the
// control-plane socket) rather than a TLV length.
package face

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/named-data/icnfwd/internal/clock"
	"github.com/named-data/icnfwd/internal/message"
	"github.com/named-data/icnfwd/internal/name"
	"github.com/named-data/icnfwd/internal/rc"
)

const maxFrameSize = 64 * 1024 * 1024

// wireKind tags a frame's Message kind on the wire. Distinct from
// message.Kind so the codec's byte values are pinned independently of any
// future reordering of that enum.
type wireKind uint8

const (
	wireInterest      wireKind = 1
	wireContentObject wireKind = 2
	wireControl       wireKind = 3
)

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("face: frame of %d bytes exceeds %d byte limit", n, maxFrameSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func putBytes(buf []byte, b []byte) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, b...)
}

func getBytes(buf []byte) (b []byte, rest []byte, err error) {
	if len(buf) < 2 {
		return nil, nil, io.ErrUnexpectedEOF
	}
	n := int(binary.BigEndian.Uint16(buf))
	buf = buf[2:]
	if len(buf) < n {
		return nil, nil, io.ErrUnexpectedEOF
	}
	return buf[:n], buf[n:], nil
}

// encodeName writes n's components in the putBytes length-prefixed form.
func encodeName(buf []byte, n name.Name) []byte {
	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(n.Len()))
	buf = append(buf, countBuf[:]...)
	for i := 0; i < n.Len(); i++ {
		buf = putBytes(buf, n.At(i).Val)
	}
	return buf
}

func decodeName(buf []byte) (name.Name, []byte, error) {
	if len(buf) < 2 {
		return name.Name{}, nil, io.ErrUnexpectedEOF
	}
	count := int(binary.BigEndian.Uint16(buf))
	buf = buf[2:]
	comps := make([]name.Component, 0, count)
	for i := 0; i < count; i++ {
		var b []byte
		var err error
		b, buf, err = getBytes(buf)
		if err != nil {
			return name.Name{}, nil, err
		}
		comps = append(comps, name.NewComponent(b))
	}
	return name.New(comps...), buf, nil
}

// Encode serializes msg to a wire frame payload (the bytes WriteFrame
// sends, not including the length prefix).
func Encode(msg *message.Message) ([]byte, error) {
	var buf []byte
	switch msg.Kind {
	case message.Interest:
		buf = append(buf, byte(wireInterest))
		buf = encodeName(buf, msg.Name)
		buf = putBytes(buf, msg.Restriction.KeyID)
		buf = putBytes(buf, msg.Restriction.ObjectHash)
		var rest [5]byte
		binary.BigEndian.PutUint32(rest[:4], msg.Lifetime)
		rest[4] = msg.HopLimit
		buf = append(buf, rest[:]...)
		return buf, nil

	case message.ContentObject:
		buf = append(buf, byte(wireContentObject))
		buf = encodeName(buf, msg.Name)
		buf = putBytes(buf, msg.KeyLocator)
		var flags [1]byte
		if msg.HasExpiry {
			flags[0] |= 1
		}
		if msg.HasCacheTime {
			flags[0] |= 2
		}
		buf = append(buf, flags[0])
		var ticks [16]byte
		binary.BigEndian.PutUint64(ticks[0:8], uint64(msg.ExpiryTime))
		binary.BigEndian.PutUint64(ticks[8:16], uint64(msg.CacheTime))
		buf = append(buf, ticks[:]...)
		var payloadLen [4]byte
		binary.BigEndian.PutUint32(payloadLen[:], uint32(len(msg.Payload)))
		buf = append(buf, payloadLen[:]...)
		buf = append(buf, msg.Payload...)
		return buf, nil

	case message.Control:
		buf = append(buf, byte(wireControl))
		verb := []byte(msg.ControlVerb)
		var verbLen [4]byte
		binary.BigEndian.PutUint32(verbLen[:], uint32(len(verb)))
		buf = append(buf, verbLen[:]...)
		buf = append(buf, verb...)
		return buf, nil
	}
	return nil, fmt.Errorf("face: unknown message kind %v", msg.Kind)
}

// Decode parses a wire frame payload into a freshly-refcounted Message,
// stamping ingress and created as given (the codec has no notion of
// either; the caller supplies them from the accepting transport and the
// Dispatcher's clock).
func Decode(buf []byte, ingress uint64, created clock.Ticks) (*rc.Ref[*message.Message], error) {
	if len(buf) < 1 {
		return nil, io.ErrUnexpectedEOF
	}
	kind, buf := wireKind(buf[0]), buf[1:]

	switch kind {
	case wireInterest:
		n, rest, err := decodeName(buf)
		if err != nil {
			return nil, err
		}
		keyID, rest, err := getBytes(rest)
		if err != nil {
			return nil, err
		}
		objHash, rest, err := getBytes(rest)
		if err != nil {
			return nil, err
		}
		if len(rest) < 5 {
			return nil, io.ErrUnexpectedEOF
		}
		lifetime := binary.BigEndian.Uint32(rest[:4])
		hopLimit := rest[4]
		restriction := message.Restriction{KeyID: keyID, ObjectHash: objHash}
		return message.NewInterest(n, restriction, lifetime, hopLimit, ingress, created), nil

	case wireContentObject:
		n, rest, err := decodeName(buf)
		if err != nil {
			return nil, err
		}
		keyLocator, rest, err := getBytes(rest)
		if err != nil {
			return nil, err
		}
		if len(rest) < 1+16+4 {
			return nil, io.ErrUnexpectedEOF
		}
		flags := rest[0]
		rest = rest[1:]
		expiry := clock.Ticks(binary.BigEndian.Uint64(rest[0:8]))
		cacheTime := clock.Ticks(binary.BigEndian.Uint64(rest[8:16]))
		rest = rest[16:]
		payloadLen := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint32(len(rest)) < payloadLen {
			return nil, io.ErrUnexpectedEOF
		}
		payload := rest[:payloadLen]
		hasExpiry := flags&1 != 0
		hasCacheTime := flags&2 != 0
		return message.NewContentObject(n, payload, keyLocator, expiry, hasExpiry, cacheTime, hasCacheTime, ingress, created), nil

	case wireControl:
		if len(buf) < 4 {
			return nil, io.ErrUnexpectedEOF
		}
		verbLen := binary.BigEndian.Uint32(buf[:4])
		buf = buf[4:]
		if uint32(len(buf)) < verbLen {
			return nil, io.ErrUnexpectedEOF
		}
		return message.NewControl(string(buf[:verbLen]), ingress, created), nil
	}
	return nil, fmt.Errorf("face: unknown wire kind %d", kind)
}
