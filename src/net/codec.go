package net

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrInvalidPacket is matched by every decoding error.
	ErrInvalidPacket = errors.New("invalid packet")
	// ErrUnknownSignature means the first byte names no known variant.
	ErrUnknownSignature = fmt.Errorf("%w: unknown signature", ErrInvalidPacket)
	// ErrSizeMismatch means the datagram length differs from its variant's
	// wire size.
	ErrSizeMismatch = fmt.Errorf("%w: size mismatch", ErrInvalidPacket)
)

// Multi-byte fields travel in host order.
var order = binary.NativeEndian

// Decode validates b and returns the packet it holds. The check is the
// signature range plus an exact length match; nothing else is inspected.
func Decode(b []byte) (Packet, error) {
	if len(b) < MinSize {
		return nil, fmt.Errorf("%w: empty datagram", ErrSizeMismatch)
	}

	sig := Signature(b[0])
	want, ok := ExpectedSize(sig)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSignature, b[0])
	}
	if len(b) != want {
		return nil, fmt.Errorf("%w: %s is %d bytes, got %d", ErrSizeMismatch, sig, want, len(b))
	}

	switch sig {
	case SigRequest:
		return Request{}, nil
	case SigResponse:
		return Response{
			Temperature:  int8(b[1]),
			Illumination: b[2],
		}, nil
	case SigInfoMessage:
		m := InfoMessage{
			AvgTemperature: int8(b[5]),
			Timestamp:      order.Uint32(b[6:10]),
			Brightness:     b[10],
		}
		copy(m.Text[:], b[1:5])
		return m, nil
	case SigVote:
		return Vote{Value: order.Uint32(b[1:5])}, nil
	default:
		return ResetMaster{}, nil
	}
}

// Encode returns the wire form of p.
func Encode(p Packet) []byte {
	return AppendPacket(make([]byte, 0, MaxSize), p)
}

// AppendPacket appends the wire form of p to dst.
func AppendPacket(dst []byte, p Packet) []byte {
	dst = append(dst, byte(p.Signature()))

	switch v := p.(type) {
	case Response:
		dst = append(dst, byte(v.Temperature), v.Illumination)
	case *Response:
		dst = append(dst, byte(v.Temperature), v.Illumination)
	case InfoMessage:
		dst = appendInfo(dst, &v)
	case *InfoMessage:
		dst = appendInfo(dst, v)
	case Vote:
		dst = order.AppendUint32(dst, v.Value)
	case *Vote:
		dst = order.AppendUint32(dst, v.Value)
	}

	return dst
}

func appendInfo(dst []byte, m *InfoMessage) []byte {
	dst = append(dst, m.Text[:]...)
	dst = append(dst, byte(m.AvgTemperature))
	dst = order.AppendUint32(dst, m.Timestamp)
	return append(dst, m.Brightness)
}
