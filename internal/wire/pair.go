package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldPairKey   protowire.Number = 1
	fieldPairValue protowire.Number = 2
)

// KvPair is an ordered (key, Value) pair.
type KvPair struct {
	Key   string
	Value Value
}

func appendPair(b []byte, num protowire.Number, p KvPair) []byte {
	var inner []byte
	inner = protowire.AppendTag(inner, fieldPairKey, protowire.BytesType)
	inner = protowire.AppendString(inner, p.Key)
	inner = appendValue(inner, fieldPairValue, p.Value)
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b
}

func consumePair(body []byte) (KvPair, error) {
	var p KvPair
	off := 0
	for off < len(body) {
		num, typ, n := protowire.ConsumeTag(body[off:])
		if n < 0 {
			return p, fmt.Errorf("wire: bad pair tag: %w", protowire.ParseError(n))
		}
		off += n
		switch num {
		case fieldPairKey:
			s, n := protowire.ConsumeString(body[off:])
			if n < 0 {
				return p, fmt.Errorf("wire: bad pair.key: %w", protowire.ParseError(n))
			}
			p.Key = s
			off += n
		case fieldPairValue:
			bs, n := protowire.ConsumeBytes(body[off:])
			if n < 0 {
				return p, fmt.Errorf("wire: bad pair.value: %w", protowire.ParseError(n))
			}
			v, err := consumeValue(bs)
			if err != nil {
				return p, err
			}
			p.Value = v
			off += n
		default:
			n := protowire.ConsumeFieldValue(num, typ, body[off:])
			if n < 0 {
				return p, fmt.Errorf("wire: bad pair field %d: %w", num, protowire.ParseError(n))
			}
			off += n
		}
	}
	return p, nil
}
