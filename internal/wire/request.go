package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// RequestKind identifies which oneof variant a CommandRequest carries.
// The numeric values are also the CommandRequest field numbers on the
// wire: Hget=1 .. Hmexist=9, Subscribe=10, Unsubscribe=11,
// Publish=12.
type RequestKind protowire.Number

const (
	KindUnset RequestKind = 0

	ReqHget       RequestKind = 1
	ReqHgetall    RequestKind = 2
	ReqHmget      RequestKind = 3
	ReqHset       RequestKind = 4
	ReqHmset      RequestKind = 5
	ReqHdel       RequestKind = 6
	ReqHmdel      RequestKind = 7
	ReqHexist     RequestKind = 8
	ReqHmexist    RequestKind = 9
	ReqSubscribe  RequestKind = 10
	ReqUnsubscribe RequestKind = 11
	ReqPublish    RequestKind = 12
)

func (k RequestKind) String() string {
	switch k {
	case ReqHget:
		return "Hget"
	case ReqHgetall:
		return "Hgetall"
	case ReqHmget:
		return "Hmget"
	case ReqHset:
		return "Hset"
	case ReqHmset:
		return "Hmset"
	case ReqHdel:
		return "Hdel"
	case ReqHmdel:
		return "Hmdel"
	case ReqHexist:
		return "Hexist"
	case ReqHmexist:
		return "Hmexist"
	case ReqSubscribe:
		return "Subscribe"
	case ReqUnsubscribe:
		return "Unsubscribe"
	case ReqPublish:
		return "Publish"
	default:
		return "Unset"
	}
}

// single-key variant field numbers within each inner submessage.
const (
	fieldTable protowire.Number = 1
	fieldKey   protowire.Number = 2
	fieldKeys  protowire.Number = 2
	fieldPair  protowire.Number = 2
	fieldPairs protowire.Number = 2

	fieldTopic protowire.Number = 1
	fieldSubID protowire.Number = 2
	fieldData  protowire.Number = 2
)

// Request is a CommandRequest: exactly one oneof variant populated
// according to Kind. Fields irrelevant to Kind are ignored on encode.
type Request struct {
	Kind  RequestKind
	Table string
	Key   string
	Keys  []string
	Pair  KvPair
	Pairs []KvPair
	Topic string
	SubID uint32
	Data  []Value
}

// Marshal encodes the request as a CommandRequest message.
func (r Request) Marshal() ([]byte, error) {
	var inner []byte
	switch r.Kind {
	case ReqHget, ReqHdel, ReqHexist:
		inner = protowire.AppendTag(inner, fieldTable, protowire.BytesType)
		inner = protowire.AppendString(inner, r.Table)
		inner = protowire.AppendTag(inner, fieldKey, protowire.BytesType)
		inner = protowire.AppendString(inner, r.Key)
	case ReqHgetall:
		inner = protowire.AppendTag(inner, fieldTable, protowire.BytesType)
		inner = protowire.AppendString(inner, r.Table)
	case ReqHmget, ReqHmdel, ReqHmexist:
		inner = protowire.AppendTag(inner, fieldTable, protowire.BytesType)
		inner = protowire.AppendString(inner, r.Table)
		for _, k := range r.Keys {
			inner = protowire.AppendTag(inner, fieldKeys, protowire.BytesType)
			inner = protowire.AppendString(inner, k)
		}
	case ReqHset:
		inner = protowire.AppendTag(inner, fieldTable, protowire.BytesType)
		inner = protowire.AppendString(inner, r.Table)
		inner = appendPair(inner, fieldPair, r.Pair)
	case ReqHmset:
		inner = protowire.AppendTag(inner, fieldTable, protowire.BytesType)
		inner = protowire.AppendString(inner, r.Table)
		for _, p := range r.Pairs {
			inner = appendPair(inner, fieldPairs, p)
		}
	case ReqSubscribe:
		inner = protowire.AppendTag(inner, fieldTopic, protowire.BytesType)
		inner = protowire.AppendString(inner, r.Topic)
	case ReqUnsubscribe:
		inner = protowire.AppendTag(inner, fieldTopic, protowire.BytesType)
		inner = protowire.AppendString(inner, r.Topic)
		inner = protowire.AppendTag(inner, fieldSubID, protowire.VarintType)
		inner = protowire.AppendVarint(inner, uint64(r.SubID))
	case ReqPublish:
		inner = protowire.AppendTag(inner, fieldTopic, protowire.BytesType)
		inner = protowire.AppendString(inner, r.Topic)
		for _, v := range r.Data {
			inner = appendValue(inner, fieldData, v)
		}
	default:
		return nil, fmt.Errorf("wire: marshal: empty request oneof")
	}

	var out []byte
	out = protowire.AppendTag(out, protowire.Number(r.Kind), protowire.BytesType)
	out = protowire.AppendBytes(out, inner)
	return out, nil
}

// UnmarshalRequest decodes a CommandRequest message.
func UnmarshalRequest(b []byte) (Request, error) {
	var r Request
	num, _, n := protowire.ConsumeTag(b)
	if n < 0 {
		return r, fmt.Errorf("wire: bad request tag: %w", protowire.ParseError(n))
	}
	body, n2 := protowire.ConsumeBytes(b[n:])
	if n2 < 0 {
		return r, fmt.Errorf("wire: bad request body: %w", protowire.ParseError(n2))
	}
	r.Kind = RequestKind(num)

	off := 0
	for off < len(body) {
		fnum, ftyp, fn := protowire.ConsumeTag(body[off:])
		if fn < 0 {
			return r, fmt.Errorf("wire: bad inner tag: %w", protowire.ParseError(fn))
		}
		off += fn
		switch {
		case fnum == fieldTable && (r.Kind == ReqHget || r.Kind == ReqHdel || r.Kind == ReqHexist ||
			r.Kind == ReqHgetall || r.Kind == ReqHmget || r.Kind == ReqHmdel || r.Kind == ReqHmexist ||
			r.Kind == ReqHset || r.Kind == ReqHmset):
			s, sn := protowire.ConsumeString(body[off:])
			if sn < 0 {
				return r, fmt.Errorf("wire: bad table: %w", protowire.ParseError(sn))
			}
			r.Table = s
			off += sn
		case fnum == fieldKey && (r.Kind == ReqHget || r.Kind == ReqHdel || r.Kind == ReqHexist):
			s, sn := protowire.ConsumeString(body[off:])
			if sn < 0 {
				return r, fmt.Errorf("wire: bad key: %w", protowire.ParseError(sn))
			}
			r.Key = s
			off += sn
		case fnum == fieldKeys && (r.Kind == ReqHmget || r.Kind == ReqHmdel || r.Kind == ReqHmexist):
			s, sn := protowire.ConsumeString(body[off:])
			if sn < 0 {
				return r, fmt.Errorf("wire: bad keys entry: %w", protowire.ParseError(sn))
			}
			r.Keys = append(r.Keys, s)
			off += sn
		case fnum == fieldPair && r.Kind == ReqHset:
			bs, bn := protowire.ConsumeBytes(body[off:])
			if bn < 0 {
				return r, fmt.Errorf("wire: bad pair: %w", protowire.ParseError(bn))
			}
			p, err := consumePair(bs)
			if err != nil {
				return r, err
			}
			r.Pair = p
			off += bn
		case fnum == fieldPairs && r.Kind == ReqHmset:
			bs, bn := protowire.ConsumeBytes(body[off:])
			if bn < 0 {
				return r, fmt.Errorf("wire: bad pairs entry: %w", protowire.ParseError(bn))
			}
			p, err := consumePair(bs)
			if err != nil {
				return r, err
			}
			r.Pairs = append(r.Pairs, p)
			off += bn
		case fnum == fieldTopic && (r.Kind == ReqSubscribe || r.Kind == ReqUnsubscribe || r.Kind == ReqPublish):
			s, sn := protowire.ConsumeString(body[off:])
			if sn < 0 {
				return r, fmt.Errorf("wire: bad topic: %w", protowire.ParseError(sn))
			}
			r.Topic = s
			off += sn
		case fnum == fieldSubID && r.Kind == ReqUnsubscribe:
			u, un := protowire.ConsumeVarint(body[off:])
			if un < 0 {
				return r, fmt.Errorf("wire: bad id: %w", protowire.ParseError(un))
			}
			r.SubID = uint32(u)
			off += un
		case fnum == fieldData && r.Kind == ReqPublish:
			bs, bn := protowire.ConsumeBytes(body[off:])
			if bn < 0 {
				return r, fmt.Errorf("wire: bad data entry: %w", protowire.ParseError(bn))
			}
			v, err := consumeValue(bs)
			if err != nil {
				return r, err
			}
			r.Data = append(r.Data, v)
			off += bn
		default:
			n := protowire.ConsumeFieldValue(fnum, ftyp, body[off:])
			if n < 0 {
				return r, fmt.Errorf("wire: bad inner field %d: %w", fnum, protowire.ParseError(n))
			}
			off += n
		}
	}
	return r, nil
}
