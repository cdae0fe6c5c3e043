package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Status codes used in CommandResponse.Status.
const (
	StatusOK        uint32 = 200
	StatusBadFrame  uint32 = 400
	StatusNotFound  uint32 = 404
	StatusInvalid   uint32 = 422
	StatusInternal  uint32 = 500
)

const (
	fieldRespStatus  protowire.Number = 1
	fieldRespMessage protowire.Number = 2
	fieldRespValues  protowire.Number = 3
	fieldRespPairs   protowire.Number = 4
)

// Response is a CommandResponse: status, a human-readable message (only
// populated on failure), and either Values or Pairs depending on which
// command produced it.
type Response struct {
	Status  uint32
	Message string
	Values  []Value
	Pairs   []KvPair
}

// Marshal encodes the response as a CommandResponse message.
func (r Response) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldRespStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Status))
	if r.Message != "" {
		b = protowire.AppendTag(b, fieldRespMessage, protowire.BytesType)
		b = protowire.AppendString(b, r.Message)
	}
	for _, v := range r.Values {
		b = appendValue(b, fieldRespValues, v)
	}
	for _, p := range r.Pairs {
		b = appendPair(b, fieldRespPairs, p)
	}
	return b, nil
}

// UnmarshalResponse decodes a CommandResponse message.
func UnmarshalResponse(b []byte) (Response, error) {
	var r Response
	off := 0
	for off < len(b) {
		num, typ, n := protowire.ConsumeTag(b[off:])
		if n < 0 {
			return r, fmt.Errorf("wire: bad response tag: %w", protowire.ParseError(n))
		}
		off += n
		switch num {
		case fieldRespStatus:
			u, un := protowire.ConsumeVarint(b[off:])
			if un < 0 {
				return r, fmt.Errorf("wire: bad status: %w", protowire.ParseError(un))
			}
			r.Status = uint32(u)
			off += un
		case fieldRespMessage:
			s, sn := protowire.ConsumeString(b[off:])
			if sn < 0 {
				return r, fmt.Errorf("wire: bad message: %w", protowire.ParseError(sn))
			}
			r.Message = s
			off += sn
		case fieldRespValues:
			bs, bn := protowire.ConsumeBytes(b[off:])
			if bn < 0 {
				return r, fmt.Errorf("wire: bad values entry: %w", protowire.ParseError(bn))
			}
			v, err := consumeValue(bs)
			if err != nil {
				return r, err
			}
			r.Values = append(r.Values, v)
			off += bn
		case fieldRespPairs:
			bs, bn := protowire.ConsumeBytes(b[off:])
			if bn < 0 {
				return r, fmt.Errorf("wire: bad pairs entry: %w", protowire.ParseError(bn))
			}
			p, err := consumePair(bs)
			if err != nil {
				return r, err
			}
			r.Pairs = append(r.Pairs, p)
			off += bn
		default:
			n := protowire.ConsumeFieldValue(num, typ, b[off:])
			if n < 0 {
				return r, fmt.Errorf("wire: bad response field %d: %w", num, protowire.ParseError(n))
			}
			off += n
		}
	}
	return r, nil
}

// NotFound builds the conventional 404 response for a missing key.
func NotFound(table, key string) Response {
	return Response{Status: StatusNotFound, Message: fmt.Sprintf("Not found: table:%s, key:%s", table, key)}
}

// Invalid builds the conventional 422 response for a malformed request.
func Invalid(reason string) Response {
	return Response{Status: StatusInvalid, Message: reason}
}

// Internal builds the conventional 500 response for a storage/internal failure.
func Internal(err error) Response {
	return Response{Status: StatusInternal, Message: err.Error()}
}
