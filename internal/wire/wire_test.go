package wire

import (
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestValueRoundTrip(t *testing.T) {
	cases := []Value{
		String("hello"),
		String(""),
		Binary([]byte{0x00, 0x01, 0xff}),
		Integer(-42),
		Integer(0),
		Float(3.14159),
		Bool(true),
		Bool(false),
	}
	for _, v := range cases {
		b := appendValue(nil, fieldRespValues, v)
		_, _, n := protowire.ConsumeTag(b)
		if n < 0 {
			t.Fatalf("ConsumeTag: %v", protowire.ParseError(n))
		}
		body, bn := protowire.ConsumeBytes(b[n:])
		if bn < 0 {
			t.Fatalf("ConsumeBytes: %v", protowire.ParseError(bn))
		}
		got, err := consumeValue(body)
		if err != nil {
			t.Fatalf("consumeValue(%v): %v", v, err)
		}
		if !reflect.DeepEqual(got, v) {
			t.Fatalf("round trip mismatch: got %#v want %#v", got, v)
		}
	}
}

func TestRequestRoundTrip(t *testing.T) {
	reqs := []Request{
		{Kind: ReqHget, Table: "score", Key: "u1"},
		{Kind: ReqHgetall, Table: "score"},
		{Kind: ReqHmget, Table: "score", Keys: []string{"u1", "u2", "u3"}},
		{Kind: ReqHset, Table: "score", Pair: KvPair{Key: "u1", Value: Integer(10)}},
		{Kind: ReqHmset, Table: "score", Pairs: []KvPair{
			{Key: "u1", Value: Integer(10)},
			{Key: "u2", Value: String("x")},
		}},
		{Kind: ReqHdel, Table: "score", Key: "u1"},
		{Kind: ReqHmdel, Table: "score", Keys: []string{"u1", "u2"}},
		{Kind: ReqHexist, Table: "score", Key: "u1"},
		{Kind: ReqHmexist, Table: "score", Keys: []string{"u1", "u2"}},
		{Kind: ReqSubscribe, Topic: "news"},
		{Kind: ReqUnsubscribe, Topic: "news", SubID: 7},
		{Kind: ReqPublish, Topic: "news", Data: []Value{String("hi"), Integer(1)}},
	}
	for _, r := range reqs {
		b, err := r.Marshal()
		if err != nil {
			t.Fatalf("marshal %v: %v", r.Kind, err)
		}
		got, err := UnmarshalRequest(b)
		if err != nil {
			t.Fatalf("unmarshal %v: %v", r.Kind, err)
		}
		if !reflect.DeepEqual(got, r) {
			t.Fatalf("round trip mismatch for %v: got %#v want %#v", r.Kind, got, r)
		}
	}
}

func TestRequestEmptyOneof(t *testing.T) {
	_, err := Request{}.Marshal()
	if err == nil {
		t.Fatal("expected error marshaling empty request oneof")
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resps := []Response{
		{Status: StatusOK},
		NotFound("score", "u2"),
		Invalid("empty request"),
		{Status: StatusOK, Values: []Value{Integer(10)}},
		{Status: StatusOK, Pairs: []KvPair{{Key: "u1", Value: Integer(1)}, {Key: "u2", Value: Bool(true)}}},
	}
	for _, r := range resps {
		b, err := r.Marshal()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := UnmarshalResponse(b)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !reflect.DeepEqual(got, r) {
			t.Fatalf("round trip mismatch: got %#v want %#v", got, r)
		}
	}
}
