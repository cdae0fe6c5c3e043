package pipeline

import (
	"testing"
	"time"

	"kvmux/internal/broker"
	"kvmux/internal/store"
	"kvmux/internal/wire"
)

func newTestPipeline() *Pipeline {
	return New(store.NewMemory(), broker.New())
}

func drain(t *testing.T, ch <-chan wire.Response, cleanup func()) wire.Response {
	t.Helper()
	defer cleanup()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
		return wire.Response{}
	}
}

func TestHsetThenHget(t *testing.T) {
	p := newTestPipeline()

	resp := drain(t, p.Execute(wire.Request{Kind: wire.ReqHset, Table: "score", Pair: wire.KvPair{Key: "u1", Value: wire.Integer(10)}}))
	if resp.Status != wire.StatusOK || len(resp.Values) != 0 {
		t.Fatalf("unexpected hset response: %+v", resp)
	}

	resp = drain(t, p.Execute(wire.Request{Kind: wire.ReqHget, Table: "score", Key: "u1"}))
	if resp.Status != wire.StatusOK || len(resp.Values) != 1 {
		t.Fatalf("unexpected hget response: %+v", resp)
	}
	if got, _ := resp.Values[0].AsInteger(); got != 10 {
		t.Fatalf("got %v want 10", got)
	}

	resp = drain(t, p.Execute(wire.Request{Kind: wire.ReqHget, Table: "score", Key: "u2"}))
	if resp.Status != wire.StatusNotFound {
		t.Fatalf("unexpected status: %+v", resp)
	}
}

func TestHmgetOrderAndPlaceholder(t *testing.T) {
	p := newTestPipeline()
	drain(t, p.Execute(wire.Request{Kind: wire.ReqHset, Table: "t", Pair: wire.KvPair{Key: "a", Value: wire.Integer(1)}}))
	drain(t, p.Execute(wire.Request{Kind: wire.ReqHset, Table: "t", Pair: wire.KvPair{Key: "c", Value: wire.Integer(3)}}))

	resp := drain(t, p.Execute(wire.Request{Kind: wire.ReqHmget, Table: "t", Keys: []string{"a", "b", "c"}}))
	if len(resp.Values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(resp.Values))
	}
	if v, _ := resp.Values[0].AsInteger(); v != 1 {
		t.Fatalf("values[0] = %v, want 1", v)
	}
	if !resp.Values[1].IsNone() {
		t.Fatalf("values[1] should be absent placeholder, got %v", resp.Values[1])
	}
	if v, _ := resp.Values[2].AsInteger(); v != 3 {
		t.Fatalf("values[2] = %v, want 3", v)
	}
}

func TestEmptyOneofIsInvalid(t *testing.T) {
	p := newTestPipeline()
	resp := drain(t, p.Execute(wire.Request{}))
	if resp.Status != wire.StatusInvalid {
		t.Fatalf("got status %d want 422", resp.Status)
	}
}

func TestHmsetThenHgetall(t *testing.T) {
	p := newTestPipeline()
	resp := drain(t, p.Execute(wire.Request{Kind: wire.ReqHmset, Table: "t", Pairs: []wire.KvPair{
		{Key: "a", Value: wire.Integer(1)},
		{Key: "b", Value: wire.Integer(2)},
		{Key: "c", Value: wire.Integer(3)},
	}}))
	if resp.Status != wire.StatusOK {
		t.Fatalf("hmset failed: %+v", resp)
	}

	resp = drain(t, p.Execute(wire.Request{Kind: wire.ReqHgetall, Table: "t"}))
	if len(resp.Pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(resp.Pairs))
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	p := newTestPipeline()

	sub, cleanup := p.Execute(wire.Request{Kind: wire.ReqSubscribe, Topic: "news"})
	defer cleanup()

	ack := mustRecv(t, sub)
	if ack.Status != wire.StatusOK || len(ack.Values) != 1 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	id, _ := ack.Values[0].AsInteger()

	pub := drain(t, p.Execute(wire.Request{Kind: wire.ReqPublish, Topic: "news", Data: []wire.Value{wire.String("hi")}}))
	if pub.Status != wire.StatusOK {
		t.Fatalf("publish failed: %+v", pub)
	}

	msg := mustRecv(t, sub)
	if s, _ := msg.Values[0].AsString(); s != "hi" {
		t.Fatalf("got %+v want hi", msg)
	}

	unsub := drain(t, p.Execute(wire.Request{Kind: wire.ReqUnsubscribe, Topic: "news", SubID: uint32(id)}))
	if unsub.Status != wire.StatusOK {
		t.Fatalf("unsubscribe failed: %+v", unsub)
	}

	select {
	case _, open := <-sub:
		if open {
			t.Fatal("expected subscribe channel to close after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribe channel to close")
	}
}

func TestSubscribeCleanupUnsubscribesWithoutExplicitRequest(t *testing.T) {
	b := broker.New()
	p := New(store.NewMemory(), b)

	sub, cleanup := p.Execute(wire.Request{Kind: wire.ReqSubscribe, Topic: "news"})
	mustRecv(t, sub) // ack

	// Simulate a dropped stream: nobody sends Unsubscribe, the caller
	// just stops reading and runs cleanup, as stream.Handle does via defer.
	cleanup()

	select {
	case _, open := <-sub:
		if open {
			t.Fatal("expected subscribe channel to close after cleanup")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribe channel to close after cleanup")
	}

	// A second cleanup call must not panic (double-close protection).
	cleanup()
}

func mustRecv(t *testing.T, ch <-chan wire.Response) wire.Response {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
		return wire.Response{}
	}
}

func TestBeforeSendShortCircuit(t *testing.T) {
	p := New(store.NewMemory(), broker.New(), WithBeforeSend(func(req *wire.Request) (wire.Response, bool) {
		if req.Table == "blocked" {
			return wire.Response{Status: wire.StatusInvalid, Message: "table is blocked"}, true
		}
		return wire.Response{}, false
	}))

	resp := drain(t, p.Execute(wire.Request{Kind: wire.ReqHget, Table: "blocked", Key: "x"}))
	if resp.Status != wire.StatusInvalid {
		t.Fatalf("expected short-circuit, got %+v", resp)
	}
}

func TestAfterSendObserves(t *testing.T) {
	var seen []wire.Response
	p := New(store.NewMemory(), broker.New(), WithAfterSend(func(_ wire.Request, resp wire.Response, _ time.Duration) {
		seen = append(seen, resp)
	}))

	drain(t, p.Execute(wire.Request{Kind: wire.ReqHget, Table: "t", Key: "k"}))
	if len(seen) != 1 || seen[0].Status != wire.StatusNotFound {
		t.Fatalf("unexpected observed responses: %+v", seen)
	}
}
