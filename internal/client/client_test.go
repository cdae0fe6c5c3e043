package client

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kvmux/internal/broker"
	"kvmux/internal/pipeline"
	"kvmux/internal/store"
	"kvmux/internal/testsupport"
	"kvmux/internal/transport"
	"kvmux/internal/wire"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	cert := testsupport.GenerateSelfSignedCert(t)

	pool := x509.NewCertPool()
	pool.AddCert(cert.Leaf)

	serverTLS := &tls.Config{Certificates: []tls.Certificate{cert}}

	p := pipeline.New(store.NewMemory(), broker.New())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := transport.NewServer(transport.ServerConfig{Addr: addr, TLS: serverTLS}, p, zerolog.Nop())
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	time.Sleep(50 * time.Millisecond)
	return addr
}

func TestClientRoundTrip(t *testing.T) {
	addr := startTestServer(t)

	clientTLS := &tls.Config{InsecureSkipVerify: true}
	c, err := Dial(Config{Addr: addr, TLS: clientTLS})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	ch, closeStream, err := c.Do(wire.Request{Kind: wire.ReqHset, Table: "t", Pair: wire.KvPair{Key: "a", Value: wire.Integer(1)}})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp := <-ch
	if resp.Status != wire.StatusOK {
		t.Fatalf("unexpected response: %+v", resp)
	}
	closeStream()

	ch, closeStream, err = c.Do(wire.Request{Kind: wire.ReqHget, Table: "t", Key: "a"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp = <-ch
	if resp.Status != wire.StatusOK || len(resp.Values) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if v, _ := resp.Values[0].AsInteger(); v != 1 {
		t.Fatalf("got %v want 1", v)
	}
	closeStream()
}
