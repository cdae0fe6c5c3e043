package transport

import (
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kvmux/internal/broker"
	"kvmux/internal/frame"
	"kvmux/internal/obs/guard"
	"kvmux/internal/pipeline"
	"kvmux/internal/store"
	"kvmux/internal/testsupport"
	"kvmux/internal/wire"

	"github.com/hashicorp/yamux"
)

func TestServeRejectsAboveConnectionLimit(t *testing.T) {
	cert := testsupport.GenerateSelfSignedCert(t)
	serverTLS := &tls.Config{Certificates: []tls.Certificate{cert}}
	p := pipeline.New(store.NewMemory(), broker.New())
	g := guard.New(guard.Config{MaxConnections: 1}, zerolog.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := NewServer(ServerConfig{Addr: addr, TLS: serverTLS, Guard: g}, p, zerolog.Nop())
	go srv.Serve()
	defer srv.Close()
	time.Sleep(50 * time.Millisecond)

	clientTLS := &tls.Config{InsecureSkipVerify: true}

	conn1, err := tls.Dial("tcp", addr, clientTLS)
	if err != nil {
		t.Fatalf("dial 1: %v", err)
	}
	defer conn1.Close()

	conn2, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial 2: %v", err)
	}
	defer conn2.Close()

	buf := make([]byte, 1)
	conn2.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn2.Read(buf)
	if err == nil {
		t.Fatal("expected second connection to be closed by the admission guard")
	}
}

func TestServeRoundTripOverYamuxStream(t *testing.T) {
	cert := testsupport.GenerateSelfSignedCert(t)
	serverTLS := &tls.Config{Certificates: []tls.Certificate{cert}}
	p := pipeline.New(store.NewMemory(), broker.New())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := NewServer(ServerConfig{Addr: addr, TLS: serverTLS}, p, zerolog.Nop())
	go srv.Serve()
	defer srv.Close()
	time.Sleep(50 * time.Millisecond)

	clientTLS := &tls.Config{InsecureSkipVerify: true}
	conn, err := tls.Dial("tcp", addr, clientTLS)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	session, err := yamux.Client(conn, yamux.DefaultConfig())
	if err != nil {
		t.Fatalf("yamux client: %v", err)
	}
	st, err := session.OpenStream()
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	req := wire.Request{Kind: wire.ReqHget, Table: "t", Key: "missing"}
	if err := frame.WriteRequest(st, req); err != nil {
		t.Fatalf("write request: %v", err)
	}
	resp, err := frame.ReadResponse(st)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.Status != wire.StatusNotFound {
		t.Fatalf("expected not found, got %+v", resp)
	}
}
