// Command kvmux-client issues a single request against a kvmux server
// and prints the response, primarily for smoke-testing a deployment.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"strings"

	"kvmux/internal/client"
	"kvmux/internal/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4443", "server address")
	insecure := flag.Bool("insecure", false, "skip TLS certificate verification")
	cmd := flag.String("cmd", "hget", "command: hget, hset, hdel, hgetall")
	table := flag.String("table", "", "table name")
	key := flag.String("key", "", "key")
	value := flag.String("value", "", "string value (for hset)")
	flag.Parse()

	c, err := client.Dial(client.Config{
		Addr: *addr,
		TLS:  &tls.Config{InsecureSkipVerify: *insecure},
	})
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer c.Close()

	req, err := buildRequest(*cmd, *table, *key, *value)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ch, closeStream, err := c.Do(req)
	if err != nil {
		log.Fatalf("do: %v", err)
	}
	defer closeStream()

	resp := <-ch
	fmt.Printf("status=%d message=%q\n", resp.Status, resp.Message)
	for _, v := range resp.Values {
		fmt.Printf("value: %s\n", v)
	}
	for _, p := range resp.Pairs {
		fmt.Printf("pair: %s=%s\n", p.Key, p.Value)
	}
}

func buildRequest(cmd, table, key, value string) (wire.Request, error) {
	switch strings.ToLower(cmd) {
	case "hget":
		return wire.Request{Kind: wire.ReqHget, Table: table, Key: key}, nil
	case "hset":
		return wire.Request{Kind: wire.ReqHset, Table: table, Pair: wire.KvPair{Key: key, Value: wire.String(value)}}, nil
	case "hdel":
		return wire.Request{Kind: wire.ReqHdel, Table: table, Key: key}, nil
	case "hgetall":
		return wire.Request{Kind: wire.ReqHgetall, Table: table}, nil
	default:
		return wire.Request{}, fmt.Errorf("unknown command %q", cmd)
	}
}
