// Package hooks provides concrete pipeline hooks, starting with an
// observe-only replication/audit publisher.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"kvmux/internal/wire"
)

// MutationEvent is the compact record published for every successful
// mutating command. It is an observational audit record, not a
// replication protocol: nothing downstream coordinates cluster state
// from it, so it cannot introduce cross-node consensus.
type MutationEvent struct {
	Table     string      `json:"table"`
	Key       string      `json:"key"`
	Command   string      `json:"command"`
	Value     interface{} `json:"value,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ReplicationConfig configures the Kafka-backed AfterSend publisher.
type ReplicationConfig struct {
	Brokers []string
	Topic   string
	Logger  zerolog.Logger
}

// Replicator publishes MutationEvents for successful Hset/Hmset/Hdel/
// Hmdel responses. It is safe for concurrent use; publishing is
// fire-and-forget (franz-go's async Produce), matching the hook
// contract that AfterSend must not alter response semantics or block
// the response path.
type Replicator struct {
	client *kgo.Client
	topic  string
	logger zerolog.Logger
}

// NewReplicator dials the configured brokers and returns a Replicator.
func NewReplicator(cfg ReplicationConfig) (*Replicator, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("hooks: at least one replication broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("hooks: replication topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("hooks: dial replication brokers: %w", err)
	}
	return &Replicator{client: client, topic: cfg.Topic, logger: cfg.Logger}, nil
}

// Close releases the underlying Kafka client.
func (r *Replicator) Close() { r.client.Close() }

// AfterSend is a pipeline.AfterSend hook publishing a MutationEvent for
// every successful mutating command. It does not use the dispatch
// duration; replication is an observe-only audit feed, not a latency
// consumer.
func (r *Replicator) AfterSend(req wire.Request, resp wire.Response, _ time.Duration) {
	if resp.Status != wire.StatusOK {
		return
	}
	events := mutationEvents(req)
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			r.logger.Warn().Err(err).Msg("replication: marshal mutation event")
			continue
		}
		record := &kgo.Record{Topic: r.topic, Key: []byte(ev.Table + ":" + ev.Key), Value: payload}
		r.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
			if err != nil {
				r.logger.Warn().Err(err).Str("table", ev.Table).Str("key", ev.Key).Msg("replication: produce failed")
			}
		})
	}
}

func mutationEvents(req wire.Request) []MutationEvent {
	now := time.Now().UnixMilli()
	switch req.Kind {
	case wire.ReqHset:
		return []MutationEvent{{Table: req.Table, Key: req.Pair.Key, Command: "Hset", Value: renderValue(req.Pair.Value), Timestamp: now}}
	case wire.ReqHmset:
		out := make([]MutationEvent, len(req.Pairs))
		for i, p := range req.Pairs {
			out[i] = MutationEvent{Table: req.Table, Key: p.Key, Command: "Hmset", Value: renderValue(p.Value), Timestamp: now}
		}
		return out
	case wire.ReqHdel:
		return []MutationEvent{{Table: req.Table, Key: req.Key, Command: "Hdel", Timestamp: now}}
	case wire.ReqHmdel:
		out := make([]MutationEvent, len(req.Keys))
		for i, k := range req.Keys {
			out[i] = MutationEvent{Table: req.Table, Key: k, Command: "Hmdel", Timestamp: now}
		}
		return out
	default:
		return nil
	}
}

func renderValue(v wire.Value) interface{} {
	switch v.Kind() {
	case wire.KindString:
		s, _ := v.AsString()
		return s
	case wire.KindBinary:
		b, _ := v.AsBinary()
		return b
	case wire.KindInteger:
		i, _ := v.AsInteger()
		return i
	case wire.KindFloat:
		f, _ := v.AsFloat()
		return f
	case wire.KindBool:
		b, _ := v.AsBool()
		return b
	default:
		return nil
	}
}
