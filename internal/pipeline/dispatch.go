package pipeline

import (
	"kvmux/internal/broker"
	"kvmux/internal/store"
	"kvmux/internal/wire"
)

type dispatcher struct {
	engine store.Engine
	broker *broker.Broker
}

func (d *dispatcher) subscribe(req wire.Request) *broker.Subscription {
	return d.broker.Subscribe(req.Topic)
}

// dispatch routes a non-subscribe request to storage or the broker and
// maps errors to statuses: a storage error becomes status 500, a
// missing key on Hget is 404, and an empty oneof is 422.
func (d *dispatcher) dispatch(req wire.Request) wire.Response {
	switch req.Kind {
	case wire.ReqHget:
		v, ok, err := d.engine.Get(req.Table, req.Key)
		if err != nil {
			return wire.Internal(err)
		}
		if !ok {
			return wire.NotFound(req.Table, req.Key)
		}
		return wire.Response{Status: wire.StatusOK, Values: []wire.Value{v}}

	case wire.ReqHgetall:
		pairs, err := d.engine.GetAll(req.Table)
		if err != nil {
			return wire.Internal(err)
		}
		return wire.Response{Status: wire.StatusOK, Pairs: pairs}

	case wire.ReqHmget:
		values := make([]wire.Value, len(req.Keys))
		for i, k := range req.Keys {
			v, ok, err := d.engine.Get(req.Table, k)
			if err != nil {
				return wire.Internal(err)
			}
			if !ok {
				// Placeholder policy: a missing key yields an explicit
				// absent Value rather than shortening the values list,
				// so values[i] always corresponds to keys[i].
				values[i] = wire.Value{}
				continue
			}
			values[i] = v
		}
		return wire.Response{Status: wire.StatusOK, Values: values}

	case wire.ReqHset:
		prev, had, err := d.engine.Set(req.Table, req.Pair.Key, req.Pair.Value)
		if err != nil {
			return wire.Internal(err)
		}
		return previousValueResponse(prev, had)

	case wire.ReqHmset:
		values := make([]wire.Value, len(req.Pairs))
		for i, p := range req.Pairs {
			prev, had, err := d.engine.Set(req.Table, p.Key, p.Value)
			if err != nil {
				return wire.Internal(err)
			}
			if had {
				values[i] = prev
			}
		}
		return wire.Response{Status: wire.StatusOK, Values: values}

	case wire.ReqHdel:
		prev, had, err := d.engine.Del(req.Table, req.Key)
		if err != nil {
			return wire.Internal(err)
		}
		return previousValueResponse(prev, had)

	case wire.ReqHmdel:
		values := make([]wire.Value, len(req.Keys))
		for i, k := range req.Keys {
			prev, had, err := d.engine.Del(req.Table, k)
			if err != nil {
				return wire.Internal(err)
			}
			if had {
				values[i] = prev
			}
		}
		return wire.Response{Status: wire.StatusOK, Values: values}

	case wire.ReqHexist:
		ok, err := d.engine.Contains(req.Table, req.Key)
		if err != nil {
			return wire.Internal(err)
		}
		return wire.Response{Status: wire.StatusOK, Values: []wire.Value{wire.Bool(ok)}}

	case wire.ReqHmexist:
		values := make([]wire.Value, len(req.Keys))
		for i, k := range req.Keys {
			ok, err := d.engine.Contains(req.Table, k)
			if err != nil {
				return wire.Internal(err)
			}
			values[i] = wire.Bool(ok)
		}
		return wire.Response{Status: wire.StatusOK, Values: values}

	case wire.ReqUnsubscribe:
		return d.broker.Unsubscribe(req.Topic, req.SubID)

	case wire.ReqPublish:
		return d.broker.Publish(req.Topic, req.Data)

	default:
		return wire.Invalid("empty request oneof")
	}
}

// previousValueResponse carries the previous value of a single-key
// mutation in values, or an empty values list if there was none.
func previousValueResponse(prev wire.Value, had bool) wire.Response {
	if !had {
		return wire.Response{Status: wire.StatusOK}
	}
	return wire.Response{Status: wire.StatusOK, Values: []wire.Value{prev}}
}
