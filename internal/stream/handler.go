// Package stream implements the per-logical-stream loop:
// decode one request frame, drive the pipeline, encode each response
// frame, then close. Stream handlers run concurrently and share only
// storage and broker state; each handler owns its own stream.
package stream

import (
	"errors"
	"io"
	"net"

	"github.com/rs/zerolog"

	"kvmux/internal/frame"
	"kvmux/internal/pipeline"
	"kvmux/internal/wire"
)

// Handle drives one logical stream end to end: it decodes exactly one
// request frame, executes it against p, and encodes each response the
// pipeline produces, in order, before closing conn. A decode error
// yields a single status-400 response frame and closes the stream
// without reaching the pipeline. A panic during dispatch is recovered
// so it cannot take down the connection; the stream still
// closes, after a best-effort 500 response.
//
// The pipeline's cleanup func always runs, however the loop exits —
// normal completion, a write error on a dropped connection, or a
// recovered panic — so a Subscribe request whose stream ends without an
// explicit Unsubscribe still releases its broker subscription instead
// of leaking it.
func Handle(conn net.Conn, p *pipeline.Pipeline, logger zerolog.Logger) {
	defer conn.Close()

	req, err := frame.ReadRequest(conn)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		logger.Debug().Err(err).Msg("stream: decode request failed")
		_ = frame.WriteResponse(conn, wire.Response{Status: wire.StatusBadFrame, Message: err.Error()})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("stream: recovered panic in dispatch")
			_ = frame.WriteResponse(conn, wire.Internal(errors.New("internal error")))
		}
	}()

	respCh, cleanup := p.Execute(req)
	defer cleanup()

	for resp := range respCh {
		if err := frame.WriteResponse(conn, resp); err != nil {
			logger.Debug().Err(err).Msg("stream: encode response failed")
			return
		}
	}
}
