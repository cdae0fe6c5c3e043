// Package frame implements the wire framing used to carry requests and
// responses over a stream: a 4-byte big-endian header (high bit =
// gzip-compressed flag, low 31 bits = payload length) followed by the
// payload. It is transport-agnostic: Encode and Decode operate on any
// io.Writer/io.Reader.
package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// MaxPayload is the largest payload length representable in 31 bits.
const MaxPayload = 1<<31 - 1

// compressThreshold is the serialized-size cutoff above which Encode
// gzips the payload and sets the compression flag.
const compressThreshold = 1024

const compressedFlag uint32 = 1 << 31

// Error reports a framing-layer protocol violation: a bad header, a
// truncated read, or an oversize payload.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("frame: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Encode writes one frame carrying payload to w. Payloads larger than
// compressThreshold are gzip-compressed and the flag bit is set;
// otherwise the payload is written verbatim.
func Encode(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayload {
		return &Error{Op: "encode", Err: fmt.Errorf("payload of %d bytes exceeds max %d", len(payload), MaxPayload)}
	}

	body := payload
	var header uint32
	if len(payload) > compressThreshold {
		compressed, err := gzipCompress(payload)
		if err != nil {
			return &Error{Op: "encode", Err: err}
		}
		body = compressed
		header = compressedFlag
	}
	if len(body) > MaxPayload {
		return &Error{Op: "encode", Err: fmt.Errorf("compressed payload of %d bytes exceeds max %d", len(body), MaxPayload)}
	}
	header |= uint32(len(body))

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], header)
	if _, err := w.Write(hdr[:]); err != nil {
		return &Error{Op: "encode header", Err: err}
	}
	if _, err := w.Write(body); err != nil {
		return &Error{Op: "encode body", Err: err}
	}
	return nil
}

// Decode reads one frame from r and returns its (decompressed) payload.
// EOF before a complete frame is read is reported as an error; a short
// read is never silently truncated.
func Decode(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &Error{Op: "decode header", Err: err}
	}
	header := binary.BigEndian.Uint32(hdr[:])
	compressed := header&compressedFlag != 0
	length := header &^ compressedFlag

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, &Error{Op: "decode body", Err: err}
	}
	if !compressed {
		return body, nil
	}
	payload, err := gzipDecompress(body)
	if err != nil {
		return nil, &Error{Op: "decode gunzip", Err: err}
	}
	return payload, nil
}

func gzipCompress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(body []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
