package frame

import (
	"io"

	"kvmux/internal/wire"
)

// WriteRequest encodes and frames a CommandRequest.
func WriteRequest(w io.Writer, r wire.Request) error {
	b, err := r.Marshal()
	if err != nil {
		return err
	}
	return Encode(w, b)
}

// ReadRequest reads one frame and decodes it as a CommandRequest.
func ReadRequest(r io.Reader) (wire.Request, error) {
	b, err := Decode(r)
	if err != nil {
		return wire.Request{}, err
	}
	return wire.UnmarshalRequest(b)
}

// WriteResponse encodes and frames a CommandResponse.
func WriteResponse(w io.Writer, resp wire.Response) error {
	b, err := resp.Marshal()
	if err != nil {
		return err
	}
	return Encode(w, b)
}

// ReadResponse reads one frame and decodes it as a CommandResponse.
func ReadResponse(r io.Reader) (wire.Response, error) {
	b, err := Decode(r)
	if err != nil {
		return wire.Response{}, err
	}
	return wire.UnmarshalResponse(b)
}
