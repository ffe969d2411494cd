package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope is the (RefID, payload) pair carried by every frame. Both
// directions encode it as a two-element msgpack array — a uint64 followed
// by the tagged request or response map — so the wire shape matches the
// original Rust port's (ref_id, Request) / (ref_id, Response) tuple
// encoding byte-for-byte in spirit.
type Envelope[T any] struct {
	RefID   RefID
	Message T
}

// EncodeRequest serializes (refID, req) into a frame payload.
func EncodeRequest(refID RefID, req Request) ([]byte, error) {
	return encodeEnvelope(refID, req)
}

// DecodeRequest deserializes a frame payload into (refID, req). A decode
// failure here is fatal to the session: once the byte stream is out of
// sync, no later frame can be trusted.
func DecodeRequest(payload []byte) (RefID, Request, error) {
	var env Envelope[Request]
	if err := decodeEnvelope(payload, &env); err != nil {
		return 0, Request{}, fmt.Errorf("decoding request frame: %w", err)
	}
	return env.RefID, env.Message, nil
}

// EncodeResponse serializes (refID, resp) into a frame payload.
func EncodeResponse(refID RefID, resp Response) ([]byte, error) {
	return encodeEnvelope(refID, resp)
}

// DecodeResponse deserializes a frame payload into (refID, resp). Exposed
// for host-side / test clients driving the engine.
func DecodeResponse(payload []byte) (RefID, Response, error) {
	var env Envelope[Response]
	if err := decodeEnvelope(payload, &env); err != nil {
		return 0, Response{}, fmt.Errorf("decoding response frame: %w", err)
	}
	return env.RefID, env.Message, nil
}

func encodeEnvelope[T any](refID RefID, msg T) ([]byte, error) {
	b, err := msgpack.Marshal([]interface{}{refID, msg})
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return b, nil
}

func decodeEnvelope[T any](payload []byte, env *Envelope[T]) error {
	var raw [2]msgpack.RawMessage
	if err := msgpack.Unmarshal(payload, &raw); err != nil {
		return err
	}
	if err := msgpack.Unmarshal(raw[0], &env.RefID); err != nil {
		return fmt.Errorf("decoding ref_id: %w", err)
	}
	if err := msgpack.Unmarshal(raw[1], &env.Message); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	return nil
}
