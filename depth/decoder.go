package depth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IvanTurko/depthstream-go/sdkerr"
	"github.com/IvanTurko/depthstream-go/ws"
)

// object holds the members of a JSON object by exact key. encoding/json
// matches struct tags case-insensitively, which the feed never relies on.
type object map[string]json.RawMessage

// DecodeFrame turns one transport frame into a StreamEnvelope.
//
// Errors (all recoverable, see sdkerr.IsRecoverable):
//   - sdkerr.ErrUnsupportedFrameKind: the frame is not a text frame.
//   - sdkerr.ErrSchemaMismatch: the payload is not the combined-stream depth shape.
//   - sdkerr.ErrMalformedNumber: a price or size is not a valid decimal.
func DecodeFrame(f ws.Frame) (*StreamEnvelope, error) {
	if f.Kind != ws.TextFrame {
		return nil, sdkerr.New(subsys, "DecodeFrame", sdkerr.ErrUnsupportedFrameKind).
			WithMessagef("got %s frame (%d bytes), want Text", f.Kind, len(f.Payload))
	}
	return DecodePayload(f.Payload)
}

// DecodePayload decodes a combined-stream text payload:
//
//	{"stream":"ethbtc@depth5","data":{"lastUpdateId":1,"bids":[["0.1","2"]],"asks":[]}}
func DecodePayload(payload []byte) (*StreamEnvelope, error) {
	var env object
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, schemaMismatch(err, "envelope")
	}
	if isAbsent(env["stream"]) {
		return nil, missingField("stream")
	}
	var stream string
	if err := json.Unmarshal(env["stream"], &stream); err != nil {
		return nil, schemaMismatch(err, `envelope: field "stream" is not a string`)
	}
	if stream == "" {
		return nil, schemaMismatch(nil, `field "stream" is empty`)
	}
	if isAbsent(env["data"]) {
		return nil, missingField("data")
	}

	var data object
	if err := json.Unmarshal(env["data"], &data); err != nil {
		return nil, schemaMismatch(err, "data")
	}
	if isAbsent(data["lastUpdateId"]) {
		return nil, missingField("data.lastUpdateId")
	}
	var lastUpdateID uint64
	if err := json.Unmarshal(data["lastUpdateId"], &lastUpdateID); err != nil {
		return nil, schemaMismatch(err, "data.lastUpdateId")
	}

	bids, err := decodeSide("bids", data["bids"])
	if err != nil {
		return nil, err
	}
	asks, err := decodeSide("asks", data["asks"])
	if err != nil {
		return nil, err
	}

	return &StreamEnvelope{
		Stream: stream,
		Data: DepthSnapshot{
			LastUpdateID: lastUpdateID,
			Bids:         bids,
			Asks:         asks,
		},
	}, nil
}

func decodeSide(side string, raw json.RawMessage) ([]Offer, error) {
	if isAbsent(raw) {
		return nil, missingField("data." + side)
	}

	var levels [][]json.RawMessage
	if err := json.Unmarshal(raw, &levels); err != nil {
		return nil, schemaMismatch(err, "data."+side)
	}

	offers := make([]Offer, 0, len(levels))
	for i, level := range levels {
		where := fmt.Sprintf("data.%s[%d]", side, i)
		if len(level) != 2 {
			return nil, schemaMismatch(nil,
				fmt.Sprintf("%s: level has %d elements, want [price, size]", where, len(level)))
		}
		price, err := textToken(level[0])
		if err != nil {
			return nil, schemaMismatch(err, where+": price is not a string")
		}
		size, err := textToken(level[1])
		if err != nil {
			return nil, schemaMismatch(err, where+": size is not a string")
		}

		offer, err := NewOffer(price, size)
		if err != nil {
			return nil, sdkerr.New(subsys, "DecodeFrame", sdkerr.ErrMalformedNumber).
				WithMessage(where).
				WithCause(err)
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// textToken unquotes a JSON string. null and non-string values are errors.
func textToken(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", fmt.Errorf("got %s", raw)
	}
	var s string
	err := json.Unmarshal(raw, &s)
	return s, err
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func missingField(name string) error {
	return schemaMismatch(nil, fmt.Sprintf("missing field %q", name))
}

func schemaMismatch(cause error, msg string) error {
	var syntaxErr *json.SyntaxError
	if errors.As(cause, &syntaxErr) {
		msg = "payload is not a JSON document"
	}
	return sdkerr.New(subsys, "DecodeFrame", sdkerr.ErrSchemaMismatch).
		WithMessage(msg).
		WithCause(cause)
}
