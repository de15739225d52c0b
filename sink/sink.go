// Package sink relays decoded depth updates to external systems. Only the
// latest update per stream is of interest; nothing is kept as history.
package sink

import (
	"context"
	"encoding/json"

	"github.com/IvanTurko/depthstream-go/depth"
	"github.com/IvanTurko/depthstream-go/sdkerr"
)

const subsys = "sink"

// Sink receives every delivered update.
type Sink interface {
	Publish(ctx context.Context, env *depth.StreamEnvelope) error
	Close() error
}

func encode(op string, env *depth.StreamEnvelope) ([]byte, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, sdkerr.New(subsys, op, sdkerr.ErrPublish).
			WithMessagef("cannot encode update for %s", env.Stream).
			WithCause(err)
	}
	return payload, nil
}

func publishErr(op, stream string, err error) error {
	return sdkerr.New(subsys, op, sdkerr.ErrPublish).
		WithMessagef("stream %s", stream).
		WithCause(err)
}
