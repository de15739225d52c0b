package sink

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IvanTurko/depthstream-go/depth"
	"github.com/IvanTurko/depthstream-go/sdkerr"
)

const (
	defaultKeyPrefix     = "depth:"
	defaultChannelPrefix = "depth."
)

var _ Sink = (*RedisSink)(nil)

// RedisSink stores the latest update of each stream under <keyPrefix><stream>
// and publishes it on <channelPrefix><stream>.
type RedisSink struct {
	client        *redis.Client
	keyPrefix     string
	channelPrefix string
	ttl           time.Duration
}

// RedisOption configures a RedisSink.
type RedisOption func(*RedisSink)

// WithKeyPrefix sets the prefix of the latest-update keys.
func WithKeyPrefix(p string) RedisOption {
	return func(s *RedisSink) {
		s.keyPrefix = p
	}
}

// WithChannelPrefix sets the prefix of the pub/sub channels.
func WithChannelPrefix(p string) RedisOption {
	return func(s *RedisSink) {
		s.channelPrefix = p
	}
}

// WithTTL expires a stream's key when no update arrived for d. Zero keeps it.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisSink) {
		s.ttl = d
	}
}

// NewRedisSink creates a RedisSink on top of client. The sink owns client
// and closes it in Close.
//
// Panics if client is nil.
func NewRedisSink(client *redis.Client, opts ...RedisOption) *RedisSink {
	if client == nil {
		panic("NewRedisSink: client must not be nil")
	}
	s := &RedisSink{
		client:        client,
		keyPrefix:     defaultKeyPrefix,
		channelPrefix: defaultChannelPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the server is reachable.
func (s *RedisSink) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return sdkerr.New(subsys, "RedisSink.Ping", sdkerr.ErrPublish).
			WithMessagef("redis at %s", s.client.Options().Addr).
			WithCause(err)
	}
	return nil
}

// Publish stores env as the latest update of its stream and notifies
// subscribers. Both happen in one MULTI/EXEC.
func (s *RedisSink) Publish(ctx context.Context, env *depth.StreamEnvelope) error {
	op := "RedisSink.Publish"
	payload, err := encode(op, env)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.Key(env.Stream), payload, s.ttl)
	pipe.Publish(ctx, s.Channel(env.Stream), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return publishErr(op, env.Stream, err)
	}
	return nil
}

// Latest returns the last update stored for stream. ok is false when there
// is none.
func (s *RedisSink) Latest(ctx context.Context, stream string) (env *depth.StreamEnvelope, ok bool, err error) {
	raw, err := s.client.Get(ctx, s.Key(stream)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, sdkerr.New(subsys, "RedisSink.Latest", sdkerr.ErrRequestFailed).
			WithMessagef("stream %s", stream).
			WithCause(err)
	}

	env, err = depth.DecodePayload(raw)
	if err != nil {
		return nil, false, err
	}
	return env, true, nil
}

// Key returns the key holding the latest update of stream.
func (s *RedisSink) Key(stream string) string {
	return s.keyPrefix + stream
}

// Channel returns the pub/sub channel of stream.
func (s *RedisSink) Channel(stream string) string {
	return s.channelPrefix + stream
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
