package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/IvanTurko/depthstream-go/depth"
	"github.com/IvanTurko/depthstream-go/internal/backoff"
	"github.com/IvanTurko/depthstream-go/internal/config"
	"github.com/IvanTurko/depthstream-go/sdkerr"
	"github.com/IvanTurko/depthstream-go/sink"
	"github.com/IvanTurko/depthstream-go/ws"
)

var errLimitReached = errors.New("update limit reached")

type watcher struct {
	cfg      *config.Config
	endpoint string
	logger   *zap.Logger
	out      io.Writer
	sink     sink.Sink
	backoff  *backoff.Backoff

	// limit stops the watcher after that many updates; 0 means never.
	limit     int
	delivered int
}

func newWatcher(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) (*watcher, error) {
	endpoint, err := cfg.StreamURL()
	if err != nil {
		return nil, err
	}

	s, err := newSink(ctx, cfg.Sink)
	if err != nil {
		return nil, err
	}

	return &watcher{
		cfg:      cfg,
		endpoint: endpoint,
		logger:   logger,
		out:      out,
		sink:     s,
		backoff: backoff.New(
			time.Duration(cfg.Reconnect.BaseMs)*time.Millisecond,
			time.Duration(cfg.Reconnect.MaxMs)*time.Millisecond,
			cfg.Reconnect.Jitter,
		),
	}, nil
}

func newSink(ctx context.Context, cfg config.SinkConfig) (sink.Sink, error) {
	switch cfg.Type {
	case config.SinkRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s := sink.NewRedisSink(client,
			sink.WithKeyPrefix(cfg.Redis.KeyPrefix),
			sink.WithChannelPrefix(cfg.Redis.ChannelPrefix),
			sink.WithTTL(time.Duration(cfg.Redis.TTLMs)*time.Millisecond),
		)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case config.SinkKafka:
		return sink.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	default:
		return nil, nil
	}
}

// run follows the stream until ctx ends or the update limit is reached,
// reconnecting after failures when enabled.
func (w *watcher) run(ctx context.Context) error {
	for {
		err := w.follow(ctx)
		switch {
		case errors.Is(err, errLimitReached), ctx.Err() != nil:
			return nil
		case !w.cfg.Reconnect.Enabled:
			return err
		case w.cfg.Reconnect.MaxAttempts > 0 && w.backoff.Attempt() >= w.cfg.Reconnect.MaxAttempts:
			return fmt.Errorf("giving up after %d attempts: %w", w.backoff.Attempt(), err)
		}

		delay := w.backoff.Next()
		w.logger.Warn("stream ended, reconnecting",
			zap.Error(err),
			zap.Int("attempt", w.backoff.Attempt()),
			zap.Duration("delay", delay))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// follow runs one session. It returns nil when the server closed the stream.
func (w *watcher) follow(ctx context.Context) error {
	sugar := w.logger.Sugar()
	session := ws.NewSession(w.endpoint,
		ws.WithLogger(sugar),
		ws.WithHandshakeTimeout(w.cfg.HandshakeTimeout()),
		ws.WithReadTimeout(w.cfg.ReadTimeout()),
		ws.WithReadLimit(w.cfg.Stream.ReadLimit),
	)
	defer session.Close()

	log := w.logger.With(zap.String("session", session.ID()))

	hs, err := session.Connect(ctx)
	if err != nil {
		return err
	}
	w.backoff.Reset()
	printHandshake(w.out, hs)
	log.Info("connected", zap.String("endpoint", w.endpoint))

	stream := depth.NewStream(session,
		depth.WithLogger(sugar),
		depth.WithOnInvalid(func(f ws.Frame, err error) {
			log.Warn("frame skipped", zap.Stringer("kind", f.Kind), zap.Error(err))
		}),
	)
	defer func() {
		st := stream.Stats()
		log.Info("session finished",
			zap.Uint64("frames", st.Frames),
			zap.Uint64("delivered", st.Delivered),
			zap.Uint64("invalid", st.Invalid))
	}()

	for env, err := range stream.Updates(ctx) {
		if err != nil {
			if sdkerr.IsRecoverable(err) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		printUpdate(w.out, env)
		if w.sink != nil {
			if err := w.sink.Publish(ctx, env); err != nil {
				log.Warn("relay failed", zap.Error(err))
			}
		}

		w.delivered++
		if w.limit > 0 && w.delivered >= w.limit {
			return errLimitReached
		}
	}
	return nil
}

func (w *watcher) close() {
	if w.sink != nil {
		if err := w.sink.Close(); err != nil {
			w.logger.Warn("sink close failed", zap.Error(err))
		}
	}
}

func printHandshake(out io.Writer, hs *ws.Handshake) {
	fmt.Fprintln(out, "Connected to stream.")
	fmt.Fprintf(out, "HTTP status code: %d\n", hs.StatusCode)
	fmt.Fprintln(out, "Response headers:")

	keys := make([]string, 0, len(hs.Header))
	for k := range hs.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range hs.Header[k] {
			fmt.Fprintf(out, "- %s: %q\n", k, v)
		}
	}
}

// printUpdate prints one line per level present on both sides.
func printUpdate(out io.Writer, env *depth.StreamEnvelope) {
	for _, p := range env.Data.Pairs() {
		fmt.Fprintf(out, "%s (%d): size: %s, bid: %s, ask: %s, size: %s\n",
			env.Stream, p.Level, p.Bid.Size, p.Bid.Price, p.Ask.Price, p.Ask.Size)
	}
}
