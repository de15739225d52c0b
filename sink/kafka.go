package sink

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/IvanTurko/depthstream-go/depth"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ Sink = (*KafkaSink)(nil)

// KafkaSink writes every update to a topic, keyed by stream name so all
// updates of a stream land on the same partition in order.
type KafkaSink struct {
	w   messageWriter
	now func() time.Time
}

// NewKafkaSink creates a KafkaSink writing synchronously to topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return newKafkaSink(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	})
}

func newKafkaSink(w messageWriter) *KafkaSink {
	return &KafkaSink{w: w, now: time.Now}
}

func (s *KafkaSink) Publish(ctx context.Context, env *depth.StreamEnvelope) error {
	op := "KafkaSink.Publish"
	payload, err := encode(op, env)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(env.Stream),
		Value: payload,
		Time:  s.now(),
		Headers: []kafka.Header{
			{Key: "lastUpdateId", Value: []byte(strconv.FormatUint(env.Data.LastUpdateID, 10))},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return publishErr(op, env.Stream, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}
