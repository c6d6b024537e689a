package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/harunnryd/cleanline/pkg/errorsx"
	"github.com/harunnryd/cleanline/pkg/logging"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink mirrors broadcast records onto a Kafka topic for downstream
// consumers. Records are queued and written by a single goroutine; when the
// queue is full new records are dropped.
type KafkaSink struct {
	w       messageWriter
	ch      chan kafka.Message
	done    chan struct{}
	timeout time.Duration
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewKafkaSink(brokers []string, topic string, log *slog.Logger) *KafkaSink {
	return newKafkaSink(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}, 256, log)
}

func newKafkaSink(w messageWriter, buffer int, log *slog.Logger) *KafkaSink {
	s := &KafkaSink{
		w:       w,
		ch:      make(chan kafka.Message, buffer),
		done:    make(chan struct{}),
		timeout: 5 * time.Second,
		log:     logging.NewComponentLogger(log, "kafka_sink"),
	}
	go s.loop()
	return s
}

func (s *KafkaSink) Publish(rec EventRecord, payload []byte) {
	key := rec.From
	if rec.Type == TypeOutbound {
		key = rec.To
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  rec.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(rec.Type)},
			{Key: "channel", Value: []byte(rec.Channel)},
		},
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
		s.log.Warn("kafka_sink_dropped", "reason", string(errorsx.ReasonBroadcast))
	}
}

func (s *KafkaSink) loop() {
	defer close(s.done)
	for msg := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.w.WriteMessages(ctx, msg); err != nil {
			s.log.Warn("kafka_sink_write_failed", "reason", string(errorsx.ReasonBroadcast), "error", err)
		}
		cancel()
	}
}

// Close flushes queued records and closes the writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	<-s.done
	return s.w.Close()
}
