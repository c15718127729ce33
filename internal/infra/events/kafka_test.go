package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/agri-market/internal/domain/market"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	writer := &recordingWriter{}
	pub := newKafkaPublisher(writer, KafkaConfig{Topic: "mandi.batches"}, testLogger())
	event := market.BatchEvent{
		SessionID:  "s-1",
		Generation: 2,
		Category:   "vegetables",
		Batch:      1,
		Records:    9,
		Tiers:      []market.SourceTier{market.TierLive, market.TierStatic},
		IngestedAt: time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, pub.PublishBatch(context.Background(), event))
	require.Len(t, writer.msgs, 1)
	require.Equal(t, "vegetables", string(writer.msgs[0].Key))

	var decoded market.BatchEvent
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &decoded))
	require.Equal(t, event, decoded)

	require.NoError(t, pub.Close())
	require.True(t, writer.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker unreachable")}
	pub := newKafkaPublisher(writer, KafkaConfig{Topic: "mandi.batches"}, testLogger())

	err := pub.PublishBatch(context.Background(), market.BatchEvent{Category: "grains"})
	require.ErrorContains(t, err, "broker unreachable")
}

func TestNewKafkaPublisherValidatesConfig(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{" "}, Topic: "t"}, testLogger())
	require.Error(t, err)
	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, testLogger())
	require.Error(t, err)
}
