package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPublish(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw, testLogger())

	p.Publish(context.Background(), PaymentSucceeded, "tran_1", map[string]string{"booking_id": "b1"})

	require.Len(t, fw.msgs, 1)
	msg := fw.msgs[0]
	assert.Equal(t, "tran_1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, PaymentSucceeded, string(msg.Headers[0].Value))

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, PaymentSucceeded, event["type"])
	assert.Equal(t, map[string]interface{}{"booking_id": "b1"}, event["payload"])
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker unavailable")}
	p := NewKafkaPublisherWithWriter(fw, testLogger())

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), BookingCreated, "b1", nil)
	})
	assert.Empty(t, fw.msgs)
}

func TestPublishSurvivesCancelledContext(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Publish(ctx, BookingCreated, "b1", nil)
	assert.Len(t, fw.msgs, 1)
}

type countingCounter map[string]int

func (c countingCounter) EventPublished(eventType string) { c[eventType]++ }

func TestPublishCountsDeliveredEvents(t *testing.T) {
	counter := countingCounter{}
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw, testLogger()).WithCounter(counter)

	p.Publish(context.Background(), BookingCreated, "b1", nil)
	p.Publish(context.Background(), BookingCreated, "b2", nil)
	fw.err = errors.New("broker unavailable")
	p.Publish(context.Background(), PaymentFailed, "t1", nil)

	assert.Equal(t, 2, counter[BookingCreated])
	assert.Zero(t, counter[PaymentFailed])
}
