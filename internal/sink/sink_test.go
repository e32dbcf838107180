package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newProducer(t *testing.T) *mocks.SyncProducer {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	return mocks.NewSyncProducer(t, cfg)
}

func TestKafkaSink_Emit(t *testing.T) {
	producer := newProducer(t)
	defer producer.Close()

	var got *sarama.ProducerMessage
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		got = msg
		return nil
	})

	s := NewKafkaSinkWithProducer(producer, "reports").WithClock(func() time.Time { return fixedTime })
	payload := json.RawMessage(`{"alignmentScore":80}`)
	require.NoError(t, s.Emit(context.Background(), TypeComparisonReport, "report-1", payload))

	require.NotNil(t, got)
	assert.Equal(t, "reports", got.Topic)

	key, err := got.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "report-1", string(key))

	value, err := got.Value.Encode()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(value, &env))
	assert.Equal(t, TypeComparisonReport, env.Type)
	assert.Equal(t, fixedTime.UnixMilli(), env.TS)
	assert.JSONEq(t, `{"alignmentScore":80}`, string(env.Data))
}

func TestKafkaSink_EmitStruct(t *testing.T) {
	producer := newProducer(t)
	defer producer.Close()
	producer.ExpectSendMessageAndSucceed()

	s := NewKafkaSinkWithProducer(producer, "reports")
	err := s.Emit(context.Background(), "test", "", struct {
		Score int `json:"score"`
	}{Score: 100})
	assert.NoError(t, err)
}

func TestKafkaSink_EmitFailure(t *testing.T) {
	producer := newProducer(t)
	defer producer.Close()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	s := NewKafkaSinkWithProducer(producer, "reports")
	err := s.Emit(context.Background(), TypeComparisonReport, "k", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
}

func TestKafkaSink_InvalidPayload(t *testing.T) {
	producer := newProducer(t)
	defer producer.Close()

	s := NewKafkaSinkWithProducer(producer, "reports")
	assert.Error(t, s.Emit(context.Background(), "test", "", []byte("{bad")))
}

func TestKafkaSink_CanceledContext(t *testing.T) {
	producer := newProducer(t)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewKafkaSinkWithProducer(producer, "reports")
	assert.ErrorIs(t, s.Emit(ctx, "test", "", json.RawMessage(`{}`)), context.Canceled)
}

func TestNewKafkaSink_Validation(t *testing.T) {
	_, err := NewKafkaSink("localhost:9092", "", nil)
	assert.Error(t, err)
	_, err = NewKafkaSink(" , ", "reports", nil)
	assert.Error(t, err)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitCSV(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitCSV(""))
}
