package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nazeru/shopctl-go/pkg/contracts"
	"github.com/nazeru/shopctl-go/pkg/logging"
)

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeStore struct {
	topics []string
	keys   []string
	err    error
}

func (s *fakeStore) Insert(_ context.Context, _, topic, key string, _ any) error {
	s.topics = append(s.topics, topic)
	s.keys = append(s.keys, key)
	return s.err
}

func TestNewEventStampsIDs(t *testing.T) {
	evt := NewEvent("run-1", "o-1", contracts.EventStepSucceeded, nil)
	assert.NotEmpty(t, evt.EventID)
	assert.False(t, evt.CreatedAt.IsZero())
	assert.NotNil(t, evt.Payload)
}

func TestLogSinkWritesStep(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logging.Set(zap.New(core))
	t.Cleanup(func() { logging.Set(zap.NewNop()) })

	require.NoError(t, LogSink{}.Emit(context.Background(), NewEvent("run-1", "", contracts.EventStepSucceeded, map[string]any{"step": "fund"})))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "fund", logs.All()[0].ContextMap()["step"])
}

func TestKafkaSinkKeysByRun(t *testing.T) {
	w := &fakeWriter{}
	sink := KafkaSink{Writer: w}
	require.NoError(t, sink.Emit(context.Background(), NewEvent("run-9", "", contracts.EventRunStarted, nil)))
	require.NoError(t, sink.Close())

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "run-9", string(w.msgs[0].Key))
	assert.True(t, w.closed)
}

func TestOutboxSinkUsesTopic(t *testing.T) {
	store := &fakeStore{}
	closed := false
	sink := NewOutboxSink(store, "shopctl.runs", func() { closed = true })

	require.NoError(t, sink.Emit(context.Background(), NewEvent("run-2", "", contracts.EventRunFinished, nil)))
	require.NoError(t, sink.Close())
	assert.Equal(t, []string{"shopctl.runs"}, store.topics)
	assert.Equal(t, []string{"run-2"}, store.keys)
	assert.True(t, closed)
}

func TestMultiJoinsErrors(t *testing.T) {
	bad := &fakeStore{err: errors.New("db down")}
	good := &fakeWriter{}
	m := Multi{NewOutboxSink(bad, "t", nil), KafkaSink{Writer: good}}

	err := m.Emit(context.Background(), NewEvent("r", "", contracts.EventRunStarted, nil))
	require.Error(t, err)
	assert.Len(t, good.msgs, 1)
}

func TestOpenWithoutBackendsLogsOnly(t *testing.T) {
	sink, err := Open(context.Background(), Options{KafkaTopic: "t"})
	require.NoError(t, err)
	m, ok := sink.(Multi)
	require.True(t, ok)
	assert.Len(t, m, 1)
	require.NoError(t, sink.Close())
}

func TestOpenFallsBackWhenDatabaseUnreachable(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logging.Set(zap.New(core))
	t.Cleanup(func() { logging.Set(zap.NewNop()) })

	sink, err := Open(context.Background(), Options{
		DatabaseURL:  "postgres://u:p@127.0.0.1:1/db?connect_timeout=1",
		KafkaBrokers: []string{"127.0.0.1:1"},
		KafkaTopic:   "t",
	})
	require.NoError(t, err)
	m, ok := sink.(Multi)
	require.True(t, ok)
	require.Len(t, m, 2)
	assert.IsType(t, KafkaSink{}, m[1])
	assert.Equal(t, 1, logs.FilterMessage("journal database unavailable, outbox disabled").Len())
	require.NoError(t, sink.Close())
}
