package metrics

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/yalahq/go-whatsapp-guestflow/internal/worker"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type mockCloudWatch struct {
	mu     sync.Mutex
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (m *mockCloudWatch) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

func (m *mockCloudWatch) input(i int) *cloudwatch.PutMetricDataInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[i]
}

func datumValue(t *testing.T, input *cloudwatch.PutMetricDataInput, name string) float64 {
	t.Helper()
	for _, d := range input.MetricData {
		if d.MetricName != nil && *d.MetricName == name {
			require.NotNil(t, d.Value)
			return *d.Value
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestPublishSendsGaugesAndCounterDeltas(t *testing.T) {
	mock := &mockCloudWatch{}
	stats := worker.Stats{QueueDepth: 3, InFlight: 2, Accepted: 5, Completed: 4, Failed: 1}
	p := NewPublisher(mock, "GuestflowBot", time.Minute, func() worker.Stats { return stats }, quietLogger())

	require.NoError(t, p.publish(context.Background()))
	require.Equal(t, 1, mock.count())

	first := mock.input(0)
	require.Equal(t, "GuestflowBot", *first.Namespace)
	require.Equal(t, float64(3), datumValue(t, first, "QueueDepth"))
	require.Equal(t, float64(2), datumValue(t, first, "InFlight"))
	require.Equal(t, float64(5), datumValue(t, first, "Accepted"))
	require.Equal(t, float64(4), datumValue(t, first, "Completed"))
	require.Equal(t, float64(1), datumValue(t, first, "Failed"))

	// counters are cumulative at the source; only the growth is published
	stats.Accepted = 8
	stats.Completed = 7
	stats.QueueDepth = 1
	require.NoError(t, p.publish(context.Background()))

	second := mock.input(1)
	require.Equal(t, float64(3), datumValue(t, second, "Accepted"))
	require.Equal(t, float64(3), datumValue(t, second, "Completed"))
	require.Equal(t, float64(0), datumValue(t, second, "Failed"))
	require.Equal(t, float64(1), datumValue(t, second, "QueueDepth"), "gauges are absolute")
}

func TestPublishSurfacesClientError(t *testing.T) {
	mock := &mockCloudWatch{err: errors.New("throttled")}
	p := NewPublisher(mock, "GuestflowBot", time.Minute, func() worker.Stats { return worker.Stats{} }, quietLogger())

	require.Error(t, p.publish(context.Background()))
}

func TestRunPublishesOnIntervalAndFlushesOnStop(t *testing.T) {
	mock := &mockCloudWatch{}
	p := NewPublisher(mock, "GuestflowBot", 10*time.Millisecond,
		func() worker.Stats { return worker.Stats{Accepted: 1} }, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return mock.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	before := mock.count()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.GreaterOrEqual(t, mock.count(), before+1, "shutdown should flush once more")
}
