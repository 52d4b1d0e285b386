// Package metrics publishes worker pool activity to CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sirupsen/logrus"

	"github.com/yalahq/go-whatsapp-guestflow/internal/aws"
	"github.com/yalahq/go-whatsapp-guestflow/internal/worker"
)

// Publisher pushes pool statistics as custom metrics on a fixed interval.
// Cumulative counters go out as deltas since the previous tick so CloudWatch
// Sum aggregates correctly; queue depth and in-flight are gauges.
type Publisher struct {
	client    aws.CloudWatchAPI
	namespace string
	interval  time.Duration
	source    func() worker.Stats
	log       *logrus.Logger

	last worker.Stats
}

// NewPublisher binds a CloudWatch client to a stats source.
func NewPublisher(client aws.CloudWatchAPI, namespace string, interval time.Duration, source func() worker.Stats, log *logrus.Logger) *Publisher {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logrus.New()
	}
	return &Publisher{
		client:    client,
		namespace: namespace,
		interval:  interval,
		source:    source,
		log:       log,
	}
}

// Run publishes until ctx is done, then flushes one last datapoint set so the
// final counter deltas are not lost on shutdown.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.publish(flushCtx); err != nil {
				p.log.WithError(err).Warn("final metrics flush failed")
			}
			cancel()
			return
		case <-ticker.C:
			if err := p.publish(ctx); err != nil {
				p.log.WithError(err).Warn("metrics publish failed")
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context) error {
	stats := p.source()
	now := time.Now()

	data := []cwtypes.MetricDatum{
		datum("QueueDepth", float64(stats.QueueDepth), now),
		datum("InFlight", float64(stats.InFlight), now),
		datum("Accepted", float64(stats.Accepted-p.last.Accepted), now),
		datum("Rejected", float64(stats.Rejected-p.last.Rejected), now),
		datum("Duplicates", float64(stats.Duplicates-p.last.Duplicates), now),
		datum("Completed", float64(stats.Completed-p.last.Completed), now),
		datum("Failed", float64(stats.Failed-p.last.Failed), now),
	}
	p.last = stats

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  awsString(p.namespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("metrics: put metric data: %w", err)
	}
	return nil
}

func datum(name string, value float64, at time.Time) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: awsString(name),
		Value:      &value,
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  &at,
	}
}

// awsString helper
func awsString(s string) *string { return &s }
