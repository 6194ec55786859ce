// Package metrics exposes Prometheus counters for publishing and queue sweeps.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the publish and queue paths report into.
type Recorder interface {
	RecordPublish(platform, outcome string)
	RecordRetry(platform string)
	RecordQueueFired(completed bool)
	RecordSweep(due, fired int)
}

type Collector struct {
	publish     *prometheus.CounterVec
	retries     *prometheus.CounterVec
	queueFired  *prometheus.CounterVec
	sweepDue    prometheus.Counter
	sweepFailed prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		publish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postqueue_publish_total",
			Help: "Publish attempts by platform and outcome.",
		}, []string{"platform", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postqueue_retries_total",
			Help: "Retries scheduled after transient publish failures.",
		}, []string{"platform"}),
		queueFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postqueue_queue_fired_total",
			Help: "Recurring queue executions, labelled by whether the queue completed.",
		}, []string{"completed"}),
		sweepDue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postqueue_queue_due_total",
			Help: "Due queues seen by the queue processor.",
		}),
		sweepFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postqueue_queue_skipped_total",
			Help: "Due queues the processor could not fire.",
		}),
	}

	reg.MustRegister(c.publish, c.retries, c.queueFired, c.sweepDue, c.sweepFailed)
	return c
}

func (c *Collector) RecordPublish(platform, outcome string) {
	c.publish.WithLabelValues(platform, outcome).Inc()
}

func (c *Collector) RecordRetry(platform string) {
	c.retries.WithLabelValues(platform).Inc()
}

func (c *Collector) RecordQueueFired(completed bool) {
	label := "false"
	if completed {
		label = "true"
	}
	c.queueFired.WithLabelValues(label).Inc()
}

func (c *Collector) RecordSweep(due, fired int) {
	c.sweepDue.Add(float64(due))
	if due > fired {
		c.sweepFailed.Add(float64(due - fired))
	}
}

type nop struct{}

// Nop discards every measurement.
func Nop() Recorder { return nop{} }

func (nop) RecordPublish(string, string) {}
func (nop) RecordRetry(string)           {}
func (nop) RecordQueueFired(bool)        {}
func (nop) RecordSweep(int, int)         {}
