// Package lfmetric periodically gathers a prometheus registry and
// posts the aggregated points to the ingest endpoint. The metrics
// path is independent of the span pipeline and deliberately has no
// fallback store: a missed interval is re-gathered on the next one,
// while a missed span is gone.
package lfmetric

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

const DefaultInterval = time.Minute

// ReaderOptions configures a Reader. Registry and Client are
// required; the rest defaults.
type ReaderOptions struct {
	Registry    *prometheus.Registry
	Client      *resty.Client
	URL         string
	Interval    time.Duration
	Now         func() time.Time
	Diagnostics *zap.Logger
}

// Reader exports the registry on a fixed schedule from its own
// goroutine. Shutdown stops the schedule and runs one final gather,
// so points observed since the last tick still go out.
type Reader struct {
	reg      *prometheus.Registry
	client   *resty.Client
	url      string
	interval time.Duration
	now      func() time.Time
	diag     *zap.Logger
	failures prometheus.Counter

	done     chan struct{}
	stopped  chan struct{}
	shutOnce sync.Once
	shutErr  error
}

func NewReader(opts ReaderOptions) *Reader {
	if opts.Registry == nil {
		panic("lfmetric: ReaderOptions.Registry is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = zap.NewNop()
	}
	r := &Reader{
		reg:      opts.Registry,
		client:   opts.Client,
		url:      opts.URL,
		interval: opts.Interval,
		now:      opts.Now,
		diag:     opts.Diagnostics,
		// registered on the gathered registry, so failures surface in
		// the next successful export
		failures: promauto.With(opts.Registry).NewCounter(prometheus.CounterOpts{
			Name: "logfire_metric_export_failures_total",
			Help: "Metric gather or export attempts that failed.",
		}),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go r.loop()
	return r
}

// Shutdown stops the schedule, waits for the goroutine, and exports
// one final gather bounded by ctx. Later calls replay the result.
func (r *Reader) Shutdown(ctx context.Context) error {
	r.shutOnce.Do(func() {
		close(r.done)
		<-r.stopped
		r.shutErr = r.export(ctx)
	})
	return r.shutErr
}

func (r *Reader) loop() {
	defer close(r.stopped)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// failures are logged and counted inside
			_ = r.export(context.Background())
		case <-r.done:
			return
		}
	}
}

func (r *Reader) export(ctx context.Context) error {
	fams, err := r.reg.Gather()
	if err != nil {
		r.failures.Inc()
		r.diag.Error("metrics gather failed", zap.Error(err))
		return errors.Wrap(err, "metrics gather")
	}
	points := flatten(fams)
	if len(points) == 0 {
		return nil
	}
	body := payload{Metrics: points, Timestamp: r.now().UnixNano()}
	raw, err := sonic.Marshal(body)
	if err != nil {
		r.failures.Inc()
		r.diag.Error("metrics encode failed", zap.Error(err))
		return errors.Wrap(err, "metrics encode")
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(raw).
		Post(r.url)
	if err != nil {
		r.failures.Inc()
		r.diag.Warn("metrics export failed", zap.Error(err))
		return errors.Wrapf(err, "metrics export to %s", r.url)
	}
	if !resp.IsSuccess() {
		r.failures.Inc()
		r.diag.Warn("metrics export rejected",
			zap.Int("status", resp.StatusCode()), zap.String("url", r.url))
		return errors.Errorf("metrics export to %s: %s", r.url, resp.Status())
	}
	r.diag.Debug("metrics exported", zap.Int("points", len(points)))
	return nil
}

type payload struct {
	Metrics   []metricPoint `json:"metrics"`
	Timestamp int64         `json:"timestamp"`
}

// metricPoint is one flattened sample. Scalar kinds fill Value;
// histograms fill Sum/Count/Buckets; summaries Sum/Count/Quantiles.
type metricPoint struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Labels    map[string]string `json:"labels,omitempty"`
	Value     *float64          `json:"value,omitempty"`
	Sum       *float64          `json:"sum,omitempty"`
	Count     *uint64           `json:"count,omitempty"`
	Buckets   []bucket          `json:"buckets,omitempty"`
	Quantiles []quantile        `json:"quantiles,omitempty"`
}

// le is a string so the +Inf bucket survives JSON.
type bucket struct {
	LE    string `json:"le"`
	Count uint64 `json:"count"`
}

type quantile struct {
	Quantile float64 `json:"quantile"`
	Value    float64 `json:"value"`
}

func flatten(fams []*dto.MetricFamily) []metricPoint {
	var out []metricPoint
	for _, fam := range fams {
		for _, m := range fam.GetMetric() {
			p := metricPoint{
				Name:   fam.GetName(),
				Type:   strings.ToLower(fam.GetType().String()),
				Labels: labelMap(m.GetLabel()),
			}
			switch {
			case m.Counter != nil:
				v := m.Counter.GetValue()
				p.Value = &v
			case m.Gauge != nil:
				v := m.Gauge.GetValue()
				p.Value = &v
			case m.Histogram != nil:
				sum, count := m.Histogram.GetSampleSum(), m.Histogram.GetSampleCount()
				p.Sum, p.Count = &sum, &count
				for _, b := range m.Histogram.GetBucket() {
					p.Buckets = append(p.Buckets, bucket{
						LE:    formatLE(b.GetUpperBound()),
						Count: b.GetCumulativeCount(),
					})
				}
			case m.Summary != nil:
				sum, count := m.Summary.GetSampleSum(), m.Summary.GetSampleCount()
				p.Sum, p.Count = &sum, &count
				for _, q := range m.Summary.GetQuantile() {
					// no observations yet reports NaN, which JSON cannot carry
					if math.IsNaN(q.GetValue()) {
						continue
					}
					p.Quantiles = append(p.Quantiles, quantile{
						Quantile: q.GetQuantile(),
						Value:    q.GetValue(),
					})
				}
			case m.Untyped != nil:
				v := m.Untyped.GetValue()
				p.Value = &v
			default:
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

func labelMap(pairs []*dto.LabelPair) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	labels := make(map[string]string, len(pairs))
	for _, lp := range pairs {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

func formatLE(v float64) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
