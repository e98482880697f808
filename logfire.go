// Package logfire emits structured telemetry: spans and logs whose
// messages render from templates with typed arguments, exception
// capture with full cause chains, and a resilient export pipeline
// that batches finished records, posts them over HTTP, and falls back
// to a local file when the backend misbehaves.
//
//	lg, err := logfire.Configure(logfire.Config{Token: token})
//	if err != nil {
//		return err
//	}
//	defer lg.Shutdown(context.Background())
//
//	ctx, span := lg.Span(ctx, "fetch {url}", lfattr.A("url", url))
//	defer span.End()
//	lg.Info(ctx, "cache {hit=}", lfattr.A("hit", hit))
//
// Every span call emits two records: an immediate zero-duration
// start_span shadow, so the backend can show work in progress, and
// the real span when End runs. Parenting follows the context chain
// of the producing goroutine, never lexical nesting.
package logfire

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/pydantic/logfire-go/lfbase"
	"github.com/pydantic/logfire-go/lfexc"
	"github.com/pydantic/logfire-go/lfexport"
	"github.com/pydantic/logfire-go/lfmetric"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Configure validates cfg and assembles the pipeline. The default
// processor chain is a batcher draining into the HTTP exporter with
// the file fallback behind it; cfg.Processors replaces the whole
// chain. Configure never starts anything on bad input.
func Configure(cfg Config) (*Logger, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// capture's internal failures become diagnostics lines
	lfexc.OnInternalError = func(err error) {
		cfg.Diagnostics.Warn("exception capture degraded", zap.Error(err))
	}

	if cfg.Disabled {
		return &Logger{pipe: &pipeline{
			disabled: true,
			diag:     cfg.Diagnostics,
			now:      cfg.Now,
			idgen:    cfg.IDGenerator,
		}}, nil
	}

	pipe := &pipeline{
		diag:  cfg.Diagnostics,
		now:   cfg.Now,
		idgen: cfg.IDGenerator,
	}

	metrics := lfexport.NewMetrics(cfg.Metrics)
	procs := cfg.Processors
	if len(procs) == 0 {
		client := lfexport.NewClient(lfexport.ClientOptions{
			Token:       cfg.Token,
			Timeout:     cfg.RequestTimeout,
			MaxBodySize: cfg.MaxBodySize,
			Base:        cfg.HTTPClient,
		})
		exporter := lfexport.NewHTTP(lfexport.HTTPOptions{
			Client:      client,
			URL:         cfg.BaseURL + lfexport.TracesPath,
			Compress:    cfg.CompressBody,
			Diagnostics: cfg.Diagnostics,
		})
		fallback := lfexport.NewFallback(
			exporter,
			lfexport.NewFileStore(cfg.FallbackPath),
			cfg.Diagnostics,
			metrics,
		)
		procs = []lfbase.Processor{lfexport.NewBatcher(fallback, lfexport.BatcherOptions{
			QueueSize:     cfg.MaxQueueSize,
			BatchSize:     cfg.MaxBatchSize,
			ScheduleDelay: cfg.ScheduleDelay,
			Diagnostics:   cfg.Diagnostics,
			Metrics:       metrics,
		})}

		if cfg.Metrics != nil {
			pipe.reader = lfmetric.NewReader(lfmetric.ReaderOptions{
				Registry:    cfg.Metrics,
				Client:      client,
				URL:         cfg.BaseURL + lfexport.MetricsPath,
				Interval:    cfg.MetricsInterval,
				Now:         cfg.Now,
				Diagnostics: cfg.Diagnostics,
			})
		}
	}
	if len(procs) == 1 {
		pipe.proc = procs[0]
	} else {
		pipe.proc = lfbase.MultiProcessor(procs)
	}
	return &Logger{pipe: pipe}, nil
}

// pipeline is the shared state behind every Logger handle derived
// from one Configure call.
type pipeline struct {
	proc     lfbase.Processor
	reader   *lfmetric.Reader // nil without a metrics registry
	diag     *zap.Logger
	now      func() time.Time
	idgen    sdktrace.IDGenerator
	disabled bool

	closeOnce sync.Once
	closeErr  error
}

const shutdownGrace = 5 * time.Second

func (p *pipeline) close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, shutdownGrace)
			defer cancel()
		}
		if p.reader != nil {
			p.closeErr = p.reader.Shutdown(ctx)
		}
		if err := p.proc.Shutdown(ctx); err != nil && p.closeErr == nil {
			p.closeErr = err
		}
	})
	return p.closeErr
}

// randomIDGenerator is the default id source: crypto/rand draws,
// retried past the all-zero values otel treats as invalid.
type randomIDGenerator struct{}

var _ sdktrace.IDGenerator = randomIDGenerator{}

func (g randomIDGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	var tid trace.TraceID
	for !tid.IsValid() {
		_, _ = rand.Read(tid[:])
	}
	return tid, g.NewSpanID(ctx, tid)
}

func (randomIDGenerator) NewSpanID(context.Context, trace.TraceID) trace.SpanID {
	var sid trace.SpanID
	for !sid.IsValid() {
		_, _ = rand.Read(sid[:])
	}
	return sid
}
