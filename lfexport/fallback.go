package lfexport

import (
	"context"
	"time"

	"github.com/pydantic/logfire-go/lfbase"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FallbackExporter tries the primary and, on any failure, appends the
// batch to the store and reports success upstream. A misbehaving
// backend must never back the batcher up into producers; losing the
// batch is acceptable only when the disk write fails too, and that
// case is counted and logged.
type FallbackExporter struct {
	primary lfbase.Exporter
	store   *FileStore
	diag    *zap.Logger
	metrics *Metrics
}

var _ lfbase.Exporter = &FallbackExporter{}

func NewFallback(primary lfbase.Exporter, store *FileStore, diag *zap.Logger, m *Metrics) *FallbackExporter {
	if diag == nil {
		diag = zap.NewNop()
	}
	if m == nil {
		m = NewMetrics(nil)
	}
	return &FallbackExporter{primary: primary, store: store, diag: diag, metrics: m}
}

func (f *FallbackExporter) Export(ctx context.Context, batch []*lfbase.SpanRecord) error {
	if len(batch) == 0 {
		return nil
	}
	err := f.primary.Export(ctx, batch)
	if err == nil {
		f.metrics.ExportBatches.Inc()
		return nil
	}
	f.metrics.ExportFailures.Inc()

	id := uuid.NewString()
	entry := StoredBatch{
		Version: storeVersion,
		BatchID: id,
		Written: time.Now().UnixNano(),
		Count:   len(batch),
		Body:    lfbase.EncodeBatch(batch),
	}
	if serr := f.store.Append(entry); serr != nil {
		f.metrics.DroppedRecords.Add(float64(len(batch)))
		f.diag.Error("export failed and fallback write failed, batch dropped",
			zap.String("batch_id", id),
			zap.Int("records", len(batch)),
			zap.NamedError("export_error", err),
			zap.Error(serr))
		return nil
	}
	f.metrics.FallbackBatches.Inc()
	f.diag.Warn("export failed, batch stored for replay",
		zap.String("batch_id", id),
		zap.Int("records", len(batch)),
		zap.String("path", f.store.Path()),
		zap.Error(err))
	return nil
}

func (f *FallbackExporter) Shutdown(ctx context.Context) error {
	err := f.primary.Shutdown(ctx)
	if cerr := f.store.Close(); err == nil {
		err = cerr
	}
	return err
}
