package lfexport

import (
	"bytes"
	"context"

	"github.com/pydantic/logfire-go/lfbase"

	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// HTTPOptions configures the primary exporter.
type HTTPOptions struct {
	Client      *resty.Client
	URL         string
	Compress    bool
	Diagnostics *zap.Logger
}

// HTTPExporter posts wire batches to a single endpoint, one attempt
// per batch. Retry belongs to the client transport (RetryPolicy) and
// resilience to the fallback layer above this one.
type HTTPExporter struct {
	client   *resty.Client
	url      string
	compress bool
	diag     *zap.Logger
}

var _ lfbase.Exporter = &HTTPExporter{}

func NewHTTP(opts HTTPOptions) *HTTPExporter {
	diag := opts.Diagnostics
	if diag == nil {
		diag = zap.NewNop()
	}
	return &HTTPExporter{
		client:   opts.Client,
		url:      opts.URL,
		compress: opts.Compress,
		diag:     diag,
	}
}

// Export sends one batch. Every failure comes back as a typed error
// (*ExportTransportError, or *BodyTooLargeError from the transport)
// so the fallback layer can absorb it.
func (e *HTTPExporter) Export(ctx context.Context, batch []*lfbase.SpanRecord) error {
	if len(batch) == 0 {
		return nil
	}
	body := lfbase.EncodeBatch(batch)

	req := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json")
	if e.compress {
		zipped, err := gzipBytes(body)
		if err != nil {
			return errors.Wrap(err, "compress export body")
		}
		req.SetHeader("Content-Encoding", "gzip")
		req.SetBody(zipped)
	} else {
		req.SetBody(body)
	}

	resp, err := req.Post(e.url)
	if err != nil {
		var tooBig *BodyTooLargeError
		if errors.As(err, &tooBig) {
			return err
		}
		return errors.WithStack(&ExportTransportError{URL: e.url, Err: err})
	}
	if !resp.IsSuccess() {
		return errors.WithStack(&ExportTransportError{
			URL:        e.url,
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
		})
	}
	e.diag.Debug("batch exported",
		zap.Int("records", len(batch)), zap.Int("bytes", len(body)))
	return nil
}

func (e *HTTPExporter) Shutdown(context.Context) error { return nil }

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
