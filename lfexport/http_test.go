package lfexport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pydantic/logfire-go/lfbase"
	"github.com/pydantic/logfire-go/lfexport"

	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	path   string
	header http.Header
	body   []byte
}

// captureServer hands every request it sees to the test through a
// channel, which also orders the handler writes before the reads.
func captureServer(t *testing.T, status int) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	reqs := make(chan capturedRequest, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs <- capturedRequest{path: r.URL.Path, header: r.Header.Clone(), body: body}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, reqs
}

func newTestClient(maxBody int64) *resty.Client {
	return lfexport.NewClient(lfexport.ClientOptions{
		Token:       "lf-write-token",
		Timeout:     5 * time.Second,
		MaxBodySize: maxBody,
	})
}

func TestHTTPExporterPostsBatch(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK)
	exp := lfexport.NewHTTP(lfexport.HTTPOptions{
		Client: newTestClient(1 << 20),
		URL:    srv.URL + lfexport.TracesPath,
	})

	batch := []*lfbase.SpanRecord{makeRecord(1, "alpha"), makeRecord(2, "beta")}
	require.NoError(t, exp.Export(context.Background(), batch))

	got := <-reqs
	assert.Equal(t, "/v1/traces", got.path)
	assert.Equal(t, "lf-write-token", got.header.Get("Authorization"),
		"write tokens go out verbatim, no Bearer prefix")
	assert.Equal(t, "logfire-go/0.1.0", got.header.Get("User-Agent"))
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))

	var wire struct {
		Spans []json.RawMessage `json:"spans"`
	}
	require.NoError(t, json.Unmarshal(got.body, &wire))
	require.Len(t, wire.Spans, 2)
	assert.Contains(t, string(wire.Spans[0]), `"alpha"`)
	assert.Contains(t, string(wire.Spans[1]), `"beta"`)
}

func TestHTTPExporterCompressesBody(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK)
	exp := lfexport.NewHTTP(lfexport.HTTPOptions{
		Client:   newTestClient(1 << 20),
		URL:      srv.URL + lfexport.TracesPath,
		Compress: true,
	})

	require.NoError(t, exp.Export(context.Background(),
		[]*lfbase.SpanRecord{makeRecord(7, "zipped")}))

	got := <-reqs
	assert.Equal(t, "gzip", got.header.Get("Content-Encoding"))

	zr, err := gzip.NewReader(bytes.NewReader(got.body))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.NoError(t, zr.Close())
	assert.Contains(t, string(plain), `"zipped"`)
}

func TestHTTPExporterStatusError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusServiceUnavailable)
	exp := lfexport.NewHTTP(lfexport.HTTPOptions{
		Client: newTestClient(1 << 20),
		URL:    srv.URL + lfexport.TracesPath,
	})

	err := exp.Export(context.Background(), []*lfbase.SpanRecord{makeRecord(1, "x")})
	require.Error(t, err)

	var te *lfexport.ExportTransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.Contains(t, te.Status, "503")
	assert.Nil(t, te.Err)
	assert.Contains(t, err.Error(), srv.URL)
}

func TestHTTPExporterBodyLimit(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK)
	exp := lfexport.NewHTTP(lfexport.HTTPOptions{
		Client: newTestClient(10),
		URL:    srv.URL + lfexport.TracesPath,
	})

	err := exp.Export(context.Background(), []*lfbase.SpanRecord{makeRecord(1, "big")})
	require.Error(t, err)

	var tooBig *lfexport.BodyTooLargeError
	require.True(t, errors.As(err, &tooBig), "size failures pass through untranslated")
	assert.Equal(t, 10, tooBig.Limit)
	assert.Zero(t, len(reqs), "oversized batches never reach the wire")
}

func TestHTTPExporterSkipsEmptyBatch(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK)
	exp := lfexport.NewHTTP(lfexport.HTTPOptions{
		Client: newTestClient(1 << 20),
		URL:    srv.URL + lfexport.TracesPath,
	})

	require.NoError(t, exp.Export(context.Background(), nil))
	assert.Zero(t, len(reqs))
}

func TestHTTPExporterConnectionRefused(t *testing.T) {
	exp := lfexport.NewHTTP(lfexport.HTTPOptions{
		Client: newTestClient(1 << 20),
		URL:    "http://127.0.0.1:1/v1/traces",
	})

	err := exp.Export(context.Background(), []*lfbase.SpanRecord{makeRecord(1, "x")})
	require.Error(t, err)

	var te *lfexport.ExportTransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
	assert.Error(t, te.Err)
}
