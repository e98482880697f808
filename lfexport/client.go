// Package lfexport moves finished records off the producing
// goroutines and out of the process: a single-goroutine batcher, an
// HTTP exporter with a hard body-size cap, and a file fallback that
// absorbs backend failures.
package lfexport

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// Endpoint paths under the configured base URL.
const (
	TracesPath  = "/v1/traces"
	MetricsPath = "/v1/metrics"
)

const userAgent = "logfire-go/0.1.0"

// ClientOptions configures the client shared by the span and metrics
// exporters.
type ClientOptions struct {
	Token       string
	Timeout     time.Duration
	MaxBodySize int64
	// Base supplies the underlying client; RetryPolicy builds a
	// retrying one. Its Transport gets wrapped by the body-size
	// check, on a copy, so the caller's client is not modified.
	Base *http.Client
}

// NewClient builds the resty client every export call goes through.
// The token goes out verbatim: logfire write tokens are not bearer
// tokens, and resty's SetAuthToken would prefix "Bearer ".
func NewClient(opts ClientOptions) *resty.Client {
	var rc *resty.Client
	if opts.Base != nil {
		hc := *opts.Base
		hc.Transport = NewBodyLimitTransport(hc.Transport, opts.MaxBodySize)
		rc = resty.NewWithClient(&hc)
	} else {
		rc = resty.New()
		rc.SetTransport(NewBodyLimitTransport(nil, opts.MaxBodySize))
	}
	rc.SetTimeout(opts.Timeout)
	rc.SetHeader("User-Agent", userAgent)
	if opts.Token != "" {
		rc.SetHeader("Authorization", opts.Token)
	}
	return rc
}

// RetryPolicy builds an *http.Client that retries transient failures
// with exponential backoff, for use as Config.HTTPClient. The
// exporter itself never retries; when retries are wanted they live
// below it, inside the client transport, where the fallback layer
// cannot observe the intermediate failures.
func RetryPolicy(maxRetries int, minWait, maxWait time.Duration) *http.Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = maxRetries
	retry.RetryWaitMin = minWait
	retry.RetryWaitMax = maxWait
	retry.Logger = nil
	return retry.StandardClient()
}
