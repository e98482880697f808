package lfexport

import (
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// BodyLimitTransport fails requests whose body reaches Limit bytes.
// Bodies with a known length are rejected before dialing. Streamed
// bodies are wrapped so the running total is checked as the transport
// reads; the request dies the moment the total reaches the limit and
// the oversized tail never reaches the wire.
type BodyLimitTransport struct {
	Base  http.RoundTripper // nil falls through to http.DefaultTransport
	Limit int64             // <= 0 disables the check
}

func NewBodyLimitTransport(base http.RoundTripper, limit int64) *BodyLimitTransport {
	return &BodyLimitTransport{Base: base, Limit: limit}
}

func (t *BodyLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Limit <= 0 || req.Body == nil {
		return base.RoundTrip(req)
	}
	// a ContentLength of zero with a non-nil body means unknown, same
	// as a negative one
	if req.ContentLength > 0 {
		if req.ContentLength >= t.Limit {
			req.Body.Close()
			return nil, errors.WithStack(&BodyTooLargeError{
				Size:  int(req.ContentLength),
				Limit: int(t.Limit),
			})
		}
		return base.RoundTrip(req)
	}
	req.Body = &limitedBody{rc: req.Body, limit: t.Limit}
	return base.RoundTrip(req)
}

type limitedBody struct {
	rc    io.ReadCloser
	limit int64
	total int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	b.total += int64(n)
	if b.total >= b.limit {
		return n, errors.WithStack(&BodyTooLargeError{
			Size:  int(b.total),
			Limit: int(b.limit),
		})
	}
	return n, err
}

func (b *limitedBody) Close() error { return b.rc.Close() }
