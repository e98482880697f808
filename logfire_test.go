package logfire_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	logfire "github.com/pydantic/logfire-go"
	"github.com/pydantic/logfire-go/lfattr"
	"github.com/pydantic/logfire-go/lfexport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  logfire.Config
		want string
	}{
		{
			name: "missing token",
			cfg:  logfire.Config{},
			want: "Token",
		},
		{
			name: "relative base URL",
			cfg:  logfire.Config{Token: "tok", BaseURL: "api.logfire.dev"},
			want: "BaseURL",
		},
		{
			name: "negative schedule delay",
			cfg:  logfire.Config{Token: "tok", ScheduleDelay: -time.Second},
			want: "ScheduleDelay",
		},
		{
			name: "negative queue size",
			cfg:  logfire.Config{Token: "tok", MaxQueueSize: -1},
			want: "sizes must be positive",
		},
		{
			name: "batch larger than queue",
			cfg:  logfire.Config{Token: "tok", MaxQueueSize: 10, MaxBatchSize: 100},
			want: "MaxBatchSize",
		},
		{
			name: "negative request timeout",
			cfg:  logfire.Config{Token: "tok", RequestTimeout: -time.Second},
			want: "RequestTimeout",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := logfire.Configure(tc.cfg)
			require.Error(t, err)
			var ce *logfire.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestConfigureDisabled(t *testing.T) {
	lg, err := logfire.Configure(logfire.Config{Disabled: true})
	require.NoError(t, err)

	ctx, span := lg.Span(context.Background(), "ignored {x}", lfattr.A("x", 1))
	span.End()
	require.NoError(t, lg.Info(ctx, "also ignored"))
	require.NoError(t, lg.Flush(ctx))
	require.NoError(t, lg.Shutdown(ctx))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOGFIRE_TOKEN", "env-token")
	t.Setenv("LOGFIRE_BASE_URL", "https://ingest.example.com")
	t.Setenv("LOGFIRE_SCHEDULE_DELAY", "250ms")
	t.Setenv("LOGFIRE_COMPRESS_BODY", "true")

	cfg, err := logfire.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "https://ingest.example.com", cfg.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.ScheduleDelay)
	assert.True(t, cfg.CompressBody)
}

// capturingServer records every trace POST it receives.
type capturingServer struct {
	mu     sync.Mutex
	bodies []string
	auths  []string
	status int
}

func (s *capturingServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies = append(s.bodies, string(body))
		s.auths = append(s.auths, r.Header.Get("Authorization"))
		status := s.status
		s.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func (s *capturingServer) all() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...), append([]string(nil), s.auths...)
}

func TestShutdownFlushesThroughDefaultChain(t *testing.T) {
	srv := &capturingServer{}
	server := httptest.NewServer(srv.handler())
	defer server.Close()

	lg, err := logfire.Configure(logfire.Config{
		Token:         "write-token",
		BaseURL:       server.URL,
		ScheduleDelay: time.Hour, // only the shutdown drain may flush
		FallbackPath:  filepath.Join(t.TempDir(), "spans.bin"),
	})
	require.NoError(t, err)

	ctx, span := lg.Span(context.Background(), "outer {n}", lfattr.A("n", 1))
	require.NoError(t, lg.Info(ctx, "inside"))
	span.End()

	require.NoError(t, lg.Shutdown(context.Background()))

	bodies, auths := srv.all()
	require.NotEmpty(t, bodies)
	joined := strings.Join(bodies, "")
	assert.Contains(t, joined, `"logfire.span_type":"start_span"`)
	assert.Contains(t, joined, `"logfire.span_type":"span"`)
	assert.Contains(t, joined, `"logfire.span_type":"log"`)
	for _, auth := range auths {
		assert.Equal(t, "write-token", auth)
	}
}

func TestFailedExportLandsInFallback(t *testing.T) {
	srv := &capturingServer{status: http.StatusBadGateway}
	server := httptest.NewServer(srv.handler())
	defer server.Close()

	path := filepath.Join(t.TempDir(), "spans.bin")
	lg, err := logfire.Configure(logfire.Config{
		Token:         "write-token",
		BaseURL:       server.URL,
		ScheduleDelay: time.Hour,
		FallbackPath:  path,
	})
	require.NoError(t, err)

	_, span := lg.Span(context.Background(), "stranded")
	span.End()
	require.NoError(t, lg.Shutdown(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	entries, err := lfexport.ReadBack(f)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Contains(t, string(entries[0].Body), `"name":"stranded"`)
}
