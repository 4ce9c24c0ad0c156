package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wallpaper-armada/internal/metrics"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := NewServer(zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RequestIDPropagates(t *testing.T) {
	t.Parallel()

	server := NewServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestServer_ReadyzAllChecksPass(t *testing.T) {
	t.Parallel()

	calls := 0
	hadDeadline := false
	server := NewServer(zap.NewNop(), ReadinessCheck{
		Name: "metadata",
		Check: func(ctx context.Context) error {
			calls++
			_, hadDeadline = ctx.Deadline()
			return nil
		},
	})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
	require.Equal(t, 1, calls)
	require.True(t, hadDeadline, "readiness checks run with a deadline")
}

func TestServer_ReadyzReportsFailures(t *testing.T) {
	t.Parallel()

	server := NewServer(zap.NewNop(),
		ReadinessCheck{Name: "metadata", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "bucket", Check: func(context.Context) error { return errors.New("bucket missing") }},
	)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"status":"unavailable","failures":{"bucket":"bucket missing"}}`, rec.Body.String())
}

func TestServer_MetricsExposesArmadaCollectors(t *testing.T) {
	t.Parallel()

	server := NewServer(zap.NewNop())
	metrics.ObserveItem("r/wallpapers", "stored")

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "armada_items_total")
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := &Server{logger: zap.NewNop()}
	handler := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestServer_UnknownRoute(t *testing.T) {
	t.Parallel()

	server := NewServer(zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResponseWriterHijackUnsupported(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.Error(t, err)
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestResponseWriterHijackDelegates(t *testing.T) {
	t.Parallel()

	inner := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw := &responseWriter{ResponseWriter: inner}
	_, _, err := rw.Hijack()
	require.NoError(t, err)
	require.True(t, inner.hijacked)
}
