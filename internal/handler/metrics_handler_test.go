package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/behavior-tracker-api/internal/service"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthAndReady(t *testing.T) {
	router := buildRouter(Handlers{Metrics: NewMetricsHandler(nil, pingFunc(func(context.Context) error { return nil }))}, nil)

	resp := performRequest(router, newRequest(http.MethodGet, "/health", "", ""))
	assert.Equal(t, http.StatusOK, resp.Code)
	resp = performRequest(router, newRequest(http.MethodGet, "/ready", "", ""))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	router := buildRouter(Handlers{Metrics: NewMetricsHandler(nil, pingFunc(func(context.Context) error { return errors.New("refused") }))}, nil)

	resp := performRequest(router, newRequest(http.MethodGet, "/ready", "", ""))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	metrics := service.NewMetricsService()
	router := buildRouter(Handlers{Metrics: NewMetricsHandler(metrics, nil)}, nil)

	resp := performRequest(router, newRequest(http.MethodGet, "/metrics", "", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "risk_view_degraded_total 0")
	assert.Contains(t, resp.Body.String(), "goroutines_total")
}
