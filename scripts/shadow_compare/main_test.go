package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodiesEqualIgnoresVolatileMeta(t *testing.T) {
	a := []byte(`{"ok":true,"data":{"summary":{"totalLogs":3}},"meta":{"cache_hit":true,"processing_time_ms":4}}`)
	b := []byte(`{"ok":true,"data":{"summary":{"totalLogs":3}},"meta":{"cache_hit":false,"processing_time_ms":19}}`)
	assert.True(t, bodiesEqual(a, b))

	c := []byte(`{"ok":true,"data":{"summary":{"totalLogs":4}}}`)
	assert.False(t, bodiesEqual(a, c))
}

func TestCSVEqualIgnoresQuoting(t *testing.T) {
	quoted := []byte("\"Type\",\"Name\"\r\n\"Student\",\"Ana\"\r\n")
	bare := []byte("Type,Name\nStudent,Ana\n")
	assert.True(t, csvEqual(quoted, bare))
	assert.False(t, csvEqual(quoted, []byte("Type,Name\nStudent,Bo\n")))
}

func TestCompareTargetSendsBearer(t *testing.T) {
	var seen []string
	handler := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			fmt.Fprint(w, body)
		}
	}
	candidate := httptest.NewServer(handler("\"a\"\r\n"))
	defer candidate.Close()
	baseline := httptest.NewServer(handler("a\n"))
	defer baseline.Close()

	comp := compareTarget(candidate.Client(), candidate.URL, baseline.URL, "tok", target{Path: "api/v1/logs-export"})
	require.NoError(t, comp.Error)
	assert.True(t, comp.StatusMatch)
	assert.True(t, comp.BodyMatch)
	assert.Equal(t, []string{"Bearer tok", "Bearer tok"}, seen)
}
