package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestLiveEndpoint(t *testing.T) {
	s := New()
	rec := httptest.NewRecorder()
	s.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not ready before SetReady", func(t *testing.T) {
		s := New()
		rec := httptest.NewRecorder()
		s.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("ready with passing checks", func(t *testing.T) {
		s := New()
		s.AddReadinessCheck("db", time.Second, func(_ context.Context) error { return nil })
		s.SetReady(true)

		rec := httptest.NewRecorder()
		s.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"db":"ok"`)
	})

	t.Run("failing check flips to unavailable", func(t *testing.T) {
		s := New()
		s.AddReadinessCheck("db", time.Second, func(_ context.Context) error {
			return errors.New("connection refused")
		})
		s.SetReady(true)

		rec := httptest.NewRecorder()
		s.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})
}
