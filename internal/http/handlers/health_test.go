package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/rehearsalhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestReadyz(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		ping     func(context.Context) error
		draining bool
		status   int
	}{
		{"no store", nil, false, http.StatusOK},
		{"store up", func(context.Context) error { return nil }, false, http.StatusOK},
		{"store down", func(context.Context) error { return errors.New("conn refused") }, false, http.StatusServiceUnavailable},
		{"draining", func(context.Context) error { return nil }, true, http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			draining := tc.draining
			h := handlers.NewHealthHandler(tc.ping, func() bool { return draining })

			r := gin.New()
			r.GET("/readyz", h.Readyz)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tc.status, w.Code)
			assert.NotContains(t, w.Body.String(), "conn refused")
		})
	}
}
