package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadyCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleReadyCheck(func() bool { return true })(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleReadyCheck(func() bool { return false })(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandleVersion(t *testing.T) {
	w := httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1.2.3", w.Body.String())
}

func TestHandleWithCORS(t *testing.T) {
	h := HandleWithCORS(http.HandlerFunc(HandleHealthCheck))

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/health", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetricsPathFormatter(t *testing.T) {
	tests := []struct {
		statusCode int
		path       string
		expected   string
	}{
		{statusCode: http.StatusOK, path: "/health", expected: "/health"},
		{statusCode: http.StatusOK, path: "/scenes", expected: "/scenes"},
		{statusCode: http.StatusOK, path: "/scenes/42/octree", expected: "/scenes/{id}/octree"},
		{statusCode: http.StatusBadRequest, path: "/scenes/1/colliding", expected: "/scenes/{id}/colliding"},
		{statusCode: http.StatusNotFound, path: "/scenes/42/octree", expected: ""},
		{statusCode: http.StatusMethodNotAllowed, path: "/scenes/1/octree", expected: ""},
		{statusCode: http.StatusMovedPermanently, path: "/scenes/", expected: ""},
	}

	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			require.Equal(t, test.expected, MetricsPathFormatter(test.statusCode, test.path))
		})
	}
}
