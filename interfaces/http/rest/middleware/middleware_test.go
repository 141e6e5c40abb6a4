package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorded struct {
	method, route string
	status        int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (f *fakeRecorder) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recorded{method, route, status})
}

func TestRequestIDHeader(t *testing.T) {
	t.Run("Should generate request ID when not provided", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		chimiddleware.RequestID(RequestIDHeader(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))).ServeHTTP(w, req)

		assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	})

	t.Run("Should use provided request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-Id", "test-request-id")
		w := httptest.NewRecorder()

		chimiddleware.RequestID(RequestIDHeader(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))).ServeHTTP(w, req)

		assert.Equal(t, "test-request-id", w.Header().Get("X-Request-Id"))
	})
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"success is debug", http.StatusOK, "debug"},
		{"client error is warn", http.StatusConflict, "warn"},
		{"server error is error", http.StatusBadGateway, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			rec := &fakeRecorder{}
			r := chi.NewRouter()
			r.Use(Logger(zap.New(core), rec))
			r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.level, entry.Level.String())
			assert.Equal(t, "/items/{id}", entry.ContextMap()["route"])
			require.Len(t, rec.seen, 1)
			assert.Equal(t, recorded{http.MethodGet, "/items/{id}", tt.status}, rec.seen[0])
		})
	}
}

func TestLogger_NilRecorder(t *testing.T) {
	h := Logger(zap.NewNop(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
